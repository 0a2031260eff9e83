package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-mfa/internal/auth"
	"github.com/nerrad567/gray-logic-mfa/internal/realm"
	"github.com/nerrad567/gray-logic-mfa/internal/rest"
)

// Identity is a resolved user within a realm.
type Identity interface {
	UserID() string
	Realm() realm.Realm
	GetAttribute(ctx context.Context, name string) (AttributeSet, error)
	SetAttribute(ctx context.Context, name string, values ...string) error
}

// Resolver maps a SecurityContext to the identity it acts for.
type Resolver interface {
	ResolveUserID(ctx context.Context, sc SecurityContext) (string, error)
	Identity(ctx context.Context, sc SecurityContext) (Identity, error)
}

// DefaultResolver resolves targets against the user repository. The
// caller may act for the target when they are the same user, or when the
// caller's role has auth.PermDeviceManageAll and the caller's realm
// contains the target realm.
//
// Every failure is a *rest.Error.
type DefaultResolver struct {
	users auth.UserRepository
	attrs AttributeRepository
}

// NewResolver creates a DefaultResolver.
func NewResolver(users auth.UserRepository, attrs AttributeRepository) *DefaultResolver {
	return &DefaultResolver{users: users, attrs: attrs}
}

// ResolveUserID returns the id of the user the request acts for.
func (r *DefaultResolver) ResolveUserID(ctx context.Context, sc SecurityContext) (string, error) {
	u, _, err := r.resolve(ctx, sc)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// Identity returns the identity the request acts for.
func (r *DefaultResolver) Identity(ctx context.Context, sc SecurityContext) (Identity, error) {
	u, rlm, err := r.resolve(ctx, sc)
	if err != nil {
		return nil, err
	}
	return &storedIdentity{userID: u.ID, realm: rlm, attrs: r.attrs}, nil
}

func (r *DefaultResolver) resolve(ctx context.Context, sc SecurityContext) (*auth.User, realm.Realm, error) {
	callerID, err := sc.CallerID()
	if err != nil {
		return nil, realm.Realm{}, rest.NewUnauthorized("authentication required")
	}
	rlm, err := sc.Realm()
	if err != nil {
		return nil, realm.Realm{}, rest.NewInternal("failed to resolve realm", err)
	}

	caller, err := r.users.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, realm.Realm{}, rest.NewUnauthorized("caller no longer exists")
		}
		return nil, realm.Realm{}, rest.NewInternal("resolving caller", err)
	}
	if !caller.IsActive {
		return nil, realm.Realm{}, rest.NewForbidden("caller account is inactive")
	}

	targetName := sc.TargetUser()
	if targetName == "" {
		return nil, realm.Realm{}, rest.NewBadRequest("target user is required")
	}
	target, err := r.users.GetByUsername(ctx, rlm.String(), targetName)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, realm.Realm{}, rest.NewNotFound(fmt.Sprintf("user %q not found in realm %s", targetName, rlm))
		}
		return nil, realm.Realm{}, rest.NewInternal("resolving target user", err)
	}

	if !mayActFor(caller, target) {
		return nil, realm.Realm{}, rest.NewForbidden("not permitted to manage this user's devices")
	}
	if !target.IsActive {
		return nil, realm.Realm{}, rest.NewForbidden("user account is inactive")
	}
	return target, rlm, nil
}

func mayActFor(caller, target *auth.User) bool {
	if caller.ID == target.ID {
		return auth.HasPermission(caller.Role, auth.PermDeviceManageOwn)
	}
	if !auth.HasPermission(caller.Role, auth.PermDeviceManageAll) {
		return false
	}
	callerRealm, err := realm.Parse(caller.Realm)
	if err != nil {
		return false
	}
	targetRealm, err := realm.Parse(target.Realm)
	if err != nil {
		return false
	}
	return callerRealm.Contains(targetRealm)
}

type storedIdentity struct {
	userID string
	realm  realm.Realm
	attrs  AttributeRepository
}

func (i *storedIdentity) UserID() string     { return i.userID }
func (i *storedIdentity) Realm() realm.Realm { return i.realm }

func (i *storedIdentity) GetAttribute(ctx context.Context, name string) (AttributeSet, error) {
	return i.attrs.Get(ctx, i.userID, i.realm.String(), name)
}

func (i *storedIdentity) SetAttribute(ctx context.Context, name string, values ...string) error {
	return i.attrs.Set(ctx, i.userID, i.realm.String(), name, values...)
}
