package identity

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-mfa/internal/realm"
)

// ErrNoCaller is returned by CallerID when the request is unauthenticated.
var ErrNoCaller = errors.New("no authenticated caller")

// SecurityContext carries the authentication state of one request.
type SecurityContext interface {
	// CallerID returns the authenticated user id.
	CallerID() (string, error)

	// TargetUser returns the username the request addresses.
	TargetUser() string

	// Realm returns the realm the request addresses.
	Realm() (realm.Realm, error)
}

// Context is the SecurityContext built by the HTTP layer.
type Context struct {
	caller string
	target string
	realm  realm.Realm
}

// NewContext returns a Context for caller acting on target in r.
func NewContext(caller, target string, r realm.Realm) *Context {
	return &Context{caller: caller, target: target, realm: r}
}

// CallerID implements SecurityContext.
func (c *Context) CallerID() (string, error) {
	if c.caller == "" {
		return "", ErrNoCaller
	}
	return c.caller, nil
}

// TargetUser implements SecurityContext.
func (c *Context) TargetUser() string {
	return c.target
}

// Realm implements SecurityContext.
func (c *Context) Realm() (realm.Realm, error) {
	return c.realm, nil
}

type ctxKey struct{}

// WithSecurityContext stores sc in ctx.
func WithSecurityContext(ctx context.Context, sc SecurityContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// FromContext returns the SecurityContext stored in ctx, if any.
func FromContext(ctx context.Context) (SecurityContext, bool) {
	sc, ok := ctx.Value(ctxKey{}).(SecurityContext)
	return sc, ok
}
