package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern allows alphanumerics, dots, hyphens and underscores.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername reports whether username is 1-64 allowed characters.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role is an authorisation tier.
type Role string

const (
	// RoleUser manages only their own devices.
	RoleUser Role = "user"

	// RoleAdmin manages any user's devices within the realms below their
	// own and may read the audit log.
	RoleAdmin Role = "admin"

	// RoleOwner is the bootstrap account with every permission.
	RoleOwner Role = "owner"
)

// ValidRoles lists the assignable roles.
var ValidRoles = []Role{RoleUser, RoleAdmin, RoleOwner}

// IsValidRole reports whether r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User is an account that can log in and own OATH devices.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Realm        string    `json:"realm"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidUser        = errors.New("invalid username or role")
)
