package auth

import (
	"context"
	"errors"
	"fmt"
)

// Authenticate checks username and password within realmPath and returns
// the active user. Unknown users and wrong passwords both yield
// ErrInvalidCredentials.
//
// A hash made with weaker parameters than the current ones is replaced
// after a successful check. Failing to store the new hash does not fail
// the login.
func Authenticate(ctx context.Context, users UserRepository, realmPath, username, password string) (*User, error) {
	u, err := users.GetByUsername(ctx, realmPath, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same time as a real check so unknown usernames are not revealed by timing.
			_, _ = VerifyPassword(password, dummyHash) //nolint:errcheck // timing only
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}

	if NeedsRehash(u.PasswordHash) {
		if hash, err := HashPassword(password); err == nil {
			if err := users.UpdatePassword(ctx, u.ID, hash); err == nil {
				u.PasswordHash = hash
			}
		}
	}
	return u, nil
}

// dummyHash is a valid hash of a random string used to equalise timing.
var dummyHash = func() string {
	h, err := HashPassword("timing-equaliser")
	if err != nil {
		panic(err)
	}
	return h
}()
