package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/logging"
)

const (
	seedUsername      = "owner"
	seedPasswordBytes = 16
)

// SeedOwner creates an owner account in realm when no users exist yet and
// returns its generated password. It returns "" when seeding is skipped.
// The password is logged once and must be changed.
func SeedOwner(ctx context.Context, users UserRepository, realmPath string, logger *logging.Logger) (string, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Debug("users exist, skipping owner seed")
		return "", nil
	}

	buf := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(buf)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	owner := &User{
		Username:     seedUsername,
		Realm:        realmPath,
		DisplayName:  "System Owner",
		PasswordHash: hash,
		Role:         RoleOwner,
		IsActive:     true,
	}
	if err := users.Create(ctx, owner); err != nil {
		return "", fmt.Errorf("creating seed owner: %w", err)
	}

	logger.Warn("seed owner account created",
		"username", seedUsername,
		"realm", realmPath,
		"password", password,
		"action_required", "change this password immediately",
	)
	return password, nil
}
