package identity

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-mfa/internal/auth"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mfa/internal/realm"
	_ "github.com/nerrad567/gray-logic-mfa/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "identity.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

func createUser(t *testing.T, repo auth.UserRepository, realmPath, username string, role auth.Role, active bool) *auth.User {
	t.Helper()

	u := &auth.User{
		Username:     username,
		Realm:        realmPath,
		DisplayName:  username,
		PasswordHash: "unused",
		Role:         role,
		IsActive:     active,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

// badRealmContext fails realm resolution.
type badRealmContext struct{ *Context }

func (badRealmContext) Realm() (realm.Realm, error) {
	return realm.Realm{}, errors.New("realm header is malformed")
}

func mustRealm(t *testing.T, path string) realm.Realm {
	t.Helper()
	r, err := realm.Parse(path)
	if err != nil {
		t.Fatalf("realm.Parse(%q) error = %v", path, err)
	}
	return r
}
