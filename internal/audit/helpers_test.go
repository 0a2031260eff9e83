package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-mfa/migrations"
)

// testDB opens a migrated SQLite database in a temp directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
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
