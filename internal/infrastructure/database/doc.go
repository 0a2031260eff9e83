// Package database provides SQLite connectivity for the Gray Logic MFA service.
//
// This package manages:
//   - The SQLite connection (WAL mode, busy timeout, single writer)
//   - Embedded, versioned schema migrations
//   - Health checks and lifecycle management
//
// Users, identity attributes, OATH device profile lists and the audit
// trail all live in the one database file.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are registered by the migrations
// package through MigrationsFS.
package database
