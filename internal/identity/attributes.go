package identity

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// AttributeSet is the ordered set of values of one identity attribute.
type AttributeSet []string

// Contains reports whether v is one of the values.
func (s AttributeSet) Contains(v string) bool {
	return slices.Contains(s, v)
}

// AttributeRepository stores multi-valued attributes per (user, realm).
type AttributeRepository interface {
	Get(ctx context.Context, userID, realmPath, name string) (AttributeSet, error)
	// Set replaces every value of name. No values clears the attribute.
	Set(ctx context.Context, userID, realmPath, name string, values ...string) error
}

// SQLiteAttributeRepository keeps attributes in identity_attributes.
type SQLiteAttributeRepository struct {
	db *sql.DB
}

// NewAttributeRepository creates a SQLite attribute repository.
func NewAttributeRepository(db *sql.DB) *SQLiteAttributeRepository {
	return &SQLiteAttributeRepository{db: db}
}

// Get returns the values of name in insertion order.
func (r *SQLiteAttributeRepository) Get(ctx context.Context, userID, realmPath, name string) (AttributeSet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT value FROM identity_attributes
		 WHERE user_id = ? AND realm = ? AND name = ?
		 ORDER BY rowid`, userID, realmPath, name)
	if err != nil {
		return nil, fmt.Errorf("querying attribute %s: %w", name, err)
	}
	defer rows.Close()

	set := AttributeSet{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning attribute %s: %w", name, err)
		}
		set = append(set, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attribute %s: %w", name, err)
	}
	return set, nil
}

// Set replaces the values of name in one transaction.
func (r *SQLiteAttributeRepository) Set(ctx context.Context, userID, realmPath, name string, values ...string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM identity_attributes WHERE user_id = ? AND realm = ? AND name = ?`,
		userID, realmPath, name); err != nil {
		return fmt.Errorf("clearing attribute %s: %w", name, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO identity_attributes (user_id, realm, name, value, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			userID, realmPath, name, v, now); err != nil {
			return fmt.Errorf("writing attribute %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing attribute %s: %w", name, err)
	}
	return nil
}
