package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps each profile list as a JSON array in the
// device_profiles table, one row per (user, realm, device type).
type SQLiteStore struct {
	db         *sql.DB
	deviceType string
}

// NewSQLiteStore creates a store for OATH profiles.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, deviceType: DeviceTypeOATH}
}

// Fetch implements Store.
func (s *SQLiteStore) Fetch(ctx context.Context, userID, realmPath string) ([]Profile, error) {
	profiles, _, err := s.FetchVersioned(ctx, userID, realmPath)
	return profiles, err
}

// FetchVersioned implements VersionedStore.
func (s *SQLiteStore) FetchVersioned(ctx context.Context, userID, realmPath string) ([]Profile, int64, error) {
	var data string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT profiles, version FROM device_profiles
		 WHERE user_id = ? AND realm = ? AND device_type = ?`,
		userID, realmPath, s.deviceType,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return []Profile{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading device profiles: %w", err)
	}

	profiles, err := decodeProfiles([]byte(data))
	if err != nil {
		return nil, 0, err
	}
	return profiles, version, nil
}

// Save implements Store. The list replaces whatever is stored.
func (s *SQLiteStore) Save(ctx context.Context, userID, realmPath string, profiles []Profile) error {
	data, err := encodeProfiles(AssignMissingUUIDs(profiles))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO device_profiles (user_id, realm, device_type, profiles, version, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT (user_id, realm, device_type)
		 DO UPDATE SET profiles = excluded.profiles, version = version + 1, updated_at = excluded.updated_at`,
		userID, realmPath, s.deviceType, string(data), now(),
	)
	if err != nil {
		return fmt.Errorf("saving device profiles: %w", err)
	}
	return nil
}

// SaveIfVersion implements VersionedStore.
func (s *SQLiteStore) SaveIfVersion(ctx context.Context, userID, realmPath string, profiles []Profile, version int64) error {
	data, err := encodeProfiles(AssignMissingUUIDs(profiles))
	if err != nil {
		return err
	}

	var res sql.Result
	if version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO device_profiles (user_id, realm, device_type, profiles, version, updated_at)
			 VALUES (?, ?, ?, ?, 1, ?)
			 ON CONFLICT (user_id, realm, device_type) DO NOTHING`,
			userID, realmPath, s.deviceType, string(data), now(),
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE device_profiles SET profiles = ?, version = version + 1, updated_at = ?
			 WHERE user_id = ? AND realm = ? AND device_type = ? AND version = ?`,
			string(data), now(), userID, realmPath, s.deviceType, version,
		)
	}
	if err != nil {
		return fmt.Errorf("saving device profiles: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
