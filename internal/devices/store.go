package devices

import (
	"context"
	"errors"
)

// DeviceTypeOATH is the device type under which OATH profiles are stored.
const DeviceTypeOATH = "oath"

// ErrVersionConflict is returned by SaveIfVersion when the stored list
// changed since it was fetched.
var ErrVersionConflict = errors.New("device profiles were modified concurrently")

// Store reads and replaces the profile list of one user in one realm. A
// user with no stored list has an empty one. Implementations do no
// locking: a Fetch followed by a Save may overwrite a concurrent write.
type Store interface {
	// Fetch returns the stored list in storage order, or an empty list.
	Fetch(ctx context.Context, userID, realmPath string) ([]Profile, error)

	// Save replaces the stored list. Profiles without a uuid are given one.
	Save(ctx context.Context, userID, realmPath string, profiles []Profile) error
}

// VersionedStore is a Store that can detect concurrent writers. Version 0
// means no list has been stored yet.
type VersionedStore interface {
	Store

	// FetchVersioned returns the list and the version it was read at.
	FetchVersioned(ctx context.Context, userID, realmPath string) ([]Profile, int64, error)

	// SaveIfVersion replaces the list only if it is still at version.
	// Returns ErrVersionConflict otherwise; nothing is written then.
	SaveIfVersion(ctx context.Context, userID, realmPath string, profiles []Profile, version int64) error
}
