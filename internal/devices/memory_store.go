package devices

import (
	"context"
	"sync"
)

type memoryKey struct {
	userID string
	realm  string
}

type memoryEntry struct {
	profiles []Profile
	version  int64
}

// MemoryStore keeps profile lists in process memory. Lists are copied on
// the way in and out so callers never share state with the store.
//
// Contents are lost on restart; use it for tests and single-node demos.
// All methods are thread-safe.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[memoryKey]memoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[memoryKey]memoryEntry)}
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(ctx context.Context, userID, realmPath string) ([]Profile, error) {
	profiles, _, err := s.FetchVersioned(ctx, userID, realmPath)
	return profiles, err
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, userID, realmPath string, profiles []Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{userID, realmPath}
	s.entries[k] = memoryEntry{
		profiles: cloneProfiles(AssignMissingUUIDs(profiles)),
		version:  s.entries[k].version + 1,
	}
	return nil
}

// FetchVersioned implements VersionedStore.
func (s *MemoryStore) FetchVersioned(ctx context.Context, userID, realmPath string) ([]Profile, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[memoryKey{userID, realmPath}]
	return cloneProfiles(e.profiles), e.version, nil
}

// SaveIfVersion implements VersionedStore.
func (s *MemoryStore) SaveIfVersion(ctx context.Context, userID, realmPath string, profiles []Profile, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{userID, realmPath}
	if s.entries[k].version != version {
		return ErrVersionConflict
	}
	s.entries[k] = memoryEntry{
		profiles: cloneProfiles(AssignMissingUUIDs(profiles)),
		version:  version + 1,
	}
	return nil
}

func cloneProfiles(profiles []Profile) []Profile {
	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		out[i] = p.Clone()
	}
	return out
}
