package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// saveAttempts bounds the optimistic retries of an unconditional Save.
const saveAttempts = 5

// RedisStore keeps each profile list as one JSON document under
// {prefix}:devices:{type}:{realm}:{user}. Conditional writes use
// WATCH/MULTI on that key.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	deviceType string
}

// NewRedisStore creates a store for OATH profiles. prefix namespaces the
// keys and may be empty.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, deviceType: DeviceTypeOATH}
}

// getter is the read side shared by the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisDocument struct {
	Version  int64     `json:"version"`
	Profiles []Profile `json:"profiles"`
}

func (s *RedisStore) key(userID, realmPath string) string {
	k := "devices:" + s.deviceType + ":" + realmPath + ":" + userID
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Fetch implements Store.
func (s *RedisStore) Fetch(ctx context.Context, userID, realmPath string) ([]Profile, error) {
	profiles, _, err := s.FetchVersioned(ctx, userID, realmPath)
	return profiles, err
}

// FetchVersioned implements VersionedStore.
func (s *RedisStore) FetchVersioned(ctx context.Context, userID, realmPath string) ([]Profile, int64, error) {
	doc, err := s.read(ctx, s.client, s.key(userID, realmPath))
	if err != nil {
		return nil, 0, err
	}
	return doc.Profiles, doc.Version, nil
}

// Save implements Store. It retries when another writer slips in between
// reading the version and writing.
func (s *RedisStore) Save(ctx context.Context, userID, realmPath string, profiles []Profile) error {
	k := s.key(userID, realmPath)
	for range saveAttempts {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			doc, err := s.read(ctx, tx, k)
			if err != nil {
				return err
			}
			return s.write(ctx, tx, k, profiles, doc.Version+1)
		}, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("saving device profiles: %w", ErrVersionConflict)
}

// SaveIfVersion implements VersionedStore.
func (s *RedisStore) SaveIfVersion(ctx context.Context, userID, realmPath string, profiles []Profile, version int64) error {
	k := s.key(userID, realmPath)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		doc, err := s.read(ctx, tx, k)
		if err != nil {
			return err
		}
		if doc.Version != version {
			return ErrVersionConflict
		}
		return s.write(ctx, tx, k, profiles, version+1)
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (s *RedisStore) read(ctx context.Context, c getter, k string) (redisDocument, error) {
	data, err := c.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisDocument{Profiles: []Profile{}}, nil
	}
	if err != nil {
		return redisDocument{}, fmt.Errorf("reading device profiles: %w", err)
	}

	var doc redisDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return redisDocument{}, fmt.Errorf("decoding device profiles: %w", err)
	}
	if doc.Profiles == nil {
		doc.Profiles = []Profile{}
	}
	return doc, nil
}

func (s *RedisStore) write(ctx context.Context, tx *redis.Tx, k string, profiles []Profile, version int64) error {
	profiles = AssignMissingUUIDs(profiles)
	data, err := json.Marshal(redisDocument{Version: version, Profiles: profiles})
	if err != nil {
		return fmt.Errorf("encoding device profiles: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, k, data, 0)
		return nil
	})
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("writing device profiles: %w", err)
	}
	return err
}
