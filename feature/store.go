package feature

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNoSnapshot reports a read for a user with no published snapshot.
var ErrNoSnapshot = errors.New("no feature snapshot")

// KeyFor returns the feature-store key for a user.
func KeyFor(userID string) string {
	return "features:user:" + userID
}

// Store reads and writes per-user feature snapshots in Redis hashes.
type Store struct {
	client *redis.Client
}

// NewStore wraps a Redis client as a feature store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// WriteSnapshot atomically overwrites the user's snapshot and resets its TTL
// to the retention horizon. The HSET and EXPIRE run inside MULTI/EXEC, so a
// concurrent reader sees either the old snapshot or the complete new one,
// never a mix.
func (s *Store) WriteSnapshot(ctx context.Context, userID string, fields map[string]string) error {
	key := KeyFor(userID)

	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, Retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return nil
}

// ReadSnapshot returns the user's snapshot fields, or ErrNoSnapshot when the
// key is absent or expired.
func (s *Store) ReadSnapshot(ctx context.Context, userID string) (map[string]string, error) {
	key := KeyFor(userID)

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrNoSnapshot)
	}
	return fields, nil
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
