// Package redis implements kv.Store on a Redis connection. This is the
// production backend: GETDEL gives the single atomic read-and-delete the
// consume operations require, and key TTLs are enforced server side.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"go.pilab.hu/tokend/kv"
)

// Store implements kv.Store using go-redis. The underlying client pipelines
// concurrent commands over a shared connection pool, so a single Store is
// shared by all in-flight requests.
type Store struct {
	client *goredis.Client
}

// NewStore creates a new [Store] on top of an existing client.
func NewStore(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", kv.ErrNotFound
		}

		return "", fmt.Errorf("redis get %q: %w", key, err)
	}

	return val, nil
}

// Set implements kv.Store. A ttl <= 0 stores the value without expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}

	return nil
}

// GetDel implements kv.Store. GETDEL is a single Redis command, so two
// concurrent consumers of the same key cannot both observe the value.
func (s *Store) GetDel(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", kv.ErrNotFound
		}

		return "", fmt.Errorf("redis getdel %q: %w", key, err)
	}

	return val, nil
}

// Del implements kv.Store. Deleting an absent key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}

	return nil
}
