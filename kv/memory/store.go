// Package memory implements kv.Store on jellydator/ttlcache. It backs tests
// and single-node development setups where Redis is not available.
package memory

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"go.pilab.hu/tokend/kv"
)

// Store implements kv.Store in process memory with automatic TTL eviction.
type Store struct {
	cache *ttlcache.Cache[string, string]
}

// NewStore creates a new in-memory store with automatic cleanup.
func NewStore() *Store {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	// Start the background eviction loop.
	go cache.Start()

	return &Store{cache: cache}
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	item := s.cache.Get(key)
	if item == nil {
		return "", kv.ErrNotFound
	}

	return item.Value(), nil
}

// Set implements kv.Store. A ttl <= 0 stores the value without expiry.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.cache.Set(key, value, ttl)

	return nil
}

// GetDel implements kv.Store. ttlcache's GetAndDelete holds the cache lock
// across read and delete, so concurrent consumers of the same key observe
// the value at most once between them.
func (s *Store) GetDel(_ context.Context, key string) (string, error) {
	item, present := s.cache.GetAndDelete(key)
	if !present || item == nil {
		return "", kv.ErrNotFound
	}

	return item.Value(), nil
}

// Del implements kv.Store.
func (s *Store) Del(_ context.Context, key string) error {
	s.cache.Delete(key)

	return nil
}

// Stop terminates the background eviction loop.
func (s *Store) Stop() {
	s.cache.Stop()
}
