// Package kv defines the flat key-value storage contract the credential
// store is built on. Implementations live in kv/redis and kv/memory.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired. Backend
// failures are never reported as ErrNotFound; they surface as distinct,
// wrapped errors so callers can tell a miss from an outage.
var ErrNotFound = errors.New("kv: key not found")

// Store is a TTL-capable key-value store. Individual operations are atomic;
// implementations must be safe for concurrent outstanding calls, since the
// token service shares one Store across all in-flight requests.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value at key. A ttl <= 0 stores the value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDel atomically reads and deletes the value at key, or returns
	// ErrNotFound. Concurrent GetDel calls on the same key observe the value
	// at most once between them.
	GetDel(ctx context.Context, key string) (string, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}
