package core

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KVStore.Get for a missing or expired key.
var ErrKeyNotFound = errors.New("key not found")

// KVStore defines the interface for key-value store operations.
// Implementations back the key-value change sink and the list-based change queue.
type KVStore interface {
	// Get retrieves a value by key from the store.
	// A missing key yields an error wrapping ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair with an optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// BatchSet stores multiple key-value pairs with a shared TTL.
	BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Close closes the connection to the KV store and releases resources.
	Close() error
}
