// Package kv defines the key/value collaborator contract used by the tag
// registry for persistence, with in-memory and NATS JetStream
// implementations.
//
// The registry never depends on a concrete store: absence of a store means
// in-memory-only operation, and hosts can supply their own implementation.
package kv

import (
	"context"
)

// Store is the persistence contract: byte blobs by key. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or errors.ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put creates or replaces the value for key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys currently present.
	Keys(ctx context.Context) ([]string, error)
}
