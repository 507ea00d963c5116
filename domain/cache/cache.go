// Package cache defines the port used to memoize read-only ability results.
package cache

import (
	"context"
	"time"
)

// Cache stores encoded ability results by key.
type Cache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte, opts SetOptions) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// SetOptions configures a Set call.
type SetOptions struct {
	// TTL of the entry; zero means no expiration.
	TTL time.Duration
}
