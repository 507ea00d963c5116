package cache

import "errors"

// Domain errors for cache adapters.
var (
	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrConnectionFailed is returned when the cache backend is unreachable.
	ErrConnectionFailed = errors.New("cache connection failed")
)
