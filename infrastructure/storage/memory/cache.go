package memory

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/cache"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
	accessAt  time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is an in-memory implementation of cache.Cache with TTL expiry and
// least-recently-used eviction at capacity.
type Cache struct {
	entries map[string]*cacheEntry
	maxSize int
	mu      sync.Mutex
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(size int) CacheOption {
	return func(c *Cache) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// NewCache creates an empty cache holding at most 1000 entries by default.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		maxSize: 1000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the value stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(now) {
		delete(c.entries, key)
		return nil, false, nil
	}
	entry.accessAt = now
	return append([]byte(nil), entry.value...), true, nil
}

// Set stores a copy of value under key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	now := time.Now()
	entry := &cacheEntry{value: append([]byte(nil), value...), accessAt: now}
	if opts.TTL > 0 {
		entry.expiresAt = now.Add(opts.TTL)
	}
	c.entries[key] = entry
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops the least recently accessed entry.
func (c *Cache) evictLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.accessAt.Before(oldest) {
			oldestKey, oldest = k, e.accessAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
