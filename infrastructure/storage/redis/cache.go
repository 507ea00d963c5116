package redis

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/supportflow/domain/cache"
)

// Cache is a Redis-backed cache.Cache.
type Cache struct {
	client    *redis.Client
	keyPrefix string
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCacheFromClient wraps an existing client.
func NewCacheFromClient(client *redis.Client, keyPrefix string) *Cache {
	return &Cache{client: client, keyPrefix: keyPrefix}
}

func (c *Cache) prefixKey(key string) string {
	return c.keyPrefix + "cache:" + key
}

// Get returns the cached value for key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	value, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Join(cache.ErrConnectionFailed, err)
	}
	c.hits.Add(1)
	return value, true, nil
}

// Set stores value under key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.SetOptions) error {
	if key == "" {
		return cache.ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefixKey(key), value, opts.TTL).Err(); err != nil {
		return errors.Join(cache.ErrConnectionFailed, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.prefixKey(key)).Err(); err != nil {
		return errors.Join(cache.ErrConnectionFailed, err)
	}
	return nil
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
