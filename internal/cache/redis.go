package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the read cache with a shared redis instance. Payloads are
// JSON, matching MemoryCache. All keys live under a namespace so that
// InvalidateAll never touches other tenants of the instance.
type RedisCache struct {
	rdb       *redis.Client
	namespace string
	hits      atomic.Uint64
	misses    atomic.Uint64
}

// NewRedisCache wraps an already-connected client. namespace is prepended to
// every key, e.g. "pronosticos:".
func NewRedisCache(rdb *redis.Client, namespace string) *RedisCache {
	return &RedisCache{rdb: rdb, namespace: namespace}
}

func (c *RedisCache) key(k string) string { return c.namespace + k }

// Get fetches and unmarshals a value. Missing keys and redis errors both count
// as a miss; the error is returned so callers can log it, but they must treat
// it as absent, never as fatal.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.rdb.Get(ctx, c.key(key)).Result()
	if err != nil {
		c.misses.Add(1)
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.misses.Add(1)
		return false, err
	}
	c.hits.Add(1)
	return true, nil
}

// Set stores the value with the given TTL, overwriting unconditionally.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(key), data, ttl).Err()
}

// Invalidate removes the exact keys given.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.rdb.Del(ctx, full...).Err()
}

// InvalidatePrefix scans the namespace for keys under the prefix and deletes
// them. SCAN keeps this safe on a shared instance, unlike KEYS.
func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	return c.scanDelete(ctx, c.key(prefix)+"*")
}

// InvalidateAll clears the whole namespace.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	return c.scanDelete(ctx, c.namespace+"*")
}

func (c *RedisCache) scanDelete(ctx context.Context, match string) error {
	iter := c.rdb.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Stats returns a snapshot of the hit/miss counters. Counters are process
// local; two replicas sharing one redis each report their own ratio.
func (c *RedisCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
