// Package cache is a time-boxed read cache: it caps read volume against the
// backing store and is never a source of truth. Entries expire after a TTL and
// are invalidated by the ledger's write path, so a session always reads its
// own writes; cross-session staleness up to the TTL is accepted.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Stats exposes hit/miss counters for operational visibility only.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Ratio returns hits / (hits + misses), or 0 when nothing was looked up yet.
func (s Stats) Ratio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the read-cache contract. Get reports found=false for missing or
// expired keys. Implementations must never be required for correctness: a
// failing Get is equivalent to a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
	InvalidateAll(ctx context.Context) error
	Stats() Stats
}

type entry struct {
	data      []byte
	storedAt  time.Time
	expiresAt time.Time
}

// MemoryCache is the in-process implementation. Values are stored as JSON so
// that memory and redis backends behave identically. Expired entries are
// purged lazily on access; Sweep may be called periodically for hygiene.
type MemoryCache struct {
	mu     sync.RWMutex
	m      map[string]entry
	hits   uint64
	misses uint64
	now    func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		m:   map[string]entry{},
		now: time.Now,
	}
}

// Get unmarshals the stored value into dest if the key is present and fresh.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		c.misses++
		return false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.m, key)
		c.misses++
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		delete(c.m, key)
		c.misses++
		return false, err
	}
	c.hits++
	return true, nil
}

// Set stores the value with expiry now+ttl, replacing any existing entry.
func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.m[key] = entry{data: data, storedAt: now, expiresAt: now.Add(ttl)}
	return nil
}

// Invalidate removes the exact keys given.
func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}

// InvalidatePrefix removes every key sharing the prefix.
func (c *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	return nil
}

// InvalidateAll clears the cache. Used after bulk imports.
func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m = map[string]entry{}
	return nil
}

// Stats returns a snapshot of the hit/miss counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{Hits: c.hits, Misses: c.misses}
}

// Sweep drops every expired entry. Optional; Get already evicts lazily.
func (c *MemoryCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.m {
		if !now.Before(e.expiresAt) {
			delete(c.m, k)
		}
	}
}

// Len reports the number of live entries, expired included until swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.m)
}
