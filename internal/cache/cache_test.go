package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedCache(start time.Time) (*MemoryCache, *time.Time) {
	c := NewMemoryCache()
	now := start
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_SetGet(t *testing.T) {
	c, _ := newClockedCache(time.Unix(1000, 0))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sales:2025-04-10", map[string]int{"total": 250}, 30*time.Minute))

	var got map[string]int
	found, err := c.Get(ctx, "sales:2025-04-10", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 250, got["total"])

	found, err = c.Get(ctx, "sales:2025-04-11", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_ExpiryIsLazy(t *testing.T) {
	c, now := newClockedCache(time.Unix(1000, 0))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.Equal(t, 1, c.Len())

	*now = now.Add(time.Minute) // exactly at expiry counts as expired

	var got string
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, c.Len(), "expired entry purged on access")
}

func TestMemoryCache_SetOverwritesUnconditionally(t *testing.T) {
	c, _ := newClockedCache(time.Unix(1000, 0))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "old", time.Minute))
	require.NoError(t, c.Set(ctx, "k", "new", time.Minute))

	var got string
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", got)
}

func TestMemoryCache_InvalidatePrefixScopesToOneDay(t *testing.T) {
	c, _ := newClockedCache(time.Unix(1000, 0))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sales:2025-04-10", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "sales:2025-04-10:76", 2, time.Hour))
	require.NoError(t, c.Set(ctx, "sales:2025-04-11", 3, time.Hour))

	require.NoError(t, c.InvalidatePrefix(ctx, "sales:2025-04-10"))

	var got int
	found, _ := c.Get(ctx, "sales:2025-04-10", &got)
	assert.False(t, found)
	found, _ = c.Get(ctx, "sales:2025-04-10:76", &got)
	assert.False(t, found)
	found, _ = c.Get(ctx, "sales:2025-04-11", &got)
	assert.True(t, found, "other days stay cached")
}

func TestMemoryCache_InvalidateAll(t *testing.T) {
	c, _ := newClockedCache(time.Unix(1000, 0))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "b", 2, time.Hour))
	require.NoError(t, c.InvalidateAll(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Stats(t *testing.T) {
	c, _ := newClockedCache(time.Unix(1000, 0))
	ctx := context.Background()

	var got int
	c.Get(ctx, "missing", &got)
	require.NoError(t, c.Set(ctx, "k", 1, time.Hour))
	c.Get(ctx, "k", &got)
	c.Get(ctx, "k", &got)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.Ratio(), 1e-9)
}

func TestStats_RatioWithNoLookups(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.Ratio())
}

func TestMemoryCache_Sweep(t *testing.T) {
	c, now := newClockedCache(time.Unix(1000, 0))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "long", 2, time.Hour))

	*now = now.Add(10 * time.Minute)
	c.Sweep()

	assert.Equal(t, 1, c.Len())
	var got int
	found, _ := c.Get(ctx, "long", &got)
	assert.True(t, found)
}
