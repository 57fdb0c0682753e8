package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/cache"
)

func TestRoundTrip(t *testing.T) {
	c := cache.New()
	args := map[string]any{"container_app_name": "my-app", "resource_group": "prod-rg"}

	_, ok := c.Get("check_container_app_health", args)
	require.False(t, ok, "expected miss before Set")

	c.Set("check_container_app_health", args, map[string]any{"availability_state": "Available"})

	v, ok := c.Get("check_container_app_health", args)
	require.True(t, ok, "expected hit after Set")
	assert.Equal(t, map[string]any{"availability_state": "Available"}, v)
}

func TestArgumentEquivalenceIgnoresContextKeys(t *testing.T) {
	c := cache.New()
	c.Set("check_resource_health", map[string]any{"name": "a", "context": "req-1"}, "v1")

	v, ok := c.Get("check_resource_health", map[string]any{"name": "a", "context": "req-2"})
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestArgumentEquivalenceKeyOrderIndependent(t *testing.T) {
	c := cache.New()
	c.Set("check_resource_health", map[string]any{"b": 2, "a": 1}, "v")

	v, ok := c.Get("check_resource_health", map[string]any{"a": 1, "b": 2})
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestUncacheableToolNeverStored(t *testing.T) {
	c := cache.New()
	c.Set("triage_incident", map[string]any{"x": 1}, "ignored")

	_, ok := c.Get("triage_incident", map[string]any{"x": 1})
	assert.False(t, ok)
}

func TestUnconfiguredToolNotCached(t *testing.T) {
	c := cache.New()
	c.Set("some_unlisted_tool", map[string]any{"x": 1}, "ignored")

	_, ok := c.Get("some_unlisted_tool", map[string]any{"x": 1})
	assert.False(t, ok)
}

func TestExplicitProfileOverridesTable(t *testing.T) {
	c := cache.New()
	c.Set("some_unlisted_tool", map[string]any{"x": 1}, "v", cache.RealTime)

	v, ok := c.Get("some_unlisted_tool", map[string]any{"x": 1})
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestInvalidateRemovesSingleEntry(t *testing.T) {
	c := cache.New()
	// Removes the entry with Invalidate right after Set; TTL expiry itself
	// (60s for the real_time profile) is not exercised here.
	c.Set("get_performance_metrics", map[string]any{"x": 1}, "v")
	removed := c.Invalidate("get_performance_metrics", map[string]any{"x": 1})
	assert.Equal(t, 1, removed)

	_, ok := c.Get("get_performance_metrics", map[string]any{"x": 1})
	assert.False(t, ok)
}

func TestInvalidateAllResetsStats(t *testing.T) {
	c := cache.New()
	c.Set("get_cost_analysis", map[string]any{"x": 1}, "v")
	c.Get("get_cost_analysis", map[string]any{"x": 1})
	c.Get("get_cost_analysis", map[string]any{"x": 2})

	removed := c.InvalidateAll()
	assert.Equal(t, 1, removed)

	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Entries)
}

func TestEvictionAtCapacity(t *testing.T) {
	c := cache.New(cache.WithMaxEntries(10))
	for i := 0; i < 12; i++ {
		c.Set("get_cost_analysis", map[string]any{"i": i}, i)
	}
	stats := c.Stats()
	assert.LessOrEqual(t, stats.Entries, 10)
}

func TestStatsHitRate(t *testing.T) {
	c := cache.New()
	c.Set("get_cost_analysis", map[string]any{"x": 1}, "v")
	c.Get("get_cost_analysis", map[string]any{"x": 1})
	c.Get("get_cost_analysis", map[string]any{"x": 1})
	c.Get("get_cost_analysis", map[string]any{"x": 99})

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 66.7, stats.HitRatePercent, 0.1)
}
