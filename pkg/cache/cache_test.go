package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowdeploy/metric"
)

func TestCacheBasicOperations(t *testing.T) {
	c, err := New[string]()
	require.NoError(t, err)

	// Miss on empty cache
	_, ok := c.Get("root/staging")
	assert.False(t, ok)

	created, err := c.Set("root/staging", "pg-100")
	require.NoError(t, err)
	assert.True(t, created)

	v, ok := c.Get("root/staging")
	require.True(t, ok)
	assert.Equal(t, "pg-100", v)

	// Update returns created=false
	created, err = c.Set("root/staging", "pg-200")
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, 1, c.Size())
}

func TestCacheEmptyKeyRejected(t *testing.T) {
	c, err := New[int]()
	require.NoError(t, err)

	_, err = c.Set("", 1)
	assert.Error(t, err)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c, err := New[int]()
	require.NoError(t, err)

	_, err = c.Set("a", 1)
	require.NoError(t, err)
	_, err = c.Set("b", 2)
	require.NoError(t, err)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
	assert.Empty(t, c.Keys())
}

func TestCacheStatistics(t *testing.T) {
	c, err := New[string]()
	require.NoError(t, err)

	_, err = c.Set("k", "v")
	require.NoError(t, err)

	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(1), stats.Sets())
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 0.001)
}

func TestCacheWithMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()

	c, err := New[string](WithMetrics(reg, "path_index"))
	require.NoError(t, err)

	_, err = c.Set("root/a", "pg-1")
	require.NoError(t, err)
	c.Get("root/a")

	// Second cache with the same prefix collides on metric names
	_, err = New[string](WithMetrics(reg, "path_index"))
	assert.Error(t, err)
}
