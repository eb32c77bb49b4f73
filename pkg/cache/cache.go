// Package cache provides a generic, thread-safe in-memory cache with built-in
// statistics and optional Prometheus metrics.
//
// The deployment engine uses it for per-batch path indexes: entries live for
// the duration of one batch run and are cleared when the batch completes.
package cache

import (
	"fmt"
	"sync"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/metric"
)

// Cache is a generic thread-safe cache parameterized by value type V.
// There is no eviction policy: callers own the lifecycle and call Clear.
type Cache[V any] struct {
	mu      sync.RWMutex
	items   map[string]V
	stats   *Statistics
	metrics *cacheMetrics
}

// Option configures a Cache at construction time.
type Option func(*options)

type options struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithMetrics exposes hit/miss/size counters on the given registry, labeled
// by prefix.
func WithMetrics(reg *metric.MetricsRegistry, prefix string) Option {
	return func(o *options) {
		o.metricsReg = reg
		o.metricsPrefix = prefix
	}
}

// New creates an empty cache. Statistics are always collected; Prometheus
// metrics are opt-in via WithMetrics.
func New[V any](opts ...Option) (*Cache[V], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var metrics *cacheMetrics
	if o.metricsReg != nil && o.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
	}

	return &Cache[V]{
		items:   make(map[string]V),
		stats:   NewStatistics(),
		metrics: metrics,
	}, nil
}

// Get retrieves a value by key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	value, exists := c.items[key]
	c.mu.RUnlock()

	if exists {
		c.stats.Hit()
		if c.metrics != nil {
			c.metrics.hits.Inc()
		}
	} else {
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.misses.Inc()
		}
	}

	return value, exists
}

// Set stores a value with the given key. Returns true if a new entry was
// created, false if an existing one was updated.
func (c *Cache[V]) Set(key string, value V) (bool, error) {
	if key == "" {
		return false, errors.WrapInvalid(fmt.Errorf("empty key"), "cache", "Set", "key validation")
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = value
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.sets.Inc()
		c.metrics.size.Set(float64(size))
	}

	return !exists, nil
}

// Delete removes an entry by key. Returns true if the key existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	_, exists := c.items[key]
	delete(c.items, key)
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.Delete()
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.deletes.Inc()
			c.metrics.size.Set(float64(size))
		}
	}

	return exists
}

// Clear removes all entries from the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]V)
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.size.Set(0)
	}
}

// Size returns the current number of entries.
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all keys currently in the cache.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns the cache statistics tracker.
func (c *Cache[V]) Stats() *Statistics {
	return c.stats
}
