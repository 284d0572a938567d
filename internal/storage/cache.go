// cache.go - In-memory cache for the filter dropdown options

package storage

import (
	"context"
	"sync"
	"time"
)

// DefaultFilterOptionsTTL is how long filter options are served from memory.
const DefaultFilterOptionsTTL = 5 * time.Minute

// FilterOptionsCache holds the last loaded FilterOptions until it expires or
// is invalidated by an insert.
type FilterOptionsCache struct {
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	options  *FilterOptions
	loadedAt time.Time
}

// NewFilterOptionsCache creates a cache; ttl <= 0 uses DefaultFilterOptionsTTL.
func NewFilterOptionsCache(ttl time.Duration) *FilterOptionsCache {
	if ttl <= 0 {
		ttl = DefaultFilterOptionsTTL
	}
	return &FilterOptionsCache{ttl: ttl, now: time.Now}
}

// GetOrLoad returns cached options or calls load and caches its result.
// Errors are not cached.
func (c *FilterOptionsCache) GetOrLoad(ctx context.Context, load func(context.Context) (FilterOptions, error)) (FilterOptions, error) {
	c.mu.RLock()
	if c.fresh() {
		opts := *c.options
		c.mu.RUnlock()
		return opts, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.fresh() {
		return *c.options, nil
	}

	opts, err := load(ctx)
	if err != nil {
		return FilterOptions{}, err
	}
	c.options = &opts
	c.loadedAt = c.now()
	return opts, nil
}

// Invalidate drops the cached options.
func (c *FilterOptionsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = nil
}

// fresh must be called with c.mu held.
func (c *FilterOptionsCache) fresh() bool {
	return c.options != nil && c.now().Sub(c.loadedAt) < c.ttl
}
