// ABOUTME: Generic in-memory TTL cache with oldest-first eviction at capacity
// ABOUTME: GetOrLoad collapses concurrent fills of the same key into one loader call

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxEntries = 100
	DefaultTTL        = 5 * time.Minute
)

type entry[V any] struct {
	value   V
	created time.Time
}

// Options configures a Cache. Zero values fall back to the defaults.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	// Now overrides the clock; tests use it to expire entries.
	Now func() time.Time
}

// Cache is a thread-safe TTL cache. Reads run concurrently; a fill for a
// given key has exactly one writer at a time.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	max     int
	now     func() time.Time
	group   singleflight.Group
}

// New creates a Cache from opts.
func New[K comparable, V any](opts Options) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     opts.TTL,
		max:     opts.MaxEntries,
		now:     opts.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.max <= 0 {
		c.max = DefaultMaxEntries
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.created) > c.ttl {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := c.entries[key]; still && cur.created.Equal(e.created) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entry when full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		c.evictOldest()
	}
	c.entries[key] = entry[V]{value: value, created: c.now()}
}

// Delete removes key from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value for key or calls load to fill it.
// Concurrent callers for the same key share one load; errors are not cached.
// The shared load is detached from any one caller's cancellation: a caller
// whose ctx ends gets ctx.Err() while the others keep waiting.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprint(key), func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// evictOldest drops the entry with the earliest creation time. Caller holds mu.
func (c *Cache[K, V]) evictOldest() {
	var (
		oldest     K
		oldestTime time.Time
		found      bool
	)
	for k, e := range c.entries {
		if !found || e.created.Before(oldestTime) {
			oldest, oldestTime, found = k, e.created, true
		}
	}
	if found {
		delete(c.entries, oldest)
	}
}
