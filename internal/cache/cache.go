package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// NoExpiry stores an entry until it is deleted or the process restarts.
const NoExpiry time.Duration = 0

type entry struct {
	value  any
	expiry time.Time // zero = never
}

// TTLCache is an in-memory key/value store with per-entry expiry. Expired
// entries are evicted lazily when read; there is no background sweeper.
// Contents are lost on restart, so it must never be the only guard against
// duplicate side effects.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	group   singleflight.Group
}

// New returns an empty cache using the wall clock.
func New() *TTLCache {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty cache that reads time from now.
func NewWithClock(now func() time.Time) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the value for key, or false when absent or expired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiry.IsZero() && !c.now().Before(e.expiry) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. ttl == NoExpiry keeps it indefinitely.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	var expiry time.Time
	if ttl > 0 {
		expiry = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiry: expiry}
	c.mu.Unlock()
}

// Delete removes key. Missing keys are ignored.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value for key or calls load once, even when
// several callers ask for the same key concurrently. Only successful loads
// are cached.
func (c *TTLCache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	return v, err
}
