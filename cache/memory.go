package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory cache with per-entry absolute expiry.
//
// There is no background sweep and no size bound: entries stay until they
// are read after expiry, deleted, or cleared.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// live reports whether the entry is still valid at now.
func (e entry) live(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value from the cache. Returns (nil, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	now := c.now()
	if !e.live(now) {
		c.mu.Lock()
		// A concurrent Set may have replaced the entry since the read lock was dropped.
		if cur, ok := c.entries[key]; ok && !cur.live(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return bytes.Clone(e.value), true
}

// Set stores a copy of value with the given TTL. TTL<=0 is a no-op.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	c.entries[key] = entry{
		value:     bytes.Clone(value),
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()

	return nil
}

// Has reports whether key holds a live value, evicting it if expired.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Delete removes a value and reports whether the key was present.
func (c *MemoryCache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear removes all entries.
func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
