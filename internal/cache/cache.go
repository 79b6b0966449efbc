// Package cache is a small TTL read-through cache for contract reads. It
// replaces per-request memoization with one injectable instance per process;
// staleness up to the TTL is accepted, so expiry is the only invalidation.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
)

// DefaultTTL bounds staleness of cached contract reads
const DefaultTTL = 30 * time.Second

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a TTL key-value cache safe for concurrent use
type Cache struct {
	clock adapter.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a cache with the given TTL; a zero TTL uses DefaultTTL
func New(clock adapter.Clock, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Key builds a cache key from an endpoint name and its arguments
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get returns the cached value for key if present and unexpired
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key, evicting expired entries opportunistically
func (c *Cache) Set(key string, value interface{}) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 4096 {
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}

	c.entries[key] = entry{value: value, expiresAt: now.Add(c.ttl)}
}

// GetOrLoad returns the cached value for key, or invokes loader and caches
// its result. Errors are never cached.
func (c *Cache) GetOrLoad(ctx context.Context, key string, loader func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	c.Set(key, value)
	return value, nil
}
