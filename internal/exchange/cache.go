package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/shopspring/decimal"
)

// Cache stores exchange rates keyed by currency pair.
type Cache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool, error)
	Put(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error
}

// CacheKey builds the cache key for a currency pair.
func CacheKey(base, target string) string {
	return base + "_" + target
}

type memoryEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// MemoryCache is a size-bounded LRU whose entries expire a fixed time after
// they were written. Expired entries are dropped when they are next read.
type MemoryCache struct {
	mu    sync.Mutex
	items *simplelru.LRU[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryCache constructs a cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) (*MemoryCache, error) {
	items, err := simplelru.NewLRU[string, memoryEntry](maxSize, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: rate cache: %w", err)
	}
	return &MemoryCache{items: items, now: time.Now}, nil
}

// WithClock overrides the time source. Intended for tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	if now != nil {
		c.now = now
	}
	return c
}

// Get returns the cached rate when present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items.Get(key)
	if !ok {
		return decimal.Decimal{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.items.Remove(key)
		return decimal.Decimal{}, false, nil
	}
	return entry.rate, true, nil
}

// Put stores rate under key for ttl, evicting the least recently used entry
// when the cache is full.
func (c *MemoryCache) Put(_ context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Add(key, memoryEntry{rate: rate, expiresAt: c.now().Add(ttl)})
	return nil
}

// Len reports the number of entries, including expired ones not yet read.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Ping always succeeds; it lets the in-memory cache satisfy readiness checks.
func (c *MemoryCache) Ping(context.Context) error { return nil }
