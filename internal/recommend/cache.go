package recommend

import (
	"sync"
	"time"
)

// entry stores a cached result with expiry.
type entry struct {
	expiresAt time.Time
	result    Result
}

// Cache keeps recent results per asset id for a TTL.
type Cache struct {
	TTL      time.Duration
	MaxItems int

	now   func() time.Time
	mu    sync.RWMutex
	items map[string]entry
}

func NewCache(ttl time.Duration, maxItems int) *Cache {
	return &Cache{TTL: ttl, MaxItems: maxItems, now: time.Now, items: make(map[string]entry)}
}

// Get returns a live entry for key.
func (c *Cache) Get(key string) (Result, bool) {
	if c == nil || c.TTL <= 0 {
		return Result{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return Result{}, false
	}
	return e.result, true
}

// Put stores r under key until the TTL passes.
func (c *Cache) Put(key string, r Result) {
	if c == nil || c.TTL <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{expiresAt: now.Add(c.TTL), result: r}

	// best-effort cap: drop expired entries first, then arbitrary ones
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k, v := range c.items {
			if !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != key {
				delete(c.items, k)
			}
		}
	}
}

// Len returns the number of stored entries, live or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
