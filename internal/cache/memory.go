package cache

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the L1 tier. Items expire after a TTL and the oldest
// insertions are dropped once the byte budget is exceeded.
type MemoryCache struct {
	items    *gocache.Cache
	capacity int64
	size     atomic.Int64

	mu    sync.Mutex
	order []string // insertion order, oldest first
	stats Stats
}

// NewMemoryCache creates a memory cache holding up to capacity bytes.
// A ttl of zero keeps items until they are evicted for space.
func NewMemoryCache(capacity int64, ttl time.Duration) *MemoryCache {
	expiration, cleanup := gocache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, ttl/2
	}

	c := &MemoryCache{
		items:    gocache.New(expiration, cleanup),
		capacity: capacity,
		stats:    Stats{Capacity: capacity},
	}
	c.items.OnEvicted(func(key string, v interface{}) {
		c.size.Add(-int64(len(v.(Entry).Data)))
		c.mu.Lock()
		c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
		c.mu.Unlock()
	})
	return c
}

// Get retrieves an entry from the cache, or ErrCacheMiss.
func (c *MemoryCache) Get(key string) (Entry, error) {
	v, ok := c.items.Get(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.LastAccess = time.Now()
	if !ok {
		c.stats.Misses++
		return Entry{}, ErrCacheMiss
	}
	c.stats.Hits++
	return v.(Entry), nil
}

// Put stores an entry, evicting the oldest ones when over capacity.
func (c *MemoryCache) Put(key string, e Entry) error {
	n := int64(len(e.Data))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	// OnEvicted keeps size and order in step
	c.items.Delete(key)
	c.items.SetDefault(key, e)
	c.size.Add(n)

	c.mu.Lock()
	c.order = append(c.order, key)
	c.mu.Unlock()

	for c.size.Load() > c.capacity {
		c.mu.Lock()
		if len(c.order) == 0 {
			c.mu.Unlock()
			break
		}
		oldest := c.order[0]
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
		c.mu.Unlock()

		c.items.Delete(oldest)
	}
	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(key string) {
	c.items.Delete(key)
}

// Clear removes every entry.
func (c *MemoryCache) Clear() {
	for key := range c.items.Items() {
		c.items.Delete(key)
	}
}

// Contains reports whether key is cached and unexpired.
func (c *MemoryCache) Contains(key string) bool {
	_, ok := c.items.Get(key)
	return ok
}

// Size returns the bytes held.
func (c *MemoryCache) Size() int64 {
	return c.size.Load()
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size.Load()
	stats.ItemCount = int64(c.items.ItemCount())
	stats.updateHitRate()
	return stats
}
