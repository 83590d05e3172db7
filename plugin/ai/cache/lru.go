package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a fixed-capacity LRU with TTL support.
type LRUCache struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front is most recently used
	hits   int64
	misses int64
}

type item struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache(capacity int, defaultTTL time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 256
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}

	return &LRUCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns a copy of the cached value.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	it := el.Value.(*item)
	if !c.now().Before(it.expiresAt) {
		c.remove(el)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return append([]byte(nil), it.value...), true
}

// Set stores a copy of value.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	value = append([]byte(nil), value...)

	if el, ok := c.items[key]; ok {
		it := el.Value.(*item)
		it.value = value
		it.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for len(c.items) >= c.capacity {
		c.remove(c.order.Back())
	}

	c.items[key] = c.order.PushFront(&item{key: key, value: value, expiresAt: expiresAt})
}

// CleanupExpired removes all expired entries and returns how many went.
func (c *LRUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*item).expiresAt) {
			c.remove(el)
			count++
		}
		el = prev
	}
	return count
}

// Stats returns hit and miss counters.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.items), Hits: c.hits, Misses: c.misses}
}

// Size returns the number of entries.
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Must be called with the lock held.
func (c *LRUCache) remove(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(*item).key)
}
