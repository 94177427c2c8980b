package participant

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a bounded LRU cache whose entries expire after a fixed TTL.
// The clock is injected so expiry is deterministic in tests.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*list.Element
	lru     *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// NewCache creates a cache holding at most maxSize entries for ttl each.
// A nil now defaults to time.Now.
func NewCache[K comparable, V any](maxSize int, ttl time.Duration, now func() time.Time) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		entries: make(map[K]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     now,
	}
}

// Get returns a fresh value and promotes it. Stale entries are evicted.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*cacheEntry[K, V])
	if c.ttl > 0 && c.now().Sub(entry.storedAt) >= c.ttl {
		c.lru.Remove(elem)
		delete(c.entries, key)
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return entry.value, true
}

// Set adds or replaces a value, evicting the least recently used entry when full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry[K, V])
		entry.value = value
		entry.storedAt = c.now()
		c.lru.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.maxSize {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.lru.Remove(back)
		delete(c.entries, back.Value.(*cacheEntry[K, V]).key)
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry[K, V]{key: key, value: value, storedAt: c.now()})
}

// Delete removes a key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.Remove(elem)
		delete(c.entries, key)
	}
}

// Len returns the number of entries, including stale ones not yet evicted.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
