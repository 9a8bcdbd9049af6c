// Package cache provides a generic, thread-safe LRU cache. Batteries share
// one cache per run for deployment data that several scenarios derive
// parameters from, so the same sample is not fetched once per battery.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Cache is a thread-safe LRU cache.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]*entry[K, V]
	order    *list.List
	capacity int

	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	element *list.Element
}

// New creates a cache holding at most capacity entries; the least recently
// used entry is evicted when full. capacity <= 0 defaults to 100.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache[K, V]{
		items:    make(map[K]*entry[K, V], capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

// Get retrieves a value, marking it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.hits.Add(1)
	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set adds or updates a value, evicting the oldest entry at capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		c.order.MoveToFront(e.element)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	element := c.order.PushFront(key)
	c.items[key] = &entry[K, V]{key: key, value: value, element: element}
}

// evictOldest removes the least recently used entry. Callers hold mu.
func (c *Cache[K, V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	delete(c.items, oldest.Value.(K))
	c.order.Remove(oldest)
	c.evicts.Add(1)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats holds cache counters.
type Stats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
	Evicts   uint64
}

// Stats returns current cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.items)
	c.mu.Unlock()

	return Stats{
		Size:     size,
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Evicts:   c.evicts.Load(),
	}
}
