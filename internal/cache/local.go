package cache

import (
	"container/list"
	"sync"

	"github.com/stratacache/stratacache/pkg/types"
)

// LocalCache implements the in-process tier: a thread-safe, count-bounded
// LRU. Overflow is handled internally by evicting the least recently used
// entry; a full cache is never surfaced to callers.
type LocalCache struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List
	stats     types.CacheStats
}

type localItem struct {
	key   string
	value []byte
}

// NewLocalCache creates a LocalCache with the given entry capacity.
func NewLocalCache(capacity int) *LocalCache {
	if capacity <= 0 {
		capacity = 500
	}
	return &LocalCache{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value and bumps its recency.
func (c *LocalCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		c.stats.Misses++
		return nil, false
	}

	c.evictList.MoveToFront(element)
	c.stats.Hits++

	item := element.Value.(*localItem)
	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, true
}

// Set stores a value, evicting the least recently used entry on overflow.
func (c *LocalCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	if element, exists := c.items[key]; exists {
		element.Value.(*localItem).value = stored
		c.evictList.MoveToFront(element)
		return
	}

	element := c.evictList.PushFront(&localItem{key: key, value: stored})
	c.items[key] = element

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Delete removes a key. Returns true if the key was present.
func (c *LocalCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		return false
	}

	c.evictList.Remove(element)
	delete(c.items, key)
	return true
}

// Clear removes all entries.
func (c *LocalCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Len returns the current entry count.
func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the current entry capacity.
func (c *LocalCache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Resize changes the entry capacity, evicting as needed. Used by the
// background optimizer.
func (c *LocalCache) Resize(capacity int) {
	if capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = capacity
	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Stats returns cache statistics.
func (c *LocalCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.items)
	stats.Capacity = c.capacity
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (c *LocalCache) evictOldest() {
	element := c.evictList.Back()
	if element == nil {
		return
	}

	item := element.Value.(*localItem)
	c.evictList.Remove(element)
	delete(c.items, item.key)
	c.stats.Evictions++
}

var _ types.LocalCache = (*LocalCache)(nil)
