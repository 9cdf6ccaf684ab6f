package resolver

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheSize is the number of resolved tracks kept.
const CacheSize = 100

// Entry is a cached resolution.
type Entry struct {
	Result
	AccessedAt time.Time
}

// Cache is a strict least-recently-accessed cache of resolutions. A hit
// refreshes the entry's recency; inserting past CacheSize evicts the single
// least recently accessed entry.
type Cache struct {
	lru *lru.Cache[string, Entry]
	now func() time.Time
}

// NewCache creates a cache holding up to size entries. onEvict, if not nil,
// is called with the evicted key.
func NewCache(size int, onEvict func(key string)) *Cache {
	var evict func(string, Entry)
	if onEvict != nil {
		evict = func(k string, _ Entry) { onEvict(k) }
	}
	c, err := lru.NewWithEvict[string, Entry](size, evict)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Cache{lru: c, now: time.Now}
}

// Get returns the cached result for key and marks it accessed.
func (c *Cache) Get(key string) (Result, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return Result{}, false
	}
	e.AccessedAt = c.now()
	c.lru.Add(key, e)
	return e.Result, true
}

// Add stores r under key.
func (c *Cache) Add(key string, r Result) {
	c.lru.Add(key, Entry{Result: r, AccessedAt: c.now()})
}

// Peek returns the entry without touching its recency.
func (c *Cache) Peek(key string) (Entry, bool) {
	return c.lru.Peek(key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}
