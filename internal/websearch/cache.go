package websearch

import (
	"container/list"
	"sync"
	"time"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
)

const (
	DefaultCacheCapacity = 100
	DefaultCacheTTL      = time.Hour
)

// Page is fetched page content converted to markdown
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

// PageCache holds fetched pages keyed by normalised URL. Eviction is by insertion order, not
// by access; reads never refresh an entry.
type PageCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = oldest insertion
	entries  map[string]*list.Element
	now      func() time.Time
}

type cacheEntry struct {
	key      string
	page     Page
	storedAt time.Time
}

// NewPageCache creates a cache; non-positive capacity or ttl use the defaults. A nil clock
// uses time.Now.
func NewPageCache(capacity int, ttl time.Duration, clock func() time.Time) *PageCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &PageCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
		now:      clock,
	}
}

// Get returns a live entry; expired entries are removed
func (c *PageCache) Get(key string) (Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		metrics.PageCacheMisses.Inc()
		return Page{}, false
	}
	ent := el.Value.(cacheEntry)
	if c.now().Sub(ent.storedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		metrics.PageCacheMisses.Inc()
		return Page{}, false
	}
	metrics.PageCacheHits.Inc()
	return ent.page, true
}

// Set stores page under key. Re-setting a key counts as a new insertion. Inserting into a full
// cache evicts the oldest insertion.
func (c *PageCache) Set(key string, page Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(cacheEntry).key)
		metrics.PageCacheEvictions.Inc()
	}
	c.entries[key] = c.order.PushBack(cacheEntry{key: key, page: page, storedAt: c.now()})
}

// Len returns the number of stored entries, expired ones included
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
