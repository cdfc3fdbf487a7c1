package eval

import (
	"container/list"
	"sync"

	"github.com/roach88/hybridsr/internal/grid"
)

// DefaultCacheSize bounds the number of spectra a Cache holds when
// NewCache is given a non-positive capacity.
const DefaultCacheSize = 256

// Cache is a bounded least-recently-used memo of spectral sub-results,
// keyed by canonical expression text. It is safe for concurrent use.
//
// Entries are only valid for one dataset; using the cache with a different
// dataset discards everything it holds.
type Cache struct {
	mu       sync.Mutex
	capacity int
	owner    *grid.Dataset
	order    *list.List
	items    map[string]*list.Element

	hits, misses int
}

type cacheEntry struct {
	key string
	s   *grid.Spectrum
}

// NewCache returns an empty cache holding at most capacity spectra.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Len returns the number of cached spectra.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// bind must be called with c.mu held.
func (c *Cache) bind(ds *grid.Dataset) {
	if c.owner != ds {
		c.owner = ds
		c.order.Init()
		clear(c.items)
	}
}

func (c *Cache) get(ds *grid.Dataset, key string) (*grid.Spectrum, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bind(ds)
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).s, true
}

func (c *Cache) put(ds *grid.Dataset, key string, s *grid.Spectrum) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bind(ds)
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, s: s})
	for c.order.Len() > c.capacity {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.items, last.Value.(*cacheEntry).key)
	}
}
