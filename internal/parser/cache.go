package parser

import "sync"

// DefaultCacheSize bounds the result cache.
const DefaultCacheSize = 1000

// resultCache is a FIFO cache: when full, the oldest insertion is evicted.
type resultCache struct {
	mu    sync.Mutex
	limit int
	order []string
	items map[string]Result
}

func newResultCache(limit int) *resultCache {
	if limit <= 0 {
		limit = DefaultCacheSize
	}
	return &resultCache{limit: limit, items: make(map[string]Result)}
}

func (c *resultCache) get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return &r, true
}

func (c *resultCache) put(key string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; ok {
		c.items[key] = *r
		return
	}
	if len(c.order) >= c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.order = append(c.order, key)
	c.items[key] = *r
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
