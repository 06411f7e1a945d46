// Package cache provides the bounded caches shared by all checker
// workers: the anchor cache for per-page artifacts keyed by the
// anchor-stripped URL, and the result cache guaranteeing at most one
// full check per URL fingerprint.
package cache

import "sync"

// AnchorCache stores multiple kinds of data per anchor-stripped URL, so
// that work like anchor extraction happens at most once per page even
// when many links reference it with different fragments. The cache is
// bounded: rechecking a page is preferred over running out of memory.
type AnchorCache struct {
	mu          sync.Mutex
	entries     map[string]map[string]any
	order       []string
	deleteIndex int
	maxSize     int
}

// NewAnchorCache creates an anchor cache holding at most maxSize keys.
// A maxSize of zero disables caching entirely.
func NewAnchorCache(maxSize int) *AnchorCache {
	return &AnchorCache{
		entries: make(map[string]map[string]any),
		maxSize: maxSize,
	}
}

// Get returns the cached payload of the given kind, or nil on a miss.
func (c *AnchorCache) Get(key, kind string) any {
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.entries[key]
	if !ok {
		return nil
	}
	return record[kind]
}

// Put stores a payload under (key, kind). When the cache grows past its
// maximum the oldest inserted key is evicted; updating an existing key
// does not refresh its eviction position.
func (c *AnchorCache) Put(key, kind string, payload any) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.entries[key]
	if !ok {
		record = make(map[string]any)
		c.order = append(c.order, key)
	}
	record[kind] = payload
	c.entries[key] = record
	if len(c.entries) > c.maxSize {
		delete(c.entries, c.order[c.deleteIndex])
		c.deleteIndex++
	}
}

// Len returns the number of cached keys.
func (c *AnchorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
