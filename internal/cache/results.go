package cache

import "sync"

// resultEntry is either a finished check result or an in-progress
// marker whose done channel is closed once the owner completes. hits
// counts lookups of the finished result and drives eviction.
type resultEntry struct {
	value any
	done  chan struct{}
	hits  int
	seq   int
}

// ResultCache maps URL fingerprints to finished check results. The
// first worker asking for an unknown fingerprint becomes its owner; any
// concurrent duplicate gets a wait channel instead, blocking until the
// owner stores the result. This gives at-most-once full checks per
// fingerprint even under concurrent duplicate dequeues.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*resultEntry
	checked int
	seq     int
	maxSize int
}

// NewResultCache creates a result cache bounded to maxSize entries.
func NewResultCache(maxSize int) *ResultCache {
	return &ResultCache{
		entries: make(map[string]*resultEntry),
		maxSize: maxSize,
	}
}

// Get returns the finished result for key, or (nil, false) when the key
// is unknown or its check has not completed yet.
func (c *ResultCache) Get(key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.done != nil {
		return nil, false
	}
	e.hits++
	return e.value, true
}

// CheckOrWait registers interest in key. The first caller becomes the
// owner (owner == true) and must eventually call Complete or Cancel.
// Later callers get owner == false and a channel that is closed when
// the result is available. A finished result returns (false, nil).
func (c *ResultCache) CheckOrWait(key string) (owner bool, wait <-chan struct{}) {
	if key == "" {
		// uncacheable, caller always checks
		return true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.seq++
		c.entries[key] = &resultEntry{done: make(chan struct{}), seq: c.seq}
		return true, nil
	}
	if e.done != nil {
		return false, e.done
	}
	e.hits++
	return false, nil
}

// Complete stores the finished result for key and wakes all waiters.
func (c *ResultCache) Complete(key string, value any) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.seq++
		e = &resultEntry{seq: c.seq}
		c.entries[key] = e
	}
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	e.value = value
	c.checked++
	if len(c.entries) > c.maxSize {
		c.evict()
	}
}

// Cancel removes an in-progress marker without storing a result, waking
// all waiters. Used when a check aborts or its result is uncacheable.
func (c *ResultCache) Cancel(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.done != nil {
		close(e.done)
	}
	delete(c.entries, key)
}

// evict removes the least frequently used finished entry, the oldest
// one on equal hit counts. In-progress entries are never evicted.
// Called with the lock held.
func (c *ResultCache) evict() {
	victim := ""
	var min *resultEntry
	for key, e := range c.entries {
		if e.done != nil {
			continue
		}
		if min == nil || e.hits < min.hits || (e.hits == min.hits && e.seq < min.seq) {
			victim, min = key, e
		}
	}
	if min != nil {
		delete(c.entries, victim)
	}
}

// NumChecked returns the total number of completed checks, including
// those whose entries have been evicted since.
func (c *ResultCache) NumChecked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checked
}

// Len returns the number of cached fingerprints.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
