package pipeline

import (
	"sync"
	"time"
)

type cachedReading struct {
	value      float64
	observedAt time.Time
}

// ValueCache keeps the last successfully read value per source so a transient
// read failure can be papered over for a bounded time. Each sampler owns a
// private instance; entries are only ever overwritten, never deleted.
type ValueCache struct {
	mu      sync.Mutex
	entries map[string]cachedReading
}

func NewValueCache() *ValueCache {
	return &ValueCache{entries: make(map[string]cachedReading)}
}

// Put unconditionally records value as the last good reading for nodeID.
func (c *ValueCache) Put(nodeID string, value float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nodeID] = cachedReading{value: value, observedAt: now}
}

// Get returns the cached value and its age in whole seconds, if an entry
// exists and is no older than maxAge.
func (c *ValueCache) Get(nodeID string, now time.Time, maxAge time.Duration) (float64, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[nodeID]
	if !ok {
		return 0, 0, false
	}
	age := now.Sub(entry.observedAt)
	if age > maxAge {
		return 0, 0, false
	}
	return entry.value, int(age.Seconds()), true
}
