package execution

import (
	"sync"
	"time"

	"github.com/semlayer/agent-engine/pkg/models"
)

// resultCache is a bounded, insertion-ordered map keyed by the exact
// original SQL string. Entries older than ttl expire on lookup; once size
// exceeds cap, the oldest entry is evicted on insert. Process-global state:
// callers share one instance and serialize access through its mutex.
type resultCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*models.CachedResult
	order    []string
}

func newResultCache(ttl time.Duration, capacity int) *resultCache {
	return &resultCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*models.CachedResult),
	}
}

// get returns the cached result for key if present and not expired. An
// expired entry is evicted on lookup.
func (c *resultCache) get(key string, now time.Time) (*models.CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.CachedAt) > c.ttl {
		c.deleteLocked(key)
		return nil, false
	}
	return entry, true
}

// put inserts or overwrites the entry for key, evicting the oldest entry
// first if the cache is already at capacity.
func (c *resultCache) put(key string, result *models.CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if c.capacity > 0 && len(c.entries) >= c.capacity {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = result
}

func (c *resultCache) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}

func (c *resultCache) deleteLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// reset clears the cache. Exposed so tests don't leak state across cases.
func (c *resultCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.CachedResult)
	c.order = nil
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
