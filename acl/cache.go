package acl

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStrategyCacheSize bounds the process-wide strategy cache.
const DefaultStrategyCacheSize = 256

// strategyCache caches parsed strategies per resource type. Strategies are
// read-heavy and write-rare, so decision checks should not hit storage for
// every call. Absence is cached too: coarse-grained resource types would
// otherwise miss on every check.
//
// A cached *Strategy is immutable after parse, so replacing the cache value
// on invalidation publishes a new chain atomically; readers never observe a
// half-updated one.
//
// Writes carry a generation: a lookup that missed snapshots the generation
// before reading storage, and its result is discarded when an invalidation
// landed in between. A stale read can therefore never re-install an absent
// or outdated strategy after CreateStrategy committed.
type strategyCache struct {
	mu      sync.Mutex
	gen     uint64
	entries *lru.Cache[string, *Strategy]
}

func newStrategyCache(size int) *strategyCache {
	if size < 1 {
		size = DefaultStrategyCacheSize
	}
	entries, err := lru.New[string, *Strategy](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &strategyCache{entries: entries}
}

// get returns the cached strategy and whether the lookup was a hit.
// A hit with a nil strategy means the resource type is known to have none.
func (c *strategyCache) get(resourceType string) (*Strategy, bool) {
	return c.entries.Get(resourceType)
}

// generation returns the snapshot to pass to put after a miss.
func (c *strategyCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// put records a storage lookup result, unless an invalidation happened
// after the caller snapshotted the generation.
func (c *strategyCache) put(resourceType string, s *Strategy, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries.Add(resourceType, s)
}

func (c *strategyCache) invalidate(resourceType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries.Remove(resourceType)
}
