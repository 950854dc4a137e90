package lsm

import (
	"container/list"
	"sync"

	"github.com/dd0wney/cluso-kv/pkg/command"
)

// PartitionCache is an LRU cache of decoded SSTable partitions shared by all
// tables of a store. A nil *PartitionCache is valid and caches nothing.
type PartitionCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[partitionKey]*list.Element
	lru      *list.List

	// Statistics
	hits   int64
	misses int64
}

type partitionKey struct {
	table string
	part  int
}

type cacheEntry struct {
	key   partitionKey
	value *command.Partition
}

// NewPartitionCache creates a cache holding up to capacity partitions.
// A non-positive capacity returns nil, which disables caching.
func NewPartitionCache(capacity int) *PartitionCache {
	if capacity <= 0 {
		return nil
	}
	return &PartitionCache{
		capacity: capacity,
		cache:    make(map[partitionKey]*list.Element),
		lru:      list.New(),
	}
}

// Get retrieves a decoded partition
func (pc *PartitionCache) Get(table string, part int) (*command.Partition, bool) {
	if pc == nil {
		return nil, false
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if elem, ok := pc.cache[partitionKey{table, part}]; ok {
		// Move to front (most recently used)
		pc.lru.MoveToFront(elem)
		pc.hits++
		return elem.Value.(*cacheEntry).value, true
	}

	pc.misses++
	return nil, false
}

// Put adds a decoded partition
func (pc *PartitionCache) Put(table string, part int, p *command.Partition) {
	if pc == nil {
		return
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	key := partitionKey{table, part}
	if elem, ok := pc.cache[key]; ok {
		pc.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = p
		return
	}

	pc.cache[key] = pc.lru.PushFront(&cacheEntry{key: key, value: p})

	// Evict if over capacity
	if pc.lru.Len() > pc.capacity {
		if elem := pc.lru.Back(); elem != nil {
			pc.lru.Remove(elem)
			delete(pc.cache, elem.Value.(*cacheEntry).key)
		}
	}
}

// Evict drops every partition of table
func (pc *PartitionCache) Evict(table string) {
	if pc == nil {
		return
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for key, elem := range pc.cache {
		if key.table == table {
			pc.lru.Remove(elem)
			delete(pc.cache, key)
		}
	}
}

// Stats returns cache statistics
func (pc *PartitionCache) Stats() (hits, misses int64, hitRate float64) {
	if pc == nil {
		return 0, 0, 0
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	hits = pc.hits
	misses = pc.misses
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}

// Size returns the current number of cached partitions
func (pc *PartitionCache) Size() int {
	if pc == nil {
		return 0
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.lru.Len()
}
