package lsm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/cluso-kv/pkg/command"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
	"github.com/dd0wney/cluso-kv/pkg/wal"
)

// KVStore is an LSM key-value store. Writes go to the WAL and the live
// MemTable; a full MemTable is frozen and flushed to an SSTable while new
// writes continue into a fresh one. Reads consult live, frozen and then
// SSTables newest first.
type KVStore struct {
	mu sync.RWMutex

	// Write path
	wal    *wal.WAL
	live   *MemTable
	frozen *MemTable // Awaiting flush; nil when live only

	// Read path
	tables []*SSTable // Newest first
	cache  *PartitionCache

	// Configuration
	opts      Options
	tableOpts TableOptions
	storeID   string
	log       logging.Logger
	metrics   *metrics.Registry

	// Flush state
	flushing    bool
	flushDone   chan struct{} // Closed when the running flush ends
	lastTableID int64
	beforeBuild func(path string) // test hook, runs outside the lock

	// State
	closed bool
	failed error // Set when the store can no longer guarantee consistency

	// Statistics
	stats storeStats
}

// storeStats uses lock-free counters for high-frequency operations
type storeStats struct {
	writes        atomic.Int64
	reads         atomic.Int64
	flushes       atomic.Int64
	failedFlushes atomic.Int64
}

// Options configures a KVStore
type Options struct {
	// Dir holds the WAL and SSTables
	Dir string
	// MemTableThreshold is the number of distinct keys that triggers a flush
	MemTableThreshold int
	// PartitionSize is the number of records per SSTable partition
	PartitionSize int
	// Compression is applied to new partitions
	Compression command.Compression
	// SyncWrites fsyncs the WAL on every write
	SyncWrites bool
	// UseMmap reads SSTables through memory maps
	UseMmap bool
	// PartitionCacheSize is the number of decoded partitions kept in memory (0 = off)
	PartitionCacheSize int

	// Logger defaults to logging.DefaultLogger()
	Logger logging.Logger
	// Metrics is optional
	Metrics *metrics.Registry
}

// DefaultOptions returns default store configuration
func DefaultOptions(dir string) Options {
	return Options{
		Dir:               dir,
		MemTableThreshold: 4096,
		PartitionSize:     DefaultPartitionSize,
		Compression:       command.NoCompression,
		SyncWrites:        true,
	}
}

// Validate checks option sanity
func (o Options) Validate() error {
	if o.Dir == "" {
		return fmt.Errorf("data directory is required")
	}
	if o.MemTableThreshold < 1 {
		return fmt.Errorf("memtable threshold must be at least 1, got %d", o.MemTableThreshold)
	}
	if o.PartitionSize < 1 {
		return fmt.Errorf("partition size must be at least 1, got %d", o.PartitionSize)
	}
	if o.Compression > command.ZstdCompression {
		return fmt.Errorf("unknown compression %s", o.Compression)
	}
	if o.PartitionCacheSize < 0 {
		return fmt.Errorf("partition cache size must not be negative, got %d", o.PartitionCacheSize)
	}
	return nil
}

// Stats is a point-in-time snapshot of store statistics
type Stats struct {
	StoreID       string
	Writes        int64
	Reads         int64
	Flushes       int64
	FailedFlushes int64
	Tables        int
	LiveEntries   int
	FrozenEntries int
	Flushing      bool
	WALBytes      int64
	CacheHits     int64
	CacheMisses   int64
}
