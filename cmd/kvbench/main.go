package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/command"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/lsm"
)

func main() {
	dir := flag.String("dir", "./data/kvbench", "Data directory (wiped before the run)")
	writes := flag.Int("writes", 100000, "Number of writes")
	reads := flag.Int("reads", 10000, "Number of reads")
	valueSize := flag.Int("value-size", 256, "Value size in bytes")
	threshold := flag.Int("threshold", 4096, "MemTable flush threshold in keys")
	partition := flag.Int("partition", lsm.DefaultPartitionSize, "Records per SSTable partition")
	compression := flag.String("compression", "none", "Partition compression: none, snappy, zstd")
	useMmap := flag.Bool("mmap", false, "Read SSTables through memory maps")
	cacheSize := flag.Int("cache", 0, "Partition cache size (0 = off)")
	syncWrites := flag.Bool("sync", false, "fsync the WAL on every write")
	flag.Parse()

	if *writes <= 0 {
		log.Fatalf("-writes must be positive")
	}

	comp, err := command.ParseCompression(*compression)
	if err != nil {
		log.Fatalf("Invalid compression: %v", err)
	}

	fmt.Printf("🔥 Cluso KV - LSM Store Benchmark\n")
	fmt.Printf("=================================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Writes: %d\n", *writes)
	fmt.Printf("  Reads: %d\n", *reads)
	fmt.Printf("  Value Size: %d bytes\n", *valueSize)
	fmt.Printf("  Threshold: %d keys, partitions of %d, compression %s\n\n", *threshold, *partition, comp)

	// Clean up old data
	os.RemoveAll(*dir)

	fmt.Printf("📂 Opening store...\n")
	opts := lsm.DefaultOptions(*dir)
	opts.MemTableThreshold = *threshold
	opts.PartitionSize = *partition
	opts.Compression = comp
	opts.UseMmap = *useMmap
	opts.PartitionCacheSize = *cacheSize
	opts.SyncWrites = *syncWrites
	opts.Logger = logging.NewZapLogger(os.Stderr, logging.WarnLevel)

	store, err := lsm.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	value := strings.Repeat("x", *valueSize)
	key := func(i int) string { return fmt.Sprintf("key%010d", i) }

	// Sequential writes
	fmt.Printf("\n📝 Benchmark 1: Sequential Writes\n")
	start := time.Now()
	for i := 0; i < *writes; i++ {
		if err := store.Append(key(i), value); err != nil {
			log.Fatalf("Failed to write: %v", err)
		}
	}
	report("writes", *writes, time.Since(start))
	fmt.Printf("  💾 Data written: %.2f MB\n", float64(*writes**valueSize)/(1024*1024))
	fmt.Printf("  📚 SSTables: %d\n", store.Stats().Tables)

	// Random reads of existing keys
	fmt.Printf("\n📖 Benchmark 2: Random Reads\n")
	found := 0
	start = time.Now()
	for i := 0; i < *reads; i++ {
		_, ok, err := store.Fetch(key(rand.Intn(*writes)))
		if err != nil {
			log.Fatalf("Failed to read: %v", err)
		}
		if ok {
			found++
		}
	}
	report("reads", *reads, time.Since(start))
	fmt.Printf("  ✅ Found: %d/%d\n", found, *reads)

	// Misses touch every table
	fmt.Printf("\n🕳️  Benchmark 3: Missing Keys\n")
	start = time.Now()
	for i := 0; i < *reads; i++ {
		if _, _, err := store.Fetch(fmt.Sprintf("miss%010d", i)); err != nil {
			log.Fatalf("Failed to read: %v", err)
		}
	}
	report("reads", *reads, time.Since(start))

	// Updates and deletes
	fmt.Printf("\n✏️  Benchmark 4: Random Updates and Deletes\n")
	mutations := *writes / 10
	start = time.Now()
	for i := 0; i < mutations; i++ {
		k := key(rand.Intn(*writes))
		if i%4 == 0 {
			err = store.Delete(k)
		} else {
			err = store.Append(k, value)
		}
		if err != nil {
			log.Fatalf("Failed to mutate: %v", err)
		}
	}
	report("mutations", mutations, time.Since(start))

	stats := store.Stats()
	hits, misses := stats.CacheHits, stats.CacheMisses
	fmt.Printf("\n📊 Final Statistics\n")
	fmt.Printf("  SSTables: %d\n", stats.Tables)
	fmt.Printf("  Flushes: %d\n", stats.Flushes)
	fmt.Printf("  Live entries: %d\n", stats.LiveEntries)
	if hits+misses > 0 {
		fmt.Printf("  Cache hit rate: %.1f%%\n", float64(hits)*100/float64(hits+misses))
	}

	fmt.Printf("\n✅ Benchmark complete!\n")
}

func report(what string, n int, d time.Duration) {
	if n == 0 {
		fmt.Printf("  Nothing to do\n")
		return
	}
	fmt.Printf("✅ Completed %d %s in %v\n", n, what, d)
	fmt.Printf("  ⚡ Average: %.1fμs per op\n", float64(d.Microseconds())/float64(n))
	fmt.Printf("  🚀 Throughput: %.0f ops/sec\n", float64(n)/d.Seconds())
}
