package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/config"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/lsm"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: kvstore [flags] <command> [args]

Commands:
  put <key> <value>   store a value
  get <key>           print the value stored under key
  delete <key>        delete key
  stats               print store statistics
  inspect             list SSTables with their footer and partitions
  load <n>            write n sequential keys (key000000 ...)

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		configFile = flag.String("config", "", "YAML configuration file")
		dir        = flag.String("dir", "", "Data directory (overrides config)")
		threshold  = flag.Int("threshold", 0, "MemTable flush threshold in keys (overrides config)")
		partition  = flag.Int("partition", 0, "Records per SSTable partition (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Dir = *dir
		case "threshold":
			cfg.MemTableThreshold = *threshold
		case "partition":
			cfg.PartitionSize = *partition
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	logger := logging.NewZapLogger(os.Stderr, cfg.Level())
	defer logger.Sync()
	registry := metrics.NewRegistry()

	opts, err := cfg.Options(logger, registry)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := lsm.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}()

	if err := run(store, registry, flag.Args()); err != nil {
		_ = store.Close()
		log.Fatalf("%s failed: %v", flag.Arg(0), err)
	}
}

func run(store *lsm.KVStore, registry *metrics.Registry, args []string) error {
	cmd, args := args[0], args[1:]

	switch cmd {
	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		return store.Append(args[0], args[1])

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		value, found, err := store.Fetch(args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key %q not found", args[0])
		}
		fmt.Println(value)
		return nil

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <key>")
		}
		return store.Delete(args[0])

	case "stats":
		printStats(store, registry)
		return nil

	case "inspect":
		printTables(store)
		return nil

	case "load":
		if len(args) != 1 {
			return fmt.Errorf("usage: load <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		return load(store, n)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func load(store *lsm.KVStore, n int) error {
	start := time.Now()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%06d", i)
		if err := store.Append(key, fmt.Sprintf("value%06d", i)); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	rate := 0.0
	if elapsed > 0 {
		rate = float64(n) / elapsed.Seconds()
	}
	fmt.Printf("Wrote %d keys in %v (%.0f writes/sec)\n", n, elapsed.Round(time.Millisecond), rate)
	fmt.Printf("Tables: %d\n", store.Stats().Tables)
	return nil
}

func printStats(store *lsm.KVStore, registry *metrics.Registry) {
	stats := store.Stats()
	registry.UpdateSystemMetrics()

	fmt.Printf("Store %s (%s)\n", stats.StoreID, store.Dir())
	fmt.Printf("  SSTables:        %d\n", stats.Tables)
	fmt.Printf("  Live entries:    %d\n", stats.LiveEntries)
	fmt.Printf("  Frozen entries:  %d\n", stats.FrozenEntries)
	fmt.Printf("  WAL size:        %.2f KB\n", float64(stats.WALBytes)/1024)
	fmt.Printf("  Flushes:         %d (%d failed)\n", stats.Flushes, stats.FailedFlushes)

	families, err := registry.GetPrometheusRegistry().Gather()
	if err != nil {
		log.Printf("Failed to gather metrics: %v", err)
		return
	}
	fmt.Printf("  Metric families: %d\n", len(families))
}

func printTables(store *lsm.KVStore) {
	tables := store.Tables()
	if len(tables) == 0 {
		fmt.Println("No SSTables")
		return
	}

	for _, t := range tables {
		f := t.Footer
		fmt.Printf("%s  %d bytes  version %d\n", filepath.Base(t.Path), t.SizeBytes, f.Version)
		fmt.Printf("  partition size %d, data [%d,+%d), index [%d,+%d)\n",
			f.PartSize, f.DataStart, f.DataLen, f.IndexStart, f.IndexLen)
		for i, ie := range t.Index {
			fmt.Printf("  %4d  %-24q offset %-8d length %d\n", i, ie.Key, ie.Offset, ie.Length)
		}
	}
}
