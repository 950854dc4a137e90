package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStorageMetrics() {
	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	r.OperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kv_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	r.WALBytesWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "kv_wal_bytes_written_total",
			Help: "Bytes appended to the write-ahead log, including length prefixes",
		},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_flushes_total",
			Help: "MemTable flushes by outcome",
		},
		[]string{"status"},
	)

	r.FlushDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kv_flush_duration_seconds",
			Help:    "Time spent writing a frozen MemTable to an SSTable",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
	)

	r.MemTableEntries = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kv_memtable_entries",
			Help: "Entries held in the live and frozen MemTables",
		},
		[]string{"state"},
	)

	r.SSTables = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kv_sstables",
			Help: "Number of SSTables consulted by reads",
		},
	)

	r.SSTableBytesRead = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "kv_sstable_bytes_read_total",
			Help: "Bytes read from SSTable data regions by point lookups",
		},
	)

	r.PartitionCacheLookup = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_partition_cache_requests_total",
			Help: "Partition cache lookups by result",
		},
		[]string{"result"},
	)

	r.RecoveredCommands = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_recovered_commands_total",
			Help: "Commands replayed from write-ahead logs at startup",
		},
		[]string{"source"},
	)

	r.SkippedFiles = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "kv_recovery_skipped_files_total",
			Help: "Files ignored during startup because they could not be parsed",
		},
	)
}
