// Package lsm implements an embedded log-structured merge key-value store.
//
// Writes are appended to a write-ahead log and applied to an in-memory
// MemTable. When the MemTable holds MemTableThreshold keys it is frozen, the
// log is rotated, and the snapshot is written to an immutable SSTable made of
// fixed-count partitions, a sparse index of partition first keys, and a
// 48-byte footer. Reads check the live MemTable, the frozen snapshot, and
// then SSTables from newest to oldest.
//
// SSTables are never compacted.
package lsm
