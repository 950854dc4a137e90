package lsm

import (
	"io"
	"sync/atomic"

	"github.com/dd0wney/cluso-kv/pkg/command"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
)

// SSTable format (all integers big-endian):
//   [Data region:  partition_1 .. partition_N]
//   [Index region: count(4) | count x (keyLen(uvarint) | key | offset(8) | length(8))]
//   [Footer:       partSize(8) | dataStart(8) | dataLen(8) | indexStart(8) | indexLen(8) | version(8)]
//
// Each partition is a blob produced by command.EncodePartition. The footer is
// read backwards from the end of the file, version first.

const (
	// SSTableExt is the file extension of SSTables
	SSTableExt = ".sst"
	// FooterSize is the fixed size of the footer in bytes
	FooterSize = 6 * 8
	// FormatVersion is written into every footer
	FormatVersion = 1
	// DefaultPartitionSize is the number of records per partition
	DefaultPartitionSize = 64
)

// Position is the byte range of one partition inside an SSTable file
type Position struct {
	Offset uint64
	Length uint64
}

// End returns the offset just past the partition
func (p Position) End() uint64 {
	return p.Offset + p.Length
}

// IndexEntry maps a partition's first key to its position
type IndexEntry struct {
	Key string
	Position
}

// Footer locates the data and index regions of an SSTable
type Footer struct {
	PartSize   uint64
	DataStart  uint64
	DataLen    uint64
	IndexStart uint64
	IndexLen   uint64
	Version    uint64
}

// TableOptions configures building and opening SSTables
type TableOptions struct {
	// PartitionSize is the maximum number of records per partition
	PartitionSize int
	// Compression is applied to partitions written by BuildSSTable
	Compression command.Compression
	// UseMmap serves reads from a memory-mapped file
	UseMmap bool
	// Cache holds decoded partitions; nil disables caching
	Cache *PartitionCache
	// Metrics receives bytes-read counts; nil disables
	Metrics *metrics.Registry
}

// TableStats counts data-region reads made by queries
type TableStats struct {
	Reads     int64
	BytesRead int64
}

// TableInfo describes a published SSTable
type TableInfo struct {
	Path      string
	Footer    Footer
	Index     []IndexEntry
	SizeBytes int64
}

// tableReader is the positioned-read handle behind an SSTable
type tableReader interface {
	io.ReaderAt
	io.Closer
}

// SSTable represents an immutable Sorted String Table on disk
type SSTable struct {
	path    string
	id      int64
	size    int64
	reader  tableReader
	footer  Footer
	index   []IndexEntry
	cache   *PartitionCache
	metrics *metrics.Registry

	reads     atomic.Int64
	bytesRead atomic.Int64
}
