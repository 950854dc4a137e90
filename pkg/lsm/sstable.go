package lsm

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-kv/pkg/command"
)

// Query looks up key. A found tombstone is returned with ok == true; the
// caller decides what a Delete means. At most two partitions are read: the
// one starting before key and the one starting at or after it. Cached
// partitions are consulted first and every partition read is cached.
func (sst *SSTable) Query(key string) (command.Command, bool, error) {
	lower, higher := sst.bracket(key)

	candidates := make([]int, 0, 2)
	if lower >= 0 {
		candidates = append(candidates, lower)
	}
	if higher >= 0 {
		candidates = append(candidates, higher)
	}
	if len(candidates) == 0 {
		return command.Command{}, false, nil
	}

	parts := make([]*command.Partition, len(candidates))
	uncached := 0
	for i, idx := range candidates {
		p, ok := sst.cached(idx)
		if !ok {
			uncached++
			continue
		}
		if cmd, found := p.Lookup(key); found {
			return cmd, true, nil
		}
		parts[i] = p
	}
	if uncached == 0 {
		return command.Command{}, false, nil
	}

	blobs, err := sst.load(candidates, parts)
	if err != nil {
		return command.Command{}, false, err
	}

	var hit *command.Command
	for i, idx := range candidates {
		if parts[i] != nil {
			continue
		}
		// Without a cache the second partition is decoded only on a miss
		if hit != nil && sst.cache == nil {
			break
		}
		p, err := command.DecodePartition(blobs[i])
		if err != nil {
			return command.Command{}, false, fmt.Errorf("%w: %s partition %d: %w", ErrCorruptTable, sst.path, idx, err)
		}
		sst.cache.Put(sst.path, idx, p)
		if hit == nil {
			if cmd, ok := p.Lookup(key); ok {
				hit = &cmd
			}
		}
	}

	if hit != nil {
		return *hit, true, nil
	}
	return command.Command{}, false, nil
}

// bracket returns the index positions of the greatest first key below key
// and the smallest first key at or above it, or -1 where none exists.
func (sst *SSTable) bracket(key string) (lower, higher int) {
	i := sort.Search(len(sst.index), func(i int) bool {
		return sst.index[i].Key >= key
	})

	lower, higher = i-1, i
	if higher >= len(sst.index) {
		higher = -1
	}
	return lower, higher
}

// load reads the blobs of the candidates that have no entry in parts with
// a single positioned read.
func (sst *SSTable) load(candidates []int, parts []*command.Partition) ([][]byte, error) {
	blobs := make([][]byte, len(candidates))

	first, last := -1, -1
	for i := range candidates {
		if parts[i] != nil {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}

	start := sst.index[candidates[first]].Offset
	end := sst.index[candidates[last]].End()
	buf := make([]byte, end-start)
	if _, err := sst.reader.ReadAt(buf, int64(start)); err != nil {
		return nil, fmt.Errorf("read %s [%d,%d): %w", sst.path, start, end, err)
	}

	sst.reads.Add(1)
	sst.bytesRead.Add(int64(len(buf)))
	sst.metrics.RecordTableRead(len(buf))

	for i := first; i <= last; i++ {
		if parts[i] != nil {
			continue
		}
		pos := sst.index[candidates[i]].Position
		blobs[i] = buf[pos.Offset-start : pos.End()-start]
	}
	return blobs, nil
}

func (sst *SSTable) cached(idx int) (*command.Partition, bool) {
	if sst.cache == nil {
		return nil, false
	}
	p, ok := sst.cache.Get(sst.path, idx)
	sst.metrics.RecordCacheLookup(ok)
	return p, ok
}

// Path returns the file path
func (sst *SSTable) Path() string {
	return sst.path
}

// ID returns the numeric id parsed from the file name
func (sst *SSTable) ID() int64 {
	return sst.id
}

// Footer returns the parsed footer
func (sst *SSTable) Footer() Footer {
	return sst.footer
}

// Partitions returns the number of partitions
func (sst *SSTable) Partitions() int {
	return len(sst.index)
}

// Info returns a description of the table for inspection
func (sst *SSTable) Info() TableInfo {
	index := make([]IndexEntry, len(sst.index))
	copy(index, sst.index)
	return TableInfo{
		Path:      sst.path,
		Footer:    sst.footer,
		Index:     index,
		SizeBytes: sst.size,
	}
}

// Stats returns data-region read counters
func (sst *SSTable) Stats() TableStats {
	return TableStats{
		Reads:     sst.reads.Load(),
		BytesRead: sst.bytesRead.Load(),
	}
}

// Close releases the file handle and drops cached partitions
func (sst *SSTable) Close() error {
	sst.cache.Evict(sst.path)
	if sst.reader == nil {
		return nil
	}
	err := sst.reader.Close()
	sst.reader = nil
	return err
}
