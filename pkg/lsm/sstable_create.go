package lsm

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dd0wney/cluso-kv/pkg/command"
)

// BuildSSTable writes entries, which must be in ascending key order, to a new
// SSTable at path and opens it for queries. Every PartitionSize consecutive
// entries form one partition; the last partition may be smaller. A failed
// build removes the partial file.
func BuildSSTable(path string, entries []command.Command, opts TableOptions) (sst *SSTable, err error) {
	if opts.PartitionSize <= 0 {
		return nil, fmt.Errorf("partition size must be positive, got %d", opts.PartitionSize)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(path)
		}
	}()

	// Note: bufio.NewWriter does not return an error - it always succeeds
	writer := bufio.NewWriter(file)

	footer := Footer{
		PartSize: uint64(opts.PartitionSize),
		Version:  FormatVersion,
	}
	index := make([]IndexEntry, 0, (len(entries)+opts.PartitionSize-1)/opts.PartitionSize)
	offset := uint64(0)

	for start := 0; start < len(entries); start += opts.PartitionSize {
		end := min(start+opts.PartitionSize, len(entries))
		part := entries[start:end]

		blob, err := command.EncodePartition(part, opts.Compression)
		if err != nil {
			return nil, fmt.Errorf("partition at entry %d: %w", start, err)
		}
		if start > 0 && entries[start-1].Key >= part[0].Key {
			return nil, fmt.Errorf("entries out of order at %d", start)
		}

		if _, err := writer.Write(blob); err != nil {
			return nil, err
		}

		index = append(index, IndexEntry{
			Key:      part[0].Key,
			Position: Position{Offset: offset, Length: uint64(len(blob))},
		})
		offset += uint64(len(blob))
	}
	footer.DataLen = offset

	indexBytes := encodeIndex(index)
	footer.IndexStart = offset
	footer.IndexLen = uint64(len(indexBytes))
	if _, err := writer.Write(indexBytes); err != nil {
		return nil, err
	}

	if _, err := writer.Write(footer.MarshalBinary()); err != nil {
		return nil, err
	}

	if err := writer.Flush(); err != nil {
		return nil, err
	}
	if err := file.Sync(); err != nil {
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}

	sst, err = OpenSSTable(path, opts)
	if err != nil {
		return nil, fmt.Errorf("reopen built table: %w", err)
	}
	return sst, nil
}
