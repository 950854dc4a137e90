package lsm

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const indexEntryFixedSize = 16

// encodeIndex serializes the sparse index
// Format: count(4) | count x (keyLen(uvarint) | key | offset(8) | length(8))
func encodeIndex(index []IndexEntry) []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(index)))
	for _, ie := range index {
		buf = binary.AppendUvarint(buf, uint64(len(ie.Key)))
		buf = append(buf, ie.Key...)
		buf = binary.BigEndian.AppendUint64(buf, ie.Offset)
		buf = binary.BigEndian.AppendUint64(buf, ie.Length)
	}
	return buf
}

// decodeIndex parses an index region and checks it against the footer
func decodeIndex(b []byte, footer Footer) ([]IndexEntry, error) {
	if len(b) < 4 {
		return nil, corruptf("index region of %d bytes", len(b))
	}
	count := binary.BigEndian.Uint32(b)
	b = b[4:]

	if uint64(count) > uint64(len(b)) {
		return nil, corruptf("index claims %d entries in %d bytes", count, len(b))
	}

	index := make([]IndexEntry, 0, count)
	dataEnd := footer.DataStart + footer.DataLen
	next := footer.DataStart

	for i := uint32(0); i < count; i++ {
		keyLen, n := binary.Uvarint(b)
		if n <= 0 || keyLen > uint64(len(b)-n) {
			return nil, corruptf("index entry %d: bad key length", i)
		}
		b = b[n:]
		key := string(b[:keyLen])
		b = b[keyLen:]

		if len(b) < indexEntryFixedSize {
			return nil, corruptf("index entry %d: truncated position", i)
		}
		pos := Position{
			Offset: binary.BigEndian.Uint64(b),
			Length: binary.BigEndian.Uint64(b[8:]),
		}
		b = b[indexEntryFixedSize:]

		if i > 0 && index[i-1].Key >= key {
			return nil, corruptf("index keys out of order at entry %d", i)
		}
		if pos.Offset != next || pos.Length == 0 || pos.End() > dataEnd {
			return nil, corruptf("index entry %d: position %d+%d outside data region", i, pos.Offset, pos.Length)
		}
		next = pos.End()

		index = append(index, IndexEntry{Key: key, Position: pos})
	}

	if len(b) != 0 {
		return nil, corruptf("%d trailing bytes after index", len(b))
	}
	if next != dataEnd {
		return nil, corruptf("partitions cover %d of %d data bytes", next-footer.DataStart, footer.DataLen)
	}
	return index, nil
}

// SSTablePath returns the file path for a table id
func SSTablePath(dir string, id int64) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", id, SSTableExt))
}

// ParseSSTableName extracts the table id from a file name
func ParseSSTableName(name string) (int64, bool) {
	base, ok := strings.CutSuffix(filepath.Base(name), SSTableExt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
