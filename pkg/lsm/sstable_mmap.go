package lsm

import (
	"golang.org/x/exp/mmap"
)

// openMappedReader memory-maps an SSTable file. The mapping is read-only,
// which is safe because tables are never modified after they are built.
func openMappedReader(path string) (tableReader, int64, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, 0, err
	}
	return reader, int64(reader.Len()), nil
}
