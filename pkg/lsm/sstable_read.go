package lsm

import (
	"fmt"
	"os"
)

// OpenSSTable restores an SSTable from disk. Only the footer and the index
// region are read; partitions are loaded on demand by Query.
func OpenSSTable(path string, opts TableOptions) (*SSTable, error) {
	reader, size, err := openTableReader(path, opts.UseMmap)
	if err != nil {
		return nil, err
	}

	footer, err := readFooter(reader, size)
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("read footer of %s: %w", path, err)
	}

	indexBytes := make([]byte, footer.IndexLen)
	if _, err := reader.ReadAt(indexBytes, int64(footer.IndexStart)); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("read index of %s: %w", path, err)
	}

	index, err := decodeIndex(indexBytes, footer)
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("decode index of %s: %w", path, err)
	}

	id, _ := ParseSSTableName(path)

	return &SSTable{
		path:    path,
		id:      id,
		size:    size,
		reader:  reader,
		footer:  footer,
		index:   index,
		cache:   opts.Cache,
		metrics: opts.Metrics,
	}, nil
}

// openTableReader opens path for positioned reads and returns its size
func openTableReader(path string, useMmap bool) (tableReader, int64, error) {
	if useMmap {
		return openMappedReader(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}
