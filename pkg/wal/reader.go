package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dd0wney/cluso-kv/pkg/command"
)

// Reader decodes WAL records from a stream in write order.
// A Reader is consumed once; it cannot be rewound.
type Reader struct {
	r      *bufio.Reader
	size   int64 // -1 when unknown
	offset int64 // end of the last good record
	header [recordHeaderSize]byte
}

// NewReader reads records from r until EOF.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), size: -1}
}

// NewSizedReader reads records from r, which holds exactly size bytes.
// Knowing the size lets the reader reject an oversized length prefix
// without allocating for it.
func NewSizedReader(r io.Reader, size int64) *Reader {
	return &Reader{r: bufio.NewReader(r), size: size}
}

// Offset returns the byte offset just past the last record Next returned.
func (rd *Reader) Offset() int64 {
	return rd.offset
}

// Next returns the next command. It returns io.EOF at a clean end of the
// stream and an error wrapping ErrCorrupt for a torn or undecodable record.
// A record cut short by the end of the stream additionally wraps ErrTornTail.
func (rd *Reader) Next() (command.Command, error) {
	n, err := io.ReadFull(rd.r, rd.header[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return command.Command{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return command.Command{}, fmt.Errorf("%w: %w: length prefix at offset %d (%d of %d bytes)",
				ErrCorrupt, ErrTornTail, rd.offset, n, recordHeaderSize)
		}
		return command.Command{}, err
	}

	length := int64(binary.BigEndian.Uint32(rd.header[:]))
	if rd.size >= 0 {
		if remaining := rd.size - rd.offset - recordHeaderSize; length > remaining {
			return command.Command{}, fmt.Errorf("%w: %w: record at offset %d claims %d bytes, %d remain",
				ErrCorrupt, ErrTornTail, rd.offset, length, remaining)
		}
	}
	if length > MaxRecordSize {
		return command.Command{}, fmt.Errorf("%w: record at offset %d claims %d bytes, limit is %d",
			ErrCorrupt, rd.offset, length, MaxRecordSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(rd.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return command.Command{}, fmt.Errorf("%w: %w: record at offset %d truncated", ErrCorrupt, ErrTornTail, rd.offset)
		}
		return command.Command{}, err
	}

	cmd, err := command.Decode(payload)
	if err != nil {
		return command.Command{}, fmt.Errorf("%w: record at offset %d: %v", ErrCorrupt, rd.offset, err)
	}

	rd.offset += recordHeaderSize + length
	return cmd, nil
}

// replay feeds every record to handler and returns the offset of the end of
// the last good record.
func replay(rd *Reader, handler func(command.Command) error) (int64, error) {
	for {
		start := rd.Offset()
		cmd, err := rd.Next()
		if err == io.EOF {
			return rd.Offset(), nil
		}
		if err != nil {
			return rd.Offset(), err
		}
		if err := handler(cmd); err != nil {
			return start, fmt.Errorf("failed to replay record at offset %d: %w", start, err)
		}
	}
}
