package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// ErrCorrupt is returned when encoded bytes cannot be decoded back into a
// command or partition.
var ErrCorrupt = errors.New("corrupt command encoding")

const checksumSize = 4

// Encode serializes a command.
// Format: kind(1) | keyLen(uvarint) | key | [valueLen(uvarint) | value] | crc32(4)
// The value section is only present for appends.
func Encode(c Command) ([]byte, error) {
	return AppendEncoded(nil, c)
}

// AppendEncoded appends the encoding of c to dst and returns the extended slice.
func AppendEncoded(dst []byte, c Command) ([]byte, error) {
	if !c.Kind.Valid() {
		return nil, fmt.Errorf("encode %s: unknown kind", c.Kind)
	}

	start := len(dst)
	dst = append(dst, byte(c.Kind))
	dst = binary.AppendUvarint(dst, uint64(len(c.Key)))
	dst = append(dst, c.Key...)
	if c.Kind == KindAppend {
		dst = binary.AppendUvarint(dst, uint64(len(c.Value)))
		dst = append(dst, c.Value...)
	}

	sum := crc32.ChecksumIEEE(dst[start:])
	return binary.BigEndian.AppendUint32(dst, sum), nil
}

// Decode parses bytes produced by Encode. The whole slice must be consumed.
func Decode(b []byte) (Command, error) {
	if len(b) < 1+checksumSize {
		return Command{}, fmt.Errorf("%w: record of %d bytes is too short", ErrCorrupt, len(b))
	}

	body := b[:len(b)-checksumSize]
	stored := binary.BigEndian.Uint32(b[len(b)-checksumSize:])
	if computed := crc32.ChecksumIEEE(body); computed != stored {
		return Command{}, fmt.Errorf("%w: checksum mismatch: stored %08x, computed %08x", ErrCorrupt, stored, computed)
	}

	kind := Kind(body[0])
	rest := body[1:]

	key, rest, err := readString(rest)
	if err != nil {
		return Command{}, fmt.Errorf("key: %w", err)
	}

	var c Command
	switch kind {
	case KindAppend:
		value, tail, err := readString(rest)
		if err != nil {
			return Command{}, fmt.Errorf("value: %w", err)
		}
		rest = tail
		c = Append(key, value)
	case KindDelete:
		c = Delete(key)
	default:
		return Command{}, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, uint8(kind))
	}

	if len(rest) != 0 {
		return Command{}, fmt.Errorf("%w: %d trailing bytes after %s", ErrCorrupt, len(rest), kind)
	}
	return c, nil
}

// readString reads a uvarint length followed by that many bytes.
func readString(b []byte) (string, []byte, error) {
	n, sz := binary.Uvarint(b)
	if sz <= 0 {
		return "", nil, fmt.Errorf("%w: bad length prefix", ErrCorrupt)
	}
	b = b[sz:]
	if n > uint64(len(b)) {
		return "", nil, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrCorrupt, n, len(b))
	}
	return string(b[:n]), b[n:], nil
}
