package command

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
)

const partitionHeaderSize = 1 + checksumSize

// Partition is a decoded group of commands stored together in an SSTable.
// Records are in ascending key order.
type Partition struct {
	Records []Command
}

// Len returns the number of records
func (p *Partition) Len() int {
	return len(p.Records)
}

// FirstKey returns the smallest key in the partition
func (p *Partition) FirstKey() string {
	if len(p.Records) == 0 {
		return ""
	}
	return p.Records[0].Key
}

// Lookup finds the command for key
func (p *Partition) Lookup(key string) (Command, bool) {
	i := sort.Search(len(p.Records), func(i int) bool {
		return p.Records[i].Key >= key
	})
	if i < len(p.Records) && p.Records[i].Key == key {
		return p.Records[i], true
	}
	return Command{}, false
}

// EncodePartition serializes records (which must be sorted by key) into a
// self-describing blob.
// Format: compression(1) | crc32(payload)(4) | payload
// where the uncompressed payload is count(uvarint) | count x (recLen(uvarint) | record)
func EncodePartition(records []Command, c Compression) ([]byte, error) {
	raw := binary.AppendUvarint(nil, uint64(len(records)))
	var rec []byte
	for i, cmd := range records {
		if i > 0 && records[i-1].Key >= cmd.Key {
			return nil, fmt.Errorf("encode partition: keys out of order at %d: %q >= %q", i, records[i-1].Key, cmd.Key)
		}

		var err error
		rec, err = AppendEncoded(rec[:0], cmd)
		if err != nil {
			return nil, err
		}
		raw = binary.AppendUvarint(raw, uint64(len(rec)))
		raw = append(raw, rec...)
	}

	payload, err := compress(c, raw)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, partitionHeaderSize+len(payload))
	out = append(out, byte(c))
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(payload))
	return append(out, payload...), nil
}

// DecodePartition parses a blob produced by EncodePartition.
func DecodePartition(b []byte) (*Partition, error) {
	if len(b) < partitionHeaderSize {
		return nil, fmt.Errorf("%w: partition of %d bytes is too short", ErrCorrupt, len(b))
	}

	c := Compression(b[0])
	stored := binary.BigEndian.Uint32(b[1:partitionHeaderSize])
	payload := b[partitionHeaderSize:]
	if computed := crc32.ChecksumIEEE(payload); computed != stored {
		return nil, fmt.Errorf("%w: partition checksum mismatch: stored %08x, computed %08x", ErrCorrupt, stored, computed)
	}

	raw, err := decompress(c, payload)
	if err != nil {
		return nil, err
	}

	count, sz := binary.Uvarint(raw)
	if sz <= 0 {
		return nil, fmt.Errorf("%w: bad partition record count", ErrCorrupt)
	}
	raw = raw[sz:]

	// Each record is at least kind + key length + checksum.
	if count > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: partition claims %d records in %d bytes", ErrCorrupt, count, len(raw))
	}

	p := &Partition{Records: make([]Command, 0, count)}
	for i := uint64(0); i < count; i++ {
		n, sz := binary.Uvarint(raw)
		if sz <= 0 || n > uint64(len(raw)-sz) {
			return nil, fmt.Errorf("%w: record %d: bad length", ErrCorrupt, i)
		}
		raw = raw[sz:]

		cmd, err := Decode(raw[:n])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		p.Records = append(p.Records, cmd)
		raw = raw[n:]
	}

	if len(raw) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in partition", ErrCorrupt, len(raw))
	}
	return p, nil
}
