package command

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"append", Append("key", "value")},
		{"append empty value", Append("key", "")},
		{"append empty key", Append("", "v")},
		{"delete", Delete("key")},
		{"unicode", Append("ключ", "значение ✓")},
		{"large value", Append("big", strings.Repeat("x", 1<<16))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.cmd)
			require.NoError(t, err)

			got, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, got)
		})
	}
}

func TestEncodeUnknownKind(t *testing.T) {
	_, err := Encode(Command{Kind: 9, Key: "k"})
	assert.Error(t, err)
}

func TestDecodeRejectsDamage(t *testing.T) {
	good, err := Encode(Append("key", "value"))
	require.NoError(t, err)

	flipped := append([]byte(nil), good...)
	flipped[2] ^= 0xff

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", good[:len(good)-1]},
		{"flipped byte", flipped},
		{"trailing garbage", append(append([]byte(nil), good...), 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorrupt), "want ErrCorrupt, got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	v, ok := Append("k", "v").Resolve()
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	v, ok = Delete("k").Resolve()
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.True(t, Delete("k").IsTombstone())
}

func testRecords(n int) []Command {
	records := make([]Command, 0, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%03d", i)
		if i%4 == 3 {
			records = append(records, Delete(key))
			continue
		}
		records = append(records, Append(key, fmt.Sprintf("value-%d", i)))
	}
	return records
}

func TestPartitionRoundTrip(t *testing.T) {
	for _, c := range []Compression{NoCompression, SnappyCompression, ZstdCompression} {
		t.Run(c.String(), func(t *testing.T) {
			records := testRecords(50)

			blob, err := EncodePartition(records, c)
			require.NoError(t, err)
			assert.Equal(t, byte(c), blob[0])

			p, err := DecodePartition(blob)
			require.NoError(t, err)
			assert.Equal(t, records, p.Records)
			assert.Equal(t, "key000", p.FirstKey())

			cmd, ok := p.Lookup("key003")
			require.True(t, ok)
			assert.True(t, cmd.IsTombstone())

			cmd, ok = p.Lookup("key010")
			require.True(t, ok)
			assert.Equal(t, "value-10", cmd.Value)

			_, ok = p.Lookup("key0105")
			assert.False(t, ok)
		})
	}
}

func TestPartitionEmpty(t *testing.T) {
	blob, err := EncodePartition(nil, NoCompression)
	require.NoError(t, err)

	p, err := DecodePartition(blob)
	require.NoError(t, err)
	assert.Zero(t, p.Len())
	assert.Empty(t, p.FirstKey())
}

func TestPartitionRejectsUnsortedInput(t *testing.T) {
	_, err := EncodePartition([]Command{Append("b", "1"), Append("a", "2")}, NoCompression)
	assert.Error(t, err)

	_, err = EncodePartition([]Command{Append("a", "1"), Append("a", "2")}, NoCompression)
	assert.Error(t, err, "duplicate keys must be rejected")
}

func TestPartitionCorruption(t *testing.T) {
	blob, err := EncodePartition(testRecords(10), SnappyCompression)
	require.NoError(t, err)

	damaged := append([]byte(nil), blob...)
	damaged[len(damaged)-1] ^= 0x01
	_, err = DecodePartition(damaged)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = DecodePartition(blob[:3])
	assert.ErrorIs(t, err, ErrCorrupt)

	unknown := append([]byte(nil), blob...)
	unknown[0] = 0x7f
	_, err = DecodePartition(unknown)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		input   string
		want    Compression
		wantErr bool
	}{
		{"", NoCompression, false},
		{"none", NoCompression, false},
		{"snappy", SnappyCompression, false},
		{"zstd", ZstdCompression, false},
		{"lz4", NoCompression, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompression(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
