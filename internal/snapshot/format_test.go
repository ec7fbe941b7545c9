package snapshot

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/brbranch/kvstore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *store.Snapshot {
	snap := store.NewSnapshot()
	for _, key := range []string{"a", "b", "c"} {
		snap.TextByID[key] = "text for " + key + string(bytes.Repeat([]byte(" padding"), 32))
		snap.EmbeddingByID[key] = bytes.Repeat([]byte{0x00, 0x00, 0x80, 0x3F}, 64)
	}
	return snap
}

func TestEncodeDecodeFile(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZSTD, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := encodeFile(sampleSnapshot(), c)
			require.NoError(t, err)
			assert.Equal(t, []byte("KVS1"), data[0:4])
			assert.Equal(t, byte(c), data[6], "repetitive data should compress with %s", c)

			snap, err := decodeFile(data)
			require.NoError(t, err)
			assert.Equal(t, sampleSnapshot(), snap)
		})
	}
}

func TestDecodeFile_Corrupt(t *testing.T) {
	valid, err := encodeFile(sampleSnapshot(), CompressionZSTD)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
	}{
		{name: "empty", mutate: func(b []byte) []byte { return nil }},
		{name: "truncated header", mutate: func(b []byte) []byte { return b[:headerSize-1] }},
		{name: "bad magic", mutate: func(b []byte) []byte { b[0] = 'X'; return b }},
		{name: "bad version", mutate: func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:6], 99); return b }},
		{name: "flipped body byte", mutate: func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }},
		{name: "truncated body", mutate: func(b []byte) []byte { return b[:len(b)-3] }},
		{name: "wrong raw length", mutate: func(b []byte) []byte { binary.LittleEndian.PutUint64(b[12:20], 7); return b }},
		{name: "unknown compression", mutate: func(b []byte) []byte { b[6] = 42; return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(valid))
			_, err := decodeFile(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestDecodeFile_KeyMismatch(t *testing.T) {
	snap := store.NewSnapshot()
	snap.TextByID["a"] = "only text"

	data, err := encodeFile(snap, CompressionNone)
	require.NoError(t, err)

	_, err = decodeFile(data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeBody_SkipsUnknownFields(t *testing.T) {
	body := encodeBody(sampleSnapshot())
	// field 15, varint 1
	body = append([]byte{0x78, 0x01}, body...)

	snap, err := decodeBody(body)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
}

func TestParseCompression(t *testing.T) {
	for _, s := range []string{"none", "zstd", "lz4"} {
		c, err := ParseCompression(s)
		require.NoError(t, err)
		assert.Equal(t, s, c.String())
	}

	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	_, err = ParseCompression("snappy")
	assert.Error(t, err)
}
