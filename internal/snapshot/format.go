package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"maps"
	"slices"

	"github.com/brbranch/kvstore/internal/store"
	"google.golang.org/protobuf/encoding/protowire"
)

// ファイルフォーマット
//
//	[0:4]   magic "KVS1"
//	[4:6]   format version (uint16 LE)
//	[6]     compression
//	[7]     reserved
//	[8:12]  CRC32 (IEEE) of the stored body
//	[12:20] uncompressed body length (uint64 LE)
//	[20:]   body
//
// bodyは {text_by_id = 1: map<string,string>, embedding_by_id = 2: map<string,bytes>} の
// protobufワイヤー形式。
const (
	formatVersion = 1
	headerSize    = 20
)

var magic = [4]byte{'K', 'V', 'S', '1'}

// bodyのフィールド番号
const (
	fieldTextByID      protowire.Number = 1
	fieldEmbeddingByID protowire.Number = 2

	// map entry
	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2
)

// encodeFile はスナップショットをファイル内容にエンコードする
func encodeFile(snap *store.Snapshot, c Compression) ([]byte, error) {
	raw := encodeBody(snap)

	stored, used, err := compress(c, raw)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize, headerSize+len(stored))
	copy(out[0:4], magic[:])
	binary.LittleEndian.PutUint16(out[4:6], formatVersion)
	out[6] = byte(used)
	binary.LittleEndian.PutUint32(out[8:12], crc32.ChecksumIEEE(stored))
	binary.LittleEndian.PutUint64(out[12:20], uint64(len(raw)))

	return append(out, stored...), nil
}

// decodeFile はファイル内容をスナップショットにデコードする
// 形式の不整合は全てErrCorruptとして返す
func decodeFile(data []byte) (*store.Snapshot, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: truncated header (%d bytes)", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorrupt, data[0:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, v)
	}

	c := Compression(data[6])
	checksum := binary.LittleEndian.Uint32(data[8:12])
	rawLen := binary.LittleEndian.Uint64(data[12:20])
	stored := data[headerSize:]

	if got := crc32.ChecksumIEEE(stored); got != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrCorrupt, got, checksum)
	}

	raw, err := decompress(c, stored, rawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	snap, err := decodeBody(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snap, nil
}

// encodeBody はキー順にソートしてエンコードする（同じ内容なら同じバイト列になる）
func encodeBody(snap *store.Snapshot) []byte {
	var b, entry []byte

	for _, key := range slices.Sorted(maps.Keys(snap.TextByID)) {
		entry = appendEntry(entry[:0], key, []byte(snap.TextByID[key]))
		b = protowire.AppendTag(b, fieldTextByID, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	for _, key := range slices.Sorted(maps.Keys(snap.EmbeddingByID)) {
		entry = appendEntry(entry[:0], key, snap.EmbeddingByID[key])
		b = protowire.AppendTag(b, fieldEmbeddingByID, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	return b
}

func appendEntry(b []byte, key string, value []byte) []byte {
	b = protowire.AppendTag(b, fieldEntryKey, protowire.BytesType)
	b = protowire.AppendString(b, key)
	b = protowire.AppendTag(b, fieldEntryValue, protowire.BytesType)
	return protowire.AppendBytes(b, value)
}

// decodeBody はbodyをデコードする（未知のフィールドは読み飛ばす）
func decodeBody(b []byte) (*store.Snapshot, error) {
	snap := store.NewSnapshot()

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType || (num != fieldTextByID && num != fieldEmbeddingByID) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		key, value, err := decodeEntry(v)
		if err != nil {
			return nil, err
		}

		switch num {
		case fieldTextByID:
			snap.TextByID[key] = string(value)
		case fieldEmbeddingByID:
			emb := bytes.Clone(value)
			if emb == nil {
				emb = []byte{}
			}
			snap.EmbeddingByID[key] = emb
		}
	}

	return snap, nil
}

func decodeEntry(b []byte) (string, []byte, error) {
	var (
		key   string
		value []byte
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType || (num != fieldEntryKey && num != fieldEntryValue) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		b = b[n:]

		if num == fieldEntryKey {
			key = string(v)
		} else {
			value = v
		}
	}

	return key, value, nil
}
