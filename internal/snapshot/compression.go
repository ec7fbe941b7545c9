package snapshot

import (
	"fmt"

	"github.com/brbranch/kvstore/internal/model"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression はスナップショット本体の圧縮方式
type Compression uint8

const (
	// CompressionNone は無圧縮
	CompressionNone Compression = 0
	// CompressionZSTD はzstdフレーム圧縮
	CompressionZSTD Compression = 1
	// CompressionLZ4 はlz4ブロック圧縮
	CompressionLZ4 Compression = 2
)

// ParseCompression は設定値の文字列をCompressionに変換する
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", model.CompressionNone:
		return CompressionNone, nil
	case model.CompressionZSTD:
		return CompressionZSTD, nil
	case model.CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression: %s", s)
	}
}

// String は設定値と同じ表記を返す
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return model.CompressionNone
	case CompressionZSTD:
		return model.CompressionZSTD
	case CompressionLZ4:
		return model.CompressionLZ4
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// compress はrawを圧縮し、実際に使った方式と一緒に返す
// lz4で縮まない場合は無圧縮で保存する
func compress(c Compression, raw []byte) ([]byte, Compression, error) {
	if len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil

	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, c, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), CompressionZSTD, nil

	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, c, fmt.Errorf("failed to compress lz4 block: %w", err)
		}
		if n == 0 {
			// 圧縮不可
			return raw, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil

	default:
		return nil, c, fmt.Errorf("unknown compression: %s", c)
	}
}

// decompress はstoredを展開してrawLenバイトの本体を返す
func decompress(c Compression, stored []byte, rawLen uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		if uint64(len(stored)) != rawLen {
			return nil, fmt.Errorf("body size mismatch: %d != %d", len(stored), rawLen)
		}
		return stored, nil

	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()

		raw, err := dec.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd body: %w", err)
		}
		if uint64(len(raw)) != rawLen {
			return nil, fmt.Errorf("decompressed size mismatch: %d != %d", len(raw), rawLen)
		}
		return raw, nil

	case CompressionLZ4:
		// lz4の圧縮率上限を超えるサイズはヘッダ破損とみなす
		if rawLen > uint64(len(stored))*255+16 {
			return nil, fmt.Errorf("implausible lz4 body size %d for %d stored bytes", rawLen, len(stored))
		}
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode lz4 body: %w", err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("decompressed size mismatch: %d != %d", n, rawLen)
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("unknown compression: %s", c)
	}
}
