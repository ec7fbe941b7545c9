package kvclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/brbranch/kvstore/internal/model"
)

// maxLineSize はJSONL 1行の最大サイズ
const maxLineSize = 16 * 1024 * 1024

// Putter はIngestの書き込み先
type Putter interface {
	Put(ctx context.Context, key, text string, embedding []byte) (bool, error)
}

// IngestStats はIngestの結果
type IngestStats struct {
	Total       int
	Overwritten int
}

// Ingest はJSONLのChunkRecordを1行ずつ読み、Putする
// 空行は読み飛ばす。不正な行があった場合は行番号付きのエラーを返す（それまでの行は書き込み済み）
func Ingest(ctx context.Context, dst Putter, r io.Reader) (IngestStats, error) {
	var stats IngestStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var rec model.ChunkRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return stats, fmt.Errorf("line %d: invalid record: %w", line, err)
		}
		key, err := rec.Key()
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}

		overwritten, err := dst.Put(ctx, key, rec.Text, EncodeEmbedding(rec.Embedding))
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		stats.Total++
		if overwritten {
			stats.Overwritten++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read records: %w", err)
	}

	return stats, nil
}
