package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingChunkID はchunk_idが存在しない/nullの場合のエラー
var ErrMissingChunkID = errors.New("chunk_id is required")

// ChunkRecord はingestion用JSONLの1行を表す
type ChunkRecord struct {
	ChunkID   *ChunkID  `json:"chunk_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// Key はストアのキーとして使う文字列を返す
func (r *ChunkRecord) Key() (string, error) {
	if r.ChunkID == nil {
		return "", ErrMissingChunkID
	}
	return string(*r.ChunkID), nil
}

// ChunkID は文字列または数値で与えられるチャンクID
// 数値の場合はJSON上の表記をそのまま文字列として扱う
type ChunkID string

// UnmarshalJSON は文字列・数値どちらのchunk_idも受け付ける
func (c *ChunkID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrMissingChunkID
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid chunk_id: %w", err)
		}
		*c = ChunkID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chunk_id must be a string or number: %w", err)
	}
	*c = ChunkID(n.String())
	return nil
}
