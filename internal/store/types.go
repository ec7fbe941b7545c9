package store

import (
	"errors"
	"fmt"
)

// Health情報の固定値
const (
	ServerName    = "InMemoryKVStore"
	ServerVersion = "v1"
)

// HealthInfo はHealth操作の結果を表す
type HealthInfo struct {
	Name     string
	Version  string
	KeyCount int // textマッピングの件数
}

// Snapshot はストア全体の内容を表す
// TextByIDとEmbeddingByIDは同じキー集合を持つ
type Snapshot struct {
	TextByID      map[string]string
	EmbeddingByID map[string][]byte
}

// エラー定義
var (
	ErrKeyMismatch = errors.New("text and embedding key sets differ")
)

// NewSnapshot は空のSnapshotを作成する
func NewSnapshot() *Snapshot {
	return &Snapshot{
		TextByID:      make(map[string]string),
		EmbeddingByID: make(map[string][]byte),
	}
}

// Len はスナップショットのキー件数を返す
func (s *Snapshot) Len() int {
	return len(s.TextByID)
}

// Validate は2つのマッピングのキー集合が一致していることを確認する
func (s *Snapshot) Validate() error {
	if len(s.TextByID) != len(s.EmbeddingByID) {
		return fmt.Errorf("%w: %d texts, %d embeddings", ErrKeyMismatch, len(s.TextByID), len(s.EmbeddingByID))
	}
	for key := range s.TextByID {
		if _, ok := s.EmbeddingByID[key]; !ok {
			return fmt.Errorf("%w: key %q has no embedding", ErrKeyMismatch, key)
		}
	}
	return nil
}
