package store

import (
	"bytes"
	"iter"
	"maps"
	"sync"
)

// MemoryStore はインメモリのStore実装
//
// textByIDとembeddingByIDは常に同じキー集合を持つ。
// embeddingのバイト列は格納後に書き換えない（Putは常に新しいスライスで置き換える）ため、
// ロック外へ参照を渡しても安全。
type MemoryStore struct {
	mu            sync.Mutex
	textByID      map[string]string
	embeddingByID map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore はMemoryStoreを作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		textByID:      make(map[string]string),
		embeddingByID: make(map[string][]byte),
	}
}

// Put はチャンクを追加/上書きする
// 既にキーが存在していた場合はtrueを返す
func (s *MemoryStore) Put(key, text string, embedding []byte) bool {
	// 呼び出し側のバッファから切り離す
	embeddingCopy := bytes.Clone(embedding)
	if embeddingCopy == nil {
		embeddingCopy = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, hasText := s.textByID[key]
	_, hasEmbedding := s.embeddingByID[key]

	s.textByID[key] = text
	s.embeddingByID[key] = embeddingCopy

	return hasText || hasEmbedding
}

// GetText はキーでテキストを取得する
// 存在しない場合は空文字とfalseを返す
func (s *MemoryStore) GetText(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.textByID[key]
	return text, ok
}

// Delete はキーを削除する
// textマッピングに存在していた場合のみtrueを返す
func (s *MemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.textByID[key]

	// 両方のマッピングから必ず削除する
	delete(s.textByID, key)
	delete(s.embeddingByID, key)

	return ok
}

// List は現在の全キーを返す（順序保証なし）
func (s *MemoryStore) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.textByID))
	for key := range s.textByID {
		keys = append(keys, key)
	}
	return keys
}

// StreamEmbeddings は呼び出し時点のembeddingマッピングのコピーを順に返す
// コピーはロック内で取得し、列挙はロック外で行う
func (s *MemoryStore) StreamEmbeddings() iter.Seq2[string, []byte] {
	s.mu.Lock()
	entries := maps.Clone(s.embeddingByID)
	s.mu.Unlock()

	return func(yield func(string, []byte) bool) {
		for key, embedding := range entries {
			if !yield(key, embedding) {
				return
			}
		}
	}
}

// Health はサーバー情報と現在のキー件数を返す
func (s *MemoryStore) Health() HealthInfo {
	s.mu.Lock()
	count := len(s.textByID)
	s.mu.Unlock()

	return HealthInfo{
		Name:     ServerName,
		Version:  ServerVersion,
		KeyCount: count,
	}
}

// Len は現在のキー件数を返す
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.textByID)
}

// Export は両マッピングのコピーを返す
func (s *MemoryStore) Export() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Snapshot{
		TextByID:      maps.Clone(s.textByID),
		EmbeddingByID: maps.Clone(s.embeddingByID),
	}
}

// Restore は両マッピングをスナップショットの内容で丸ごと置き換える
// キー集合が一致しない場合はErrKeyMismatchを返し、ストアは変更しない
func (s *MemoryStore) Restore(snap *Snapshot) error {
	if snap == nil {
		snap = NewSnapshot()
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	textByID := maps.Clone(snap.TextByID)
	embeddingByID := maps.Clone(snap.EmbeddingByID)
	if textByID == nil {
		textByID = make(map[string]string)
	}
	if embeddingByID == nil {
		embeddingByID = make(map[string][]byte)
	}

	s.mu.Lock()
	s.textByID = textByID
	s.embeddingByID = embeddingByID
	s.mu.Unlock()

	return nil
}
