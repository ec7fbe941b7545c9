package kvclient

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDimensionMismatch はembeddingの次元が揃っていない場合のエラー
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Index は呼び出し側が所有するembeddingのスナップショット
// Refreshを呼ぶまでサーバー側の変更は反映されない
type Index struct {
	client *Client

	mu      sync.RWMutex
	keys    []string
	vectors map[string][]float32
	dim     int
}

// NewIndex は空のIndexを作成する
func NewIndex(client *Client) *Index {
	return &Index{
		client:  client,
		vectors: make(map[string][]float32),
	}
}

// Refresh はStreamEmbeddingsで全件を取り直してIndexを置き換える
// 空のembeddingは索引に含めない。失敗した場合は以前の内容を保持する
func (idx *Index) Refresh(ctx context.Context) error {
	var keys []string
	vectors := make(map[string][]float32)
	dim := 0

	err := idx.client.StreamEmbeddings(ctx, func(key string, embedding []byte) error {
		if len(embedding) == 0 {
			return nil
		}
		vec, err := DecodeEmbedding(embedding)
		if err != nil {
			return fmt.Errorf("failed to decode embedding %q: %w", key, err)
		}
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return fmt.Errorf("%w: key %q has %d, want %d", ErrDimensionMismatch, key, len(vec), dim)
		}
		if _, ok := vectors[key]; !ok {
			keys = append(keys, key)
		}
		vectors[key] = vec
		return nil
	})
	if err != nil {
		return err
	}

	slices.Sort(keys)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.keys = keys
	idx.vectors = vectors
	idx.dim = dim
	return nil
}

// Len は索引中のembedding数を返す
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keys)
}

// Dim は次元数を返す（空の場合は0）
func (idx *Index) Dim() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Keys はソート済みのキー一覧のコピーを返す
func (idx *Index) Keys() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return slices.Clone(idx.keys)
}

// Vector はキーのembeddingのコピーを返す
func (idx *Index) Vector(key string) ([]float32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	vec, ok := idx.vectors[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(vec), true
}
