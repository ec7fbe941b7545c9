// Package store provides the chunk/embedding key-value store core.
package store

import (
	"iter"
)

// Store はチャンクテキストとembeddingを保持するKVストアの抽象インターフェース
//
// 全操作はストア全体で1つの排他ロックの下で実行され、呼び出し順に全順序付けされる。
type Store interface {
	// チャンク操作
	Put(key, text string, embedding []byte) (overwritten bool)
	GetText(key string) (text string, found bool)
	Delete(key string) (deleted bool)

	// 列挙（順序保証なし）
	List() []string

	// 呼び出し時点のembeddingのコピーを返す（以降の変更は反映されない）
	StreamEmbeddings() iter.Seq2[string, []byte]

	// ヘルスチェック
	Health() HealthInfo
	Len() int

	// スナップショット
	Export() *Snapshot
	Restore(snap *Snapshot) error
}
