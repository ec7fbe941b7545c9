// Package snapshot persists and restores full store snapshots.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/brbranch/kvstore/internal/model"
	"github.com/brbranch/kvstore/internal/store"
)

// エラー定義
var (
	// ErrNotExist はスナップショットがまだ保存されていないことを表す
	ErrNotExist = errors.New("snapshot does not exist")
	// ErrCorrupt はスナップショットが存在するが読み取れないことを表す
	ErrCorrupt = errors.New("snapshot is corrupt")
)

// Persister はスナップショットの保存先の抽象インターフェース
//
// Saveは以前のスナップショットを丸ごと置き換え、途中状態を読み手に見せない。
type Persister interface {
	Save(ctx context.Context, snap *store.Snapshot) error
	// スナップショットがない場合はErrNotExistを返す
	Load(ctx context.Context) (*store.Snapshot, error)
	// ログ用の保存先表記
	Location() string
	Close() error
}

// New は設定に応じたPersisterを作成する
func New(cfg model.SnapshotConfig) (Persister, error) {
	switch cfg.Backend {
	case "", model.SnapshotBackendFile:
		compression, err := ParseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return NewFilePersister(cfg.Path, compression), nil
	case model.SnapshotBackendSQLite:
		return NewSQLitePersister(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", cfg.Backend)
	}
}

// PersistToDisk はストアのコピーを取得してPersisterへ保存する
// ロックはコピー取得の間だけ保持され、シリアライズ中は他の操作をブロックしない
func PersistToDisk(ctx context.Context, st store.Store, p Persister) (int, error) {
	snap := st.Export()
	if err := p.Save(ctx, snap); err != nil {
		return 0, fmt.Errorf("failed to persist snapshot to %s: %w", p.Location(), err)
	}
	return snap.Len(), nil
}

// LoadFromDisk はスナップショットが存在すればストアの内容を丸ごと置き換える
// 存在しない場合はストアを変更せずfound=falseを返す
func LoadFromDisk(ctx context.Context, st store.Store, p Persister) (keys int, found bool, err error) {
	snap, err := p.Load(ctx)
	if errors.Is(err, ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load snapshot from %s: %w", p.Location(), err)
	}

	if err := st.Restore(snap); err != nil {
		return 0, true, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snap.Len(), true, nil
}
