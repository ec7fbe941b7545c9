package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brbranch/kvstore/internal/store"
)

// FilePersister は単一ファイルにスナップショットを保存するPersister実装
type FilePersister struct {
	path        string
	compression Compression
}

var _ Persister = (*FilePersister)(nil)

// NewFilePersister はFilePersisterを作成する
func NewFilePersister(path string, compression Compression) *FilePersister {
	return &FilePersister{
		path:        path,
		compression: compression,
	}
}

// Location はファイルパスを返す
func (p *FilePersister) Location() string {
	return p.path
}

// Save はスナップショットを一時ファイルに書き込んでからリネームで置き換える
func (p *FilePersister) Save(ctx context.Context, snap *store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeFile(snap, p.compression)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return writeFileAtomic(p.path, data)
}

// Load はファイルを読み込んでデコードする
func (p *FilePersister) Load(ctx context.Context) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	return decodeFile(data)
}

// Close は何もしない
func (p *FilePersister) Close() error {
	return nil
}

// writeFileAtomic は同じディレクトリの一時ファイル経由でfilenameを置き換える
func writeFileAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// rename をatomicにするため同じディレクトリに作成
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}
	tmpName = ""

	// renameを永続化するためディレクトリもfsync（失敗は無視）
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}
