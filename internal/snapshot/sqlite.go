package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/brbranch/kvstore/internal/store"
	_ "modernc.org/sqlite"
)

// SQLitePersister はSQLiteデータベースにスナップショットを保存するPersister実装
//
// chunksテーブル全体を1トランザクションで置き換えるため、読み手が途中状態を見ることはない。
type SQLitePersister struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

var _ Persister = (*SQLitePersister)(nil)

const createChunksSQL = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	embedding BLOB
);
`

// NewSQLitePersister はSQLitePersisterを作成する
// データベースは最初のSave/Loadで開く
func NewSQLitePersister(dbPath string) *SQLitePersister {
	return &SQLitePersister{dbPath: dbPath}
}

// Location はデータベースファイルパスを返す
func (p *SQLitePersister) Location() string {
	return p.dbPath
}

// open はデータベースを開く（開いていなければ）
func (p *SQLitePersister) open() (*sql.DB, error) {
	if p.db != nil {
		return p.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(p.dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", p.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WALモードを有効化
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	p.db = db
	return db, nil
}

// Save はchunksテーブルの内容をスナップショットで置き換える
func (p *SQLitePersister) Save(ctx context.Context, snap *store.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	db, err := p.open()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, createChunksSQL); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks (id, text, embedding) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for key, text := range snap.TextByID {
		if _, err := stmt.ExecContext(ctx, key, text, snap.EmbeddingByID[key]); err != nil {
			return fmt.Errorf("failed to insert chunk %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load はchunksテーブルを読み込む
// データベースファイルがない、またはchunksテーブルがない場合はErrNotExistを返す
func (p *SQLitePersister) Load(ctx context.Context) (*store.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 存在しないファイルを作成しないよう、開く前に確認する
	if p.db == nil {
		if _, err := os.Stat(p.dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
	}

	db, err := p.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'chunks'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	rows, err := db.QueryContext(ctx, "SELECT id, text, embedding FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	snap := store.NewSnapshot()
	for rows.Next() {
		var (
			key       string
			text      string
			embedding []byte
		)
		if err := rows.Scan(&key, &text, &embedding); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if embedding == nil {
			embedding = []byte{}
		}
		snap.TextByID[key] = text
		snap.EmbeddingByID[key] = embedding
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return snap, nil
}

// Close はデータベースをクローズする
func (p *SQLitePersister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
