package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/brbranch/kvstore/internal/model"
	"github.com/brbranch/kvstore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPersisters は全バックエンドのPersisterを一時ディレクトリに作成する
func newPersisters(t *testing.T) map[string]Persister {
	t.Helper()
	dir := t.TempDir()

	persisters := map[string]Persister{
		"file-none": NewFilePersister(filepath.Join(dir, "none.snap"), CompressionNone),
		"file-zstd": NewFilePersister(filepath.Join(dir, "zstd.snap"), CompressionZSTD),
		"file-lz4":  NewFilePersister(filepath.Join(dir, "lz4.snap"), CompressionLZ4),
		"sqlite":    NewSQLitePersister(filepath.Join(dir, "kv.db")),
	}
	t.Cleanup(func() {
		for _, p := range persisters {
			_ = p.Close()
		}
	})
	return persisters
}

func populatedStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.Put("a", "hi", []byte{0x00, 0x00, 0x80, 0x3F})
	st.Put("", "empty key", nil)
	st.Put("no-text", "", []byte{1, 2, 3, 4, 5, 6, 7, 8})
	st.Put("unicode", "分散システム", []byte{0xFF, 0xFF, 0xFF, 0xFF})
	return st
}

func TestPersistAndLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, p := range newPersisters(t) {
		t.Run(name, func(t *testing.T) {
			src := populatedStore()

			n, err := PersistToDisk(ctx, src, p)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			dst := store.NewMemoryStore()
			keys, found, err := LoadFromDisk(ctx, dst, p)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, 4, keys)

			want := src.Export()
			got := dst.Export()
			assert.Equal(t, want.TextByID, got.TextByID)
			require.Len(t, got.EmbeddingByID, len(want.EmbeddingByID))
			for key, emb := range want.EmbeddingByID {
				assert.Equal(t, len(emb), len(got.EmbeddingByID[key]), "embedding length for %q", key)
				if len(emb) > 0 {
					assert.Equal(t, emb, got.EmbeddingByID[key], "embedding for %q", key)
				}
			}
		})
	}
}

func TestPersist_ReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()

	for name, p := range newPersisters(t) {
		t.Run(name, func(t *testing.T) {
			first := populatedStore()
			_, err := PersistToDisk(ctx, first, p)
			require.NoError(t, err)

			second := store.NewMemoryStore()
			second.Put("only", "one", []byte{9, 9, 9, 9})
			_, err = PersistToDisk(ctx, second, p)
			require.NoError(t, err)

			dst := store.NewMemoryStore()
			_, _, err = LoadFromDisk(ctx, dst, p)
			require.NoError(t, err)
			assert.Equal(t, []string{"only"}, dst.List())
		})
	}
}

func TestLoad_NotExist(t *testing.T) {
	ctx := context.Background()

	for name, p := range newPersisters(t) {
		t.Run(name, func(t *testing.T) {
			st := store.NewMemoryStore()
			keys, found, err := LoadFromDisk(ctx, st, p)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Zero(t, keys)
			assert.Empty(t, st.List())

			// Loadは存在しないファイルを作成しない
			_, statErr := os.Stat(p.Location())
			assert.True(t, os.IsNotExist(statErr), "Load should not create %s", p.Location())
		})
	}
}

func TestPersist_EmptyStore(t *testing.T) {
	ctx := context.Background()

	for name, p := range newPersisters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := PersistToDisk(ctx, store.NewMemoryStore(), p)
			require.NoError(t, err)

			dst := store.NewMemoryStore()
			dst.Put("stale", "x", nil)
			keys, found, err := LoadFromDisk(ctx, dst, p)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Zero(t, keys)
			assert.Empty(t, dst.List())
		})
	}
}

func TestFilePersister_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePersister(filepath.Join(dir, "kv.snap"), CompressionZSTD)

	_, err := PersistToDisk(context.Background(), populatedStore(), p)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"kv.snap"}, names)
}

func TestFilePersister_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "kv.snap")
	p := NewFilePersister(path, CompressionNone)

	_, err := PersistToDisk(context.Background(), populatedStore(), p)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSQLitePersister_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database, just plain text padding it out"), 0644))

	p := NewSQLitePersister(path)
	defer p.Close()

	_, _, err := LoadFromDisk(context.Background(), store.NewMemoryStore(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     model.SnapshotConfig
		wantErr bool
	}{
		{name: "file default", cfg: model.SnapshotConfig{Path: filepath.Join(dir, "a.snap")}},
		{name: "file lz4", cfg: model.SnapshotConfig{Path: filepath.Join(dir, "b.snap"), Backend: "file", Compression: "lz4"}},
		{name: "sqlite", cfg: model.SnapshotConfig{Path: filepath.Join(dir, "c.db"), Backend: "sqlite"}},
		{name: "unknown backend", cfg: model.SnapshotConfig{Path: "x", Backend: "pickle"}, wantErr: true},
		{name: "unknown compression", cfg: model.SnapshotConfig{Path: "x", Compression: "gzip"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			assert.Equal(t, tt.cfg.Path, p.Location())
		})
	}
}

func TestLoad_SortedDeterministicFile(t *testing.T) {
	dir := t.TempDir()
	a := NewFilePersister(filepath.Join(dir, "a.snap"), CompressionNone)
	b := NewFilePersister(filepath.Join(dir, "b.snap"), CompressionNone)

	ctx := context.Background()
	_, err := PersistToDisk(ctx, populatedStore(), a)
	require.NoError(t, err)
	_, err = PersistToDisk(ctx, populatedStore(), b)
	require.NoError(t, err)

	da, err := os.ReadFile(a.Location())
	require.NoError(t, err)
	db, err := os.ReadFile(b.Location())
	require.NoError(t, err)
	assert.True(t, slices.Equal(da, db), "same contents should encode to the same bytes")
}
