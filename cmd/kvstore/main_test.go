package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brbranch/kvstore/internal/bootstrap"
	"github.com/brbranch/kvstore/internal/config"
	"github.com/brbranch/kvstore/internal/model"
	"github.com/brbranch/kvstore/internal/snapshot"
	"github.com/brbranch/kvstore/internal/store"
	"github.com/spf13/cobra"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, context.Background(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "kvstore version dev\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRootCmd_RejectsUnknownArgs(t *testing.T) {
	if _, err := execute(t, context.Background(), "nonsense"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestServeOptions_Apply(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *model.Config)
	}{
		{
			name: "no flags keep config",
			args: nil,
			check: func(t *testing.T, cfg *model.Config) {
				if cfg.Server.Port != config.DefaultPort {
					t.Errorf("Port = %d, want default", cfg.Server.Port)
				}
				if cfg.Snapshot.Path != "/orig.snap" {
					t.Errorf("Snapshot.Path = %q", cfg.Snapshot.Path)
				}
			},
		},
		{
			name: "shorthand port",
			args: []string{"-p", "6001"},
			check: func(t *testing.T, cfg *model.Config) {
				if cfg.Server.Port != 6001 {
					t.Errorf("Port = %d, want 6001", cfg.Server.Port)
				}
			},
		},
		{
			name: "explicit zero port",
			args: []string{"--port", "0"},
			check: func(t *testing.T, cfg *model.Config) {
				if cfg.Server.Port != 0 {
					t.Errorf("Port = %d, want 0", cfg.Server.Port)
				}
			},
		},
		{
			name: "snapshot backend and log level",
			args: []string{"--snapshot", "/tmp/x.db", "--backend", "sqlite", "--log-level", "debug", "--host", "127.0.0.1"},
			check: func(t *testing.T, cfg *model.Config) {
				if cfg.Snapshot.Path != "/tmp/x.db" || cfg.Snapshot.Backend != "sqlite" {
					t.Errorf("Snapshot = %+v", cfg.Snapshot)
				}
				if cfg.Log.Level != "debug" {
					t.Errorf("Log.Level = %q", cfg.Log.Level)
				}
				if cfg.Server.Host != "127.0.0.1" {
					t.Errorf("Host = %q", cfg.Server.Host)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &serveOptions{}
			cmd := &cobra.Command{}
			addServeFlags(cmd, opts)
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			cfg := config.DefaultConfig("/unused")
			cfg.Snapshot.Path = "/orig.snap"
			opts.apply(cmd.Flags())(cfg)
			tt.check(t, cfg)
		})
	}
}

func TestServeCmd_PersistsOnShutdown(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	snapPath := filepath.Join(t.TempDir(), "kv.snap")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "serve", "--host", "127.0.0.1", "--port", "0", "--snapshot", snapPath, "--log-level", "error")
		errCh <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	if _, err := os.Stat(snapPath); err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}
}

func TestServeCmd_CorruptSnapshotFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	snapPath := filepath.Join(t.TempDir(), "kv.snap")
	if err := os.WriteFile(snapPath, []byte("garbage"), 0644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	_, err := execute(t, context.Background(), "--port", "0", "--snapshot", snapPath, "--log-level", "error")
	if !errors.Is(err, snapshot.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestConfigInitCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, context.Background(), "config", "init", "-c", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("unexpected output: %q", out)
	}

	manager, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := manager.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := manager.GetConfig()
	if cfg.Server.Port != config.DefaultPort || cfg.Server.MaxWorkers != config.DefaultMaxWorkers {
		t.Errorf("unexpected config: %+v", cfg.Server)
	}

	if _, err := execute(t, context.Background(), "config", "init", "-c", path); err == nil {
		t.Fatal("expected error when config exists")
	}
	if _, err := execute(t, context.Background(), "config", "init", "-c", path, "--force"); err != nil {
		t.Fatalf("config init --force failed: %v", err)
	}
}

type storePutter struct {
	st *store.MemoryStore
}

func (p storePutter) Put(_ context.Context, key, text string, embedding []byte) (bool, error) {
	return p.st.Put(key, text, embedding), nil
}

func TestRunIngest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chunks.jsonl")
	content := `{"chunk_id":"a","text":"A","embedding":[1]}` + "\n" + `{"chunk_id":"b","text":"B","embedding":[2]}` + "\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	dst := storePutter{st: store.NewMemoryStore()}
	stdin := strings.NewReader(`{"chunk_id":"a","text":"A2","embedding":[1]}`)
	var out bytes.Buffer
	if err := runIngest(context.Background(), dst, []string{file, "-"}, stdin, &out); err != nil {
		t.Fatalf("runIngest failed: %v", err)
	}

	want := file + ": total=2 overwritten=0\n-: total=1 overwritten=1\nall: total=3 overwritten=1\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if text, _ := dst.st.GetText("a"); text != "A2" {
		t.Errorf("GetText(a) = %q, want A2", text)
	}
}

func TestRunIngest_MissingFile(t *testing.T) {
	dst := storePutter{st: store.NewMemoryStore()}
	err := runIngest(context.Background(), dst, []string{filepath.Join(t.TempDir(), "missing.jsonl")}, nil, &bytes.Buffer{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

// TestConfigInitCmd_DefaultPathIsLoaded はconfig initが書いたデフォルトファイルを-cなしで読むことをテスト
func TestConfigInitCmd_DefaultPathIsLoaded(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if _, err := execute(t, context.Background(), "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	defaultPath := filepath.Join(home, config.DefaultConfigDir, config.DefaultConfigFile)
	manager, err := config.NewManager(defaultPath)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := manager.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	manager.Update(func(cfg *model.Config) { cfg.Server.Port = 6001 })
	if err := manager.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	services, cleanup, err := bootstrap.Initialize(context.Background(), "", bootstrap.WithLogWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer cleanup()

	if services.Config.Server.Port != 6001 {
		t.Errorf("Port = %d, want 6001", services.Config.Server.Port)
	}
}
