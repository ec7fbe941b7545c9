// Package bootstrap provides common initialization logic for kvstore.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brbranch/kvstore/internal/config"
	"github.com/brbranch/kvstore/internal/logging"
	"github.com/brbranch/kvstore/internal/model"
	"github.com/brbranch/kvstore/internal/snapshot"
	"github.com/brbranch/kvstore/internal/store"
)

// Services は初期化されたサービス群を保持
type Services struct {
	Store         store.Store
	Persister     snapshot.Persister
	Config        *model.Config
	ConfigManager *config.Manager
	Logger        *slog.Logger
}

// Persist は現在のストア内容をスナップショットとして保存する
func (s *Services) Persist(ctx context.Context) error {
	keys, err := snapshot.PersistToDisk(ctx, s.Store, s.Persister)
	if err != nil {
		return err
	}
	s.Logger.Info("snapshot persisted", "path", s.Persister.Location(), "keys", keys)
	return nil
}

type options struct {
	overrides []func(*model.Config)
	logWriter io.Writer
}

// Option はInitializeのオプション
type Option func(*options)

// WithOverride は設定ファイル・環境変数の後に適用する上書きを追加する（CLIフラグ用）
func WithOverride(fn func(cfg *model.Config)) Option {
	return func(o *options) {
		o.overrides = append(o.overrides, fn)
	}
}

// WithLogWriter はログの出力先を指定する（デフォルトはstderr）
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// Initialize は設定を読み込み、ストアを作成してスナップショットを復元する
// スナップショットが壊れている場合はエラーを返す（起動を中止する）
func Initialize(ctx context.Context, configPath string, opts ...Option) (*Services, func(), error) {
	o := &options{logWriter: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	// 設定マネージャーの作成
	configManager, err := config.NewManager(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	// 設定ファイルの読み込み
	if err := configManager.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 環境変数 → CLIフラグの順で上書きし、最後にパスを展開
	var overrideErr error
	configManager.Update(func(cfg *model.Config) {
		overrideErr = config.ApplyEnvOverrides(cfg)
		if overrideErr != nil {
			return
		}
		for _, fn := range o.overrides {
			fn(cfg)
		}
		overrideErr = config.ExpandPaths(cfg)
	})
	if overrideErr != nil {
		return nil, nil, overrideErr
	}

	cfg := configManager.GetConfig()
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	// 1. Logger初期化
	logger, err := logging.New(cfg.Log, o.logWriter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// 2. Persister初期化
	persister, err := snapshot.New(cfg.Snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create snapshot persister: %w", err)
	}

	// 3. Store初期化とスナップショット復元
	st := store.NewMemoryStore()
	keys, found, err := snapshot.LoadFromDisk(ctx, st, persister)
	if err != nil {
		persister.Close()
		return nil, nil, err
	}
	if found {
		logger.Info("snapshot loaded", "path", persister.Location(), "backend", cfg.Snapshot.Backend, "keys", keys)
	} else {
		logger.Info("no snapshot found, starting empty", "path", persister.Location())
	}

	cleanup := func() {
		if err := persister.Close(); err != nil {
			logger.Warn("failed to close snapshot persister", "error", err)
		}
	}

	return &Services{
		Store:         st,
		Persister:     persister,
		Config:        cfg,
		ConfigManager: configManager,
		Logger:        logger,
	}, cleanup, nil
}
