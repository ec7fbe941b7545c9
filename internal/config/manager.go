package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brbranch/kvstore/internal/model"
	"gopkg.in/yaml.v3"
)

// デフォルト値
const (
	DefaultPort          = 50051
	DefaultMaxWorkers    = 8
	DefaultShutdownGrace = time.Second
	DefaultLogLevel      = "info"
)

// ErrInvalidConfig は設定値が不正な場合のエラー
var ErrInvalidConfig = errors.New("invalid config")

// Manager は設定の読み書きを管理する
type Manager struct {
	mu         sync.RWMutex
	config     *model.Config
	configPath string
}

// NewManager は新しいManagerを作成する
// configPathが空文字の場合、デフォルトパス（~/.kvstore/config.yaml）を使用
func NewManager(configPath string) (*Manager, error) {
	// configPathが空の場合はデフォルトパスを使用
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		configPath = defaultPath
	}

	// デフォルトのデータディレクトリを取得
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get default data dir: %w", err)
	}

	return &Manager{
		config:     DefaultConfig(dataDir),
		configPath: configPath,
	}, nil
}

// Load は設定ファイルを読み込む
// パス未指定（NewManagerWithConfig）、またはファイルが存在しない場合はデフォルト設定を使用（エラーなし）
// ファイルに書かれていない項目はデフォルト値のまま残る
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configPath == "" {
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// デフォルト値の上に重ねてパース
	config := *m.config
	if err := unmarshalConfig(m.configPath, data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	m.config = &config
	return nil
}

// Save は設定ファイルを保存する
func (m *Manager) Save() error {
	m.mu.RLock()
	config := m.config
	path := m.configPath
	m.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("%w: config path is empty", ErrInvalidConfig)
	}

	// ディレクトリを作成
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	data, err := marshalConfig(path, config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 一時ファイルに書き込み（atomicな保存のため）
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	// 一時ファイルを本番ファイルにリネーム
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile) // クリーンアップ
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

// GetConfig は現在の設定を返す
func (m *Manager) GetConfig() *model.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigPath は設定ファイルパスを返す
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Update は設定を関数で書き換える（CLIフラグの反映に使用）
func (m *Manager) Update(fn func(cfg *model.Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config := *m.config
	fn(&config)
	m.config = &config
}

// NewManagerWithConfig は指定した設定でManagerを作成する（テスト用）
func NewManagerWithConfig(cfg *model.Config) *Manager {
	return &Manager{
		config:     cfg,
		configPath: "", // テスト用なので空
	}
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig(dataDir string) *model.Config {
	return &model.Config{
		Server: model.ServerConfig{
			Host:          "",
			Port:          DefaultPort,
			MaxWorkers:    DefaultMaxWorkers,
			ShutdownGrace: model.Duration(DefaultShutdownGrace),
		},
		Snapshot: model.SnapshotConfig{
			Path:        filepath.Join(dataDir, DefaultSnapshotFile),
			Backend:     model.SnapshotBackendFile,
			Compression: model.CompressionZSTD,
		},
		Log: model.LogConfig{
			Level:  DefaultLogLevel,
			Format: model.LogFormatText,
		},
	}
}

// Validate は設定値を検証する
func Validate(cfg *model.Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d (must be 0-65535)", ErrInvalidConfig, cfg.Server.Port)
	}
	if cfg.Server.MaxWorkers < 1 {
		return fmt.Errorf("%w: maxWorkers %d (must be >= 1)", ErrInvalidConfig, cfg.Server.MaxWorkers)
	}
	if cfg.Server.ShutdownGrace < 0 {
		return fmt.Errorf("%w: shutdownGrace %s (must not be negative)", ErrInvalidConfig, cfg.Server.ShutdownGrace)
	}
	if cfg.Snapshot.Path == "" {
		return fmt.Errorf("%w: snapshot path is empty", ErrInvalidConfig)
	}

	switch cfg.Snapshot.Backend {
	case model.SnapshotBackendFile, model.SnapshotBackendSQLite:
	default:
		return fmt.Errorf("%w: snapshot backend %q (must be file or sqlite)", ErrInvalidConfig, cfg.Snapshot.Backend)
	}

	switch cfg.Snapshot.Compression {
	case model.CompressionNone, model.CompressionZSTD, model.CompressionLZ4:
	default:
		return fmt.Errorf("%w: compression %q (must be none, zstd or lz4)", ErrInvalidConfig, cfg.Snapshot.Compression)
	}

	switch cfg.Log.Format {
	case model.LogFormatText, model.LogFormatJSON:
	default:
		return fmt.Errorf("%w: log format %q (must be text or json)", ErrInvalidConfig, cfg.Log.Format)
	}

	return nil
}

// isYAML は拡張子からYAML形式かどうかを判定する
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func unmarshalConfig(path string, data []byte, cfg *model.Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func marshalConfig(path string, cfg *model.Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}
