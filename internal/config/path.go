// Package config loads and validates kvstore configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brbranch/kvstore/internal/model"
)

const (
	// DefaultConfigDir はデフォルトの設定ディレクトリ名
	DefaultConfigDir = ".kvstore"
	// DefaultConfigFile はデフォルトの設定ファイル名
	DefaultConfigFile = "config.yaml"
	// DefaultDataSubDir はデフォルトのデータサブディレクトリ名
	DefaultDataSubDir = "data"
	// DefaultSnapshotFile はデフォルトのスナップショットファイル名
	DefaultSnapshotFile = "kvstore.snap"
)

// ExpandTilde は"~"をホームディレクトリに展開する
// "~/" で始まる場合のみ展開し、それ以外はそのまま返す
func ExpandTilde(path string) (string, error) {
	// "~" のみ、または "~/" で始まる場合のみ展開
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	// それ以外（"~user" など）はそのまま返す
	return path, nil
}

// ExpandPaths は設定中のパスの"~"を展開する
// 設定ファイル・環境変数・CLIフラグを全て反映した後に1度だけ呼ぶ
func ExpandPaths(cfg *model.Config) error {
	expanded, err := ExpandTilde(cfg.Snapshot.Path)
	if err != nil {
		return err
	}
	cfg.Snapshot.Path = expanded
	return nil
}

// GetDefaultConfigPath はデフォルトの設定ファイルパスを返す
// ~/.kvstore/config.yaml
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// GetDefaultDataDir はデフォルトのデータディレクトリを返す
// ~/.kvstore/data
func GetDefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultDataSubDir), nil
}

// EnsureDir はディレクトリが存在することを確認し、なければ作成する
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
