package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/brbranch/kvstore/internal/model"
)

// 環境変数名の定数
const (
	EnvPort     = "KVSTORE_PORT"
	EnvSnapshot = "KVSTORE_SNAPSHOT"
	EnvLogLevel = "KVSTORE_LOG_LEVEL"
)

// ApplyEnvOverrides は環境変数による設定上書きを適用する
// config を直接変更する
func ApplyEnvOverrides(config *model.Config) error {
	// ポートの環境変数上書き
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvPort, port)
		}
		config.Server.Port = p
	}

	// スナップショットパスの環境変数上書き（"~"の展開はExpandPathsで行う）
	if path := os.Getenv(EnvSnapshot); path != "" {
		config.Snapshot.Path = path
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		config.Log.Level = level
	}

	return nil
}
