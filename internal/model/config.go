package model

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はサーバー全体の設定を表す
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// ServerConfig はgRPCサーバー設定
type ServerConfig struct {
	Host          string   `json:"host" yaml:"host"`                   // 空文字は全インターフェース
	Port          int      `json:"port" yaml:"port"`                   // listenポート
	MaxWorkers    int      `json:"maxWorkers" yaml:"maxWorkers"`       // 同時実行できる呼び出し数
	ShutdownGrace Duration `json:"shutdownGrace" yaml:"shutdownGrace"` // in-flight呼び出しの待機上限
}

// Addr はlisten addressを返す（Hostが空なら全インターフェース）
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SnapshotConfig はスナップショット永続化設定
type SnapshotConfig struct {
	Path        string `json:"path" yaml:"path"`               // スナップショットファイルパス
	Backend     string `json:"backend" yaml:"backend"`         // "file" | "sqlite"
	Compression string `json:"compression" yaml:"compression"` // "none" | "zstd" | "lz4"（file用）
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // "debug" | "info" | "warn" | "error"
	Format string `json:"format" yaml:"format"` // "text" | "json"
}

// Snapshot Backend定数
const (
	SnapshotBackendFile   = "file"
	SnapshotBackendSQLite = "sqlite"
)

// Compression定数
const (
	CompressionNone = "none"
	CompressionZSTD = "zstd"
	CompressionLZ4  = "lz4"
)

// Log Format定数
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Duration は設定ファイル上で "1s" のような文字列として扱うtime.Duration
type Duration time.Duration

// Std はtime.Durationに変換する
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String はtime.Duration形式の文字列を返す
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON はDurationを文字列としてエンコードする
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON は "500ms" 形式の文字列、またはナノ秒の数値を受け付ける
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML はDurationを文字列としてエンコードする
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML は "500ms" 形式の文字列を受け付ける
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
