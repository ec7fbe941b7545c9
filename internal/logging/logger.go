// Package logging builds slog loggers from kvstore configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/brbranch/kvstore/internal/model"
)

// ParseLevel はログレベル文字列をslog.Levelに変換する
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// New は設定に従ってwへ出力するLoggerを作成する
func New(cfg model.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case model.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case "", model.LogFormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(handler).With("component", "kvstore"), nil
}

// Discard は全出力を破棄するLoggerを返す（テスト用）
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
