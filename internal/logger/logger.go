// Package logger はアプリケーション全体で使う slog.Logger を組み立てる。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// 出力形式。
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options はロガーの設定。
type Options struct {
	Level  string // debug, info, warn, error。不正な値は info として扱う。
	Format string // json（既定）または text
}

// Setup は構造化ログ出力のslog.Loggerを生成して返す。
// Format が text の場合は開発用に charmbracelet/log のハンドラーを使う。
func Setup(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	if strings.EqualFold(opts.Format, FormatText) {
		handler := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.Level(level),
		})
		return slog.New(handler)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault は構造化ログ出力をグローバルロガーとして設定し、そのロガーを返す。
// writerが nil の場合は os.Stdout に出力する。
func SetupDefault(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, opts)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel はログレベル名をslog.Levelに変換する。
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
