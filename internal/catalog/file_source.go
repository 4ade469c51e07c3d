package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/hitoshi/movieverse/internal/model"
)

// FileSource はローカルの TOML ファイルからカタログを読む。
// 開発環境やオフライン環境でのシード用で、更新時刻が変わるたびに読み直す。
//
// ファイル形式:
//
//	[movies.ballerina-2025]
//	title = "Ballerina"
//	year = 2025
//	genre = ["Action", "Thriller"]
//	rating = 7.2
type FileSource struct {
	path      string
	interval  time.Duration
	sanitizer Sanitizer
	logger    *slog.Logger
}

// NewFileSource はFileSourceを生成する。interval が 0 以下なら一度だけ読み込む。
func NewFileSource(path string, interval time.Duration, s Sanitizer, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: path, interval: interval, sanitizer: s, logger: logger}
}

// Name はソース名を返す。
func (f *FileSource) Name() string { return "file" }

// Load はファイルを読み込み、正規化した作品リストを返す。
func (f *FileSource) Load() ([]model.Movie, error) {
	var doc map[string]any
	if _, err := toml.DecodeFile(f.path, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", f.path, err)
	}
	return Normalize(doc["movies"], f.sanitizer), nil
}

// Run は初回読み込みの後、更新時刻を監視して変化時に読み直す。
func (f *FileSource) Run(ctx context.Context, emit func([]model.Movie)) error {
	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("stat catalog file: %w", err)
	}
	movies, err := f.Load()
	if err != nil {
		return err
	}
	emit(movies)

	if f.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	modTime := info.ModTime()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		info, err := os.Stat(f.path)
		if err != nil {
			f.logger.Warn("カタログファイルを確認できません", slog.String("path", f.path), slog.String("error", err.Error()))
			continue
		}
		if !info.ModTime().After(modTime) {
			continue
		}
		movies, err := f.Load()
		if err != nil {
			f.logger.Warn("カタログファイルの再読み込みに失敗しました", slog.String("path", f.path), slog.String("error", err.Error()))
			continue
		}
		modTime = info.ModTime()
		emit(movies)
	}
}
