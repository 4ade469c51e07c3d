// Package catalog は作品カタログの取得・正規化・キャッシュ・検索を提供する。
package catalog

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/hitoshi/movieverse/internal/model"
)

// Sanitizer はカタログ文字列の無害化インターフェース。security.TextSanitizerが実装する。
type Sanitizer interface {
	Text(raw string) string
	URL(raw string) string
}

// passthrough は無害化を行わないSanitizer。
type passthrough struct{}

func (passthrough) Text(raw string) string { return strings.TrimSpace(raw) }
func (passthrough) URL(raw string) string  { return strings.TrimSpace(raw) }

// Normalize はソースから受け取った movies ノードの値を作品リストに変換する。
//
// raw は JSON をデコードした値で、次のいずれかを受け付ける。
//   - nil: 作品なし（空リスト）
//   - map[string]any: キーを作品IDとし、キーの辞書順で並べる
//   - []any: 添字を作品IDとし、null 要素は飛ばす
//
// 作品ノードがオブジェクトでない要素は無視する。
func Normalize(raw any, s Sanitizer) []model.Movie {
	if s == nil {
		s = passthrough{}
	}
	switch data := raw.(type) {
	case map[string]any:
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		movies := make([]model.Movie, 0, len(keys))
		for _, k := range keys {
			fields, ok := data[k].(map[string]any)
			if !ok {
				continue
			}
			movies = append(movies, NormalizeOne(k, fields, s))
		}
		return movies
	case []any:
		movies := make([]model.Movie, 0, len(data))
		for i, v := range data {
			fields, ok := v.(map[string]any)
			if !ok {
				continue
			}
			movies = append(movies, NormalizeOne(strconv.Itoa(i), fields, s))
		}
		return movies
	default:
		return []model.Movie{}
	}
}

// NormalizeOne は1作品分のフィールドを正規化する。
// 同じ意味を持つ複数のフィールド名は先に見つかった空でない値を採用する。
func NormalizeOne(id string, f map[string]any, s Sanitizer) model.Movie {
	if s == nil {
		s = passthrough{}
	}
	year := toString(f["year"])
	rating := toString(f["rating"])
	if rating == "" {
		rating = "0.0"
	}
	poster := s.URL(firstString(f, "posterUrl", "poster"))

	return model.Movie{
		ID:                 id,
		Title:              s.Text(toString(f["title"])),
		Year:               year,
		Genre:              genreList(f["genre"], s),
		Rating:             rating,
		Cast:               textList(f["cast"], s),
		Poster:             poster,
		Banner:             s.URL(firstString(f, "bannerUrl", "backdropUrl", "banner", "poster")),
		Description:        s.Text(firstString(f, "sinhalaDescription", "description")),
		EnglishDescription: s.Text(firstString(f, "description", "englishDescription")),
		TrailerLink:        s.URL(firstString(f, "trailerUrl", "trailerLink")),
		DownloadLink:       s.URL(firstString(f, "telegramBotLink", "downloadLink")),
		Gallery:            urlList(f["gallery"], s),
		ReleaseDate:        firstNonEmpty(s.Text(toString(f["releaseDate"])), year),
		Director:           s.Text(toString(f["director"])),
		Duration:           s.Text(toString(f["duration"])),
		Quality:            s.Text(toString(f["quality"])),
		Language:           s.Text(toString(f["language"])),
	}
}

// toString はJSONのスカラー値を文字列にする。
// 数値は余分な小数部を付けずに表記し、null とオブジェクトは空文字列とする。
func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func firstString(f map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(f[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// genreList はジャンルを配列またはカンマ区切り文字列から取り出す。
// 前後の空白を除去し、空要素は捨てる。
func genreList(v any, s Sanitizer) []string {
	switch x := v.(type) {
	case []any:
		return textList(x, s)
	case []string:
		out := make([]string, 0, len(x))
		for _, g := range x {
			if g = s.Text(g); g != "" {
				out = append(out, g)
			}
		}
		return out
	case string:
		out := []string{}
		for _, part := range strings.Split(x, ",") {
			if g := s.Text(part); g != "" {
				out = append(out, g)
			}
		}
		return out
	default:
		return []string{}
	}
}

func textList(v any, s Sanitizer) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if t := s.Text(toString(item)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func urlList(v any, s Sanitizer) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if u := s.URL(toString(item)); u != "" {
			out = append(out, u)
		}
	}
	return out
}
