package catalog

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hitoshi/movieverse/internal/model"
)

// SuggestionLimit は検索候補の最大件数。
const SuggestionLimit = 5

// FilterByGenre は指定ジャンルを含む作品をカタログ順で返す。大文字小文字は区別しない。
func FilterByGenre(movies []model.Movie, genre string) []model.Movie {
	genre = strings.TrimSpace(genre)
	out := []model.Movie{}
	if genre == "" {
		return out
	}
	for _, m := range movies {
		for _, g := range m.Genre {
			if strings.EqualFold(g, genre) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Search はタイトル・説明・ジャンルのいずれかに query を含む作品を返す。
func Search(movies []model.Movie, query string) []model.Movie {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []model.Movie{}
	if q == "" {
		return out
	}
	for _, m := range movies {
		if matches(m, q) {
			out = append(out, m)
		}
	}
	return out
}

// SearchTitles はタイトルのみを対象に検索する。検索結果ページで使う。
func SearchTitles(movies []model.Movie, query string) []model.Movie {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []model.Movie{}
	if q == "" {
		return out
	}
	for _, m := range movies {
		if strings.Contains(strings.ToLower(m.Title), q) {
			out = append(out, m)
		}
	}
	return out
}

// Suggest は入力中のクエリに対する候補を最大 SuggestionLimit 件返す。
func Suggest(movies []model.Movie, query string) []model.Movie {
	found := Search(movies, query)
	if len(found) > SuggestionLimit {
		found = found[:SuggestionLimit]
	}
	return found
}

func matches(m model.Movie, q string) bool {
	if strings.Contains(strings.ToLower(m.Title), q) {
		return true
	}
	if m.Description != "" && strings.Contains(strings.ToLower(m.Description), q) {
		return true
	}
	genres := strings.Join(m.Genre, ", ")
	return genres != "" && strings.Contains(strings.ToLower(genres), q)
}

// SortByYearDesc は公開年の新しい順に並べた新しいスライスを返す。
// 数値として読めない年は 0 とみなし、同じ年の作品はカタログ順を保つ。
func SortByYearDesc(movies []model.Movie) []model.Movie {
	out := slices.Clone(movies)
	slices.SortStableFunc(out, func(a, b model.Movie) int {
		return YearValue(b) - YearValue(a)
	})
	return out
}

// TopRated は評価が 0 より大きい作品を評価の高い順に返す。
func TopRated(movies []model.Movie) []model.Movie {
	out := []model.Movie{}
	for _, m := range movies {
		if RatingValue(m) > 0 {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Movie) int {
		ra, rb := RatingValue(a), RatingValue(b)
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Genres はカタログに現れるジャンルを先頭大文字に揃え、重複を除いて昇順で返す。
func Genres(movies []model.Movie) []string {
	upper := cases.Upper(language.Und)
	lower := cases.Lower(language.Und)
	seen := map[string]string{}
	for _, m := range movies {
		for _, g := range m.Genre {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			first, rest := splitFirstRune(g)
			normalized := upper.String(first) + lower.String(rest)
			seen[lower.String(normalized)] = normalized
		}
	}
	out := make([]string, 0, len(seen))
	for _, g := range seen {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

func splitFirstRune(s string) (string, string) {
	for i := range s {
		if i > 0 {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

// Related は詳細ページ下部に並べる作品を返す。
// 同じジャンルの作品を先に、その他の作品を後に並べ、タイトルが同じ作品は除く。
func Related(movies []model.Movie, current model.Movie) []model.Movie {
	var same, other []model.Movie
	for _, m := range movies {
		if m.ID == current.ID || strings.EqualFold(m.Title, current.Title) {
			continue
		}
		if sharesGenre(m, current) {
			same = append(same, m)
		} else {
			other = append(other, m)
		}
	}
	return append(append([]model.Movie{}, same...), other...)
}

func sharesGenre(a, b model.Movie) bool {
	for _, ga := range a.Genre {
		for _, gb := range b.Genre {
			if strings.EqualFold(ga, gb) {
				return true
			}
		}
	}
	return false
}

// FindByTitle はタイトルの完全一致（大文字小文字を無視）で作品を探す。
func FindByTitle(movies []model.Movie, title string) (model.Movie, bool) {
	for _, m := range movies {
		if strings.EqualFold(m.Title, title) {
			return m, true
		}
	}
	return model.Movie{}, false
}

// ByIDs は ids に含まれる作品をカタログ順で返す。
// カタログに存在しないIDは無視する。
func ByIDs(movies []model.Movie, ids []string) []model.Movie {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := []model.Movie{}
	for _, m := range movies {
		if _, ok := set[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

// YearValue は公開年を整数として読む。先頭の数字列のみを使い、読めなければ 0。
func YearValue(m model.Movie) int {
	s := strings.TrimSpace(m.Year)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// RatingValue は評価を数値として読む。読めなければ 0。
func RatingValue(m model.Movie) float64 {
	s := strings.TrimSpace(m.Rating)
	end := 0
	dot := false
	for end < len(s) {
		c := s[end]
		if c == '.' && !dot {
			dot = true
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}
