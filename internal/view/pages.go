package view

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/movieverse/internal/catalog"
	"github.com/hitoshi/movieverse/internal/model"
)

const (
	// HomeSectionSize はホームの各セクションの件数。
	HomeSectionSize = 6
	// GalleryLimit は詳細ページに並べるギャラリー画像の件数。
	GalleryLimit = 3
)

// 空状態のメッセージ。
const (
	MsgNoTrending     = "No trending movies found."
	MsgNoRated        = "No rated movies found."
	MsgNoResults      = "No movies found."
	MsgNoFavorites    = "No favorites yet"
	MsgNoWatchlist    = "Your watchlist is empty"
	MsgLoginFavorites = "Please login to view your favorites"
	MsgLoginWatchlist = "Please login to view your watchlist"
	MsgLoginMyAccount = "Please login to access My Account page"
	joinedDateLayout  = "January 2, 2006"
)

// Home はトップページの表示モデル。
type Home struct {
	Hero        *Card    `json:"hero,omitempty"`
	NewReleases []Card   `json:"newReleases"`
	Trending    []Card   `json:"trending"`
	Recommended []Card   `json:"recommended"`
	Featured    []Card   `json:"featured"`
	Genres      []string `json:"genres"`
}

// RenderHome はトップページを組み立てる。
//
// 新作は公開年の新しい順の先頭6件、トレンドはカタログ順の7〜12件目、
// おすすめは19〜24件目。特集はカタログ順の先頭12件とおすすめに
// 含まれないタイトルの作品すべて。
func RenderHome(movies []model.Movie, state ListState) Home {
	byYear := catalog.SortByYearDesc(movies)
	h := Home{
		NewReleases: Cards(window(byYear, 0, HomeSectionSize), state),
		Trending:    Cards(window(movies, 6, 12), state),
		Recommended: Cards(window(movies, 18, 24), state),
		Genres:      catalog.Genres(movies),
	}

	shown := map[string]struct{}{}
	for _, part := range [][]model.Movie{window(movies, 0, 6), window(movies, 6, 12), window(movies, 18, 24)} {
		for _, m := range part {
			shown[m.Title] = struct{}{}
		}
	}
	featured := []model.Movie{}
	for _, m := range movies {
		if _, ok := shown[m.Title]; !ok {
			featured = append(featured, m)
		}
	}
	h.Featured = Cards(featured, state)

	if len(byYear) > 0 {
		hero := NewCard(byYear[0], state)
		h.Hero = &hero
	}
	return h
}

// window は movies[from:to] を範囲外を詰めて返す。
func window(movies []model.Movie, from, to int) []model.Movie {
	if from >= len(movies) {
		return []model.Movie{}
	}
	return movies[from:min(to, len(movies))]
}

// Detail は作品詳細ページの表示モデル。
type Detail struct {
	Movie           model.Movie `json:"movie"`
	Gallery         []string    `json:"gallery"`
	TrailerEmbedURL string      `json:"trailerEmbedUrl,omitempty"`
	Related         []Card      `json:"related"`
	IsFavorite      bool        `json:"isFavorite"`
	InWatchlist     bool        `json:"inWatchlist"`
}

// RenderDetail は作品詳細ページを組み立てる。
func RenderDetail(movies []model.Movie, m model.Movie, state ListState) Detail {
	card := NewCard(m, state)
	gallery := m.Gallery
	if len(gallery) > GalleryLimit {
		gallery = gallery[:GalleryLimit]
	}
	if gallery == nil {
		gallery = []string{}
	}
	return Detail{
		Movie:           m,
		Gallery:         gallery,
		TrailerEmbedURL: YouTubeEmbedURL(m.TrailerLink),
		Related:         Cards(catalog.Related(movies, m), state),
		IsFavorite:      card.IsFavorite,
		InWatchlist:     card.InWatchlist,
	}
}

// YouTubeEmbedURL は予告編リンクを埋め込みプレーヤーのURLに変換する。
// YouTube 以外のリンクや動画IDを含まないリンクは空文字列を返す。
func YouTubeEmbedURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	var id string
	switch host := strings.ToLower(u.Hostname()); {
	case strings.Contains(host, "youtube.com"):
		id = u.Query().Get("v")
	case strings.Contains(host, "youtu.be"):
		id = strings.TrimPrefix(u.Path, "/")
	}
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/embed/" + url.PathEscape(id) + "?autoplay=1&rel=0"
}

// Listing はページ分割された作品一覧の表示モデル。
type Listing struct {
	Title      string `json:"title"`
	Items      []Card `json:"items"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	TotalItems int    `json:"totalItems"`
	PageSize   int    `json:"pageSize"`
	HasPrev    bool   `json:"hasPrev"`
	HasNext    bool   `json:"hasNext"`
	Empty      string `json:"empty,omitempty"`
}

func newListing(title string, movies []model.Movie, page int, state ListState, empty string) Listing {
	items, current := Paginate(movies, page, PageSize)
	total := TotalPages(len(movies), PageSize)
	l := Listing{
		Title:      title,
		Items:      Cards(items, state),
		Page:       current,
		TotalPages: total,
		TotalItems: len(movies),
		PageSize:   PageSize,
		HasPrev:    current > 1,
		HasNext:    current < total,
	}
	if len(movies) == 0 {
		l.Empty = empty
	}
	return l
}

// RenderTrending は公開年の新しい順の一覧を返す。
func RenderTrending(movies []model.Movie, page int, state ListState) Listing {
	return newListing("Trending", catalog.SortByYearDesc(movies), page, state, MsgNoTrending)
}

// RenderTopRated は評価の高い順の一覧を返す。
func RenderTopRated(movies []model.Movie, page int, state ListState) Listing {
	return newListing("Top IMDb", catalog.TopRated(movies), page, state, MsgNoRated)
}

// RenderGenre はジャンル別の一覧を返す。
func RenderGenre(movies []model.Movie, genre string, page int, state ListState) Listing {
	return newListing(fmt.Sprintf("%s Movies", genre), catalog.FilterByGenre(movies, genre), page, state, MsgNoResults)
}

// RenderSearch はタイトル検索の結果一覧を返す。
func RenderSearch(movies []model.Movie, query string, page int, state ListState) Listing {
	q := strings.TrimSpace(query)
	return newListing(fmt.Sprintf("Search Results for %q", q), catalog.SearchTitles(movies, q), page, state, MsgNoResults)
}

// RenderSuggestions は検索ボックスの候補を返す。
func RenderSuggestions(movies []model.Movie, query string, state ListState) []Card {
	return Cards(catalog.Suggest(movies, query), state)
}

// Collection はお気に入り・ウォッチリストページの表示モデル。
type Collection struct {
	List          model.ListKind `json:"list"`
	Items         []Card         `json:"items"`
	Count         int            `json:"count"`
	LoginRequired bool           `json:"loginRequired"`
	Empty         string         `json:"empty,omitempty"`
}

// RenderCollection は ids に含まれる作品をカタログ順で並べる。
// loggedIn が false の場合はログインを促す空状態を返す。
func RenderCollection(movies []model.Movie, kind model.ListKind, ids []string, loggedIn bool, state ListState) Collection {
	c := Collection{List: kind, Items: []Card{}}
	if !loggedIn {
		c.LoginRequired = true
		c.Empty = MsgLoginFavorites
		if kind == model.ListWatchlist {
			c.Empty = MsgLoginWatchlist
		}
		return c
	}
	c.Items = Cards(catalog.ByIDs(movies, ids), state)
	c.Count = len(c.Items)
	if c.Count == 0 {
		c.Empty = MsgNoFavorites
		if kind == model.ListWatchlist {
			c.Empty = MsgNoWatchlist
		}
	}
	return c
}

// Account はマイアカウントページの表示モデル。
type Account struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Joined         string `json:"joined"`
	Premium        bool   `json:"premium"`
	FavoritesCount int    `json:"favoritesCount"`
	WatchlistCount int    `json:"watchlistCount"`
	WatchedCount   int    `json:"watchedCount"`
}

// RenderAccount はプロフィールとリスト件数からアカウントページを組み立てる。
// 登録日が不明な場合は now を登録日として表示する。
func RenderAccount(p model.Profile, favorites, watchlist int, now time.Time) Account {
	joined := p.CreatedAt
	if joined.IsZero() {
		joined = now
	}
	return Account{
		Username:       p.Username,
		Email:          p.Email,
		Joined:         joined.Format(joinedDateLayout),
		Premium:        p.Premium,
		FavoritesCount: favorites,
		WatchlistCount: watchlist,
		WatchedCount:   len(p.Watched),
	}
}
