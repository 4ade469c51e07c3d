package view

import "github.com/hitoshi/movieverse/internal/model"

// ListState はカードのアイコン状態を引くためのインターフェース。favorites.Storeが実装する。
type ListState interface {
	IsFavorite(movieID string) bool
	IsInWatchlist(movieID string) bool
}

// noLists は未ログイン時の ListState。
type noLists struct{}

func (noLists) IsFavorite(string) bool    { return false }
func (noLists) IsInWatchlist(string) bool { return false }

// Card は作品一覧の1枚分の表示モデル。
type Card struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Year        string   `json:"year"`
	Genre       []string `json:"genre"`
	Rating      string   `json:"rating"`
	Poster      string   `json:"poster"`
	Quality     string   `json:"quality,omitempty"`
	IsFavorite  bool     `json:"isFavorite"`
	InWatchlist bool     `json:"inWatchlist"`
}

// NewCard は作品とリスト状態からカードを作る。
func NewCard(m model.Movie, state ListState) Card {
	if state == nil {
		state = noLists{}
	}
	return Card{
		ID:          m.ID,
		Title:       m.Title,
		Year:        m.Year,
		Genre:       m.Genre,
		Rating:      m.Rating,
		Poster:      m.Poster,
		Quality:     m.Quality,
		IsFavorite:  state.IsFavorite(m.ID),
		InWatchlist: state.IsInWatchlist(m.ID),
	}
}

// Cards は作品リストをカードに変換する。
func Cards(movies []model.Movie, state ListState) []Card {
	out := make([]Card, 0, len(movies))
	for _, m := range movies {
		out = append(out, NewCard(m, state))
	}
	return out
}
