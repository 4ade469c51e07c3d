package model

// ListKind はユーザーごとの作品リストの種別を表す。
type ListKind string

const (
	ListFavorites ListKind = "favorites"
	ListWatchlist ListKind = "watchlist"
	ListWatched   ListKind = "watched"
)

// ParseListKind は文字列をListKindに変換する。
// UIから変更可能な favorites と watchlist のみ受け付ける。
func ParseListKind(s string) (ListKind, bool) {
	switch ListKind(s) {
	case ListFavorites, ListWatchlist:
		return ListKind(s), true
	default:
		return "", false
	}
}

// ListSnapshot はユーザーの全リストの現在値を表す。
// ライブ購読では差分ではなく常にこのスナップショット全体が配信される。
type ListSnapshot struct {
	UserID    string
	Favorites []string
	Watchlist []string
	Watched   []string
}

// IDs は指定種別のIDリストを返す。
func (s ListSnapshot) IDs(kind ListKind) []string {
	switch kind {
	case ListFavorites:
		return s.Favorites
	case ListWatchlist:
		return s.Watchlist
	case ListWatched:
		return s.Watched
	default:
		return nil
	}
}
