// Package favorites はユーザーのお気に入りとウォッチリストをローカルに保持し、
// ライブ購読で同期しながら楽観的なトグル操作を提供する。
package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/movieverse/internal/events"
	"github.com/hitoshi/movieverse/internal/model"
)

// ErrAuthRequired は未認証でリストを変更しようとした場合のエラー。
var ErrAuthRequired = errors.New("authentication required")

// CollectionState はコレクションの購読状態。
type CollectionState int

const (
	Uninitialized CollectionState = iota
	Subscribed
	Unsubscribed
)

// String はログ用の文字列表現を返す。
func (s CollectionState) String() string {
	switch s {
	case Subscribed:
		return "subscribed"
	case Unsubscribed:
		return "unsubscribed"
	default:
		return "uninitialized"
	}
}

// ListWriter はリストへの冪等な追加・削除を行うインターフェース。
// repository.ListRepositoryの部分集合として定義する。
type ListWriter interface {
	Add(ctx context.Context, userID string, kind model.ListKind, movieID string) error
	Remove(ctx context.Context, userID string, kind model.ListKind, movieID string) error
}

// LiveSubscriber はユーザーのリストスナップショットを購読するインターフェース。live.Hubが実装する。
type LiveSubscriber interface {
	Subscribe(userID string, fn func(model.ListSnapshot)) (cancel func())
}

// Recorder はトグル操作の結果を記録するインターフェース。metrics.Collectorが実装する。
type Recorder interface {
	RecordListToggle(list, action, result string)
}

// Result はリスト変更操作の結果。UIにそのまま表示できるメッセージを含む。
type Result struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Added        bool   `json:"added"`
	AuthRequired bool   `json:"authRequired,omitempty"`
	Err          error  `json:"-"`
}

// Store はお気に入りとウォッチリストの2つのコレクションを保持する。
// 楽観的な更新と購読スナップショットは後から適用された方が勝つ。
type Store struct {
	writer      ListWriter
	live        LiveSubscriber
	bus         events.Publisher
	recorder    Recorder
	currentUser func() string

	mu         sync.RWMutex
	userID     string
	generation uint64
	cancel     func()
	favorites  collection
	watchlist  collection
}

// Option はStoreのオプション設定。
type Option func(*Store)

// WithRecorder はトグル結果の記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// NewStore はStoreを生成する。
// currentUser は認証プロバイダーが保持する現在のユーザーIDを返す関数で、未認証の場合は空文字を返す。
func NewStore(writer ListWriter, live LiveSubscriber, bus events.Publisher, currentUser func() string, opts ...Option) *Store {
	s := &Store{
		writer:      writer,
		live:        live,
		bus:         bus,
		currentUser: currentUser,
		favorites:   newCollection(model.ListFavorites),
		watchlist:   newCollection(model.ListWatchlist),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUser はセッションの変更を反映する。
// 空でないユーザーIDで購読を開始し、空文字で購読を解除して両コレクションを空にする。
func (s *Store) SetUser(userID string) {
	s.mu.Lock()
	if userID == s.userID && (userID == "" || s.favorites.state == Subscribed) {
		s.mu.Unlock()
		return
	}

	prevCancel := s.cancel
	s.cancel = nil
	s.generation++
	gen := s.generation
	s.userID = userID

	if userID == "" {
		wasSubscribed := s.favorites.state == Subscribed
		s.favorites.reset(Unsubscribed)
		s.watchlist.reset(Unsubscribed)
		s.mu.Unlock()
		if prevCancel != nil {
			prevCancel()
		}
		if wasSubscribed {
			s.publish(events.FavoritesChanged)
			s.publish(events.WatchlistChanged)
		}
		return
	}

	s.favorites.reset(Subscribed)
	s.watchlist.reset(Subscribed)
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	cancel := s.live.Subscribe(userID, func(snap model.ListSnapshot) {
		s.applySnapshot(gen, snap)
	})

	s.mu.Lock()
	if s.generation == gen {
		s.cancel = cancel
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	// 購読開始中に別のユーザーへ切り替わった
	cancel()
}

// Close は購読を解除する。
func (s *Store) Close() {
	s.SetUser("")
}

// applySnapshot は購読スナップショットで両コレクションを置き換える。
// 世代が古いスナップショット（サインアウト後や別ユーザー）は破棄する。
func (s *Store) applySnapshot(gen uint64, snap model.ListSnapshot) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.favorites.replace(snap.Favorites)
	s.watchlist.replace(snap.Watchlist)
	s.mu.Unlock()

	s.publish(events.FavoritesChanged)
	s.publish(events.WatchlistChanged)
}

// State は指定コレクションの購読状態を返す。
func (s *Store) State(kind model.ListKind) CollectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.collectionLocked(kind); c != nil {
		return c.state
	}
	return Uninitialized
}

// ToggleFavorite はお気に入りに含まれていれば削除し、含まれていなければ追加する。
func (s *Store) ToggleFavorite(ctx context.Context, movieID string) Result {
	return s.Toggle(ctx, model.ListFavorites, movieID)
}

// ToggleWatchlist はウォッチリストに含まれていれば削除し、含まれていなければ追加する。
func (s *Store) ToggleWatchlist(ctx context.Context, movieID string) Result {
	return s.Toggle(ctx, model.ListWatchlist, movieID)
}

// Toggle は指定コレクションの所属状態を反転する。
func (s *Store) Toggle(ctx context.Context, kind model.ListKind, movieID string) Result {
	if s.Contains(kind, movieID) {
		return s.Remove(ctx, kind, movieID)
	}
	return s.Add(ctx, kind, movieID)
}

// Add は作品をコレクションに追加する。
func (s *Store) Add(ctx context.Context, kind model.ListKind, movieID string) Result {
	if s.collectionLocked(kind) == nil {
		return unsupported(kind)
	}
	msgs := messagesFor(kind)
	userID := s.currentUser()
	if userID == "" {
		s.record(kind, "add", "auth_required")
		return Result{Message: msgs.loginToAdd, AuthRequired: true, Err: ErrAuthRequired}
	}

	gen := s.snapshotGeneration()
	if err := s.writer.Add(ctx, userID, kind, movieID); err != nil {
		slog.Error("failed to add to list",
			slog.String("user_id", userID),
			slog.String("list", string(kind)),
			slog.String("movie_id", movieID),
			slog.String("error", err.Error()),
		)
		s.record(kind, "add", "error")
		return Result{Message: msgs.addFailed, Err: err}
	}

	if s.applyLocal(gen, userID, kind, func(c *collection) bool { return c.add(movieID) }) {
		s.publish(eventFor(kind))
	}

	s.record(kind, "add", "success")
	return Result{Success: true, Message: msgs.added, Added: true}
}

// Remove は作品をコレクションから削除する。
func (s *Store) Remove(ctx context.Context, kind model.ListKind, movieID string) Result {
	if s.collectionLocked(kind) == nil {
		return unsupported(kind)
	}
	msgs := messagesFor(kind)
	userID := s.currentUser()
	if userID == "" {
		s.record(kind, "remove", "auth_required")
		return Result{Message: msgUserNotLoggedIn, AuthRequired: true, Err: ErrAuthRequired}
	}

	gen := s.snapshotGeneration()
	if err := s.writer.Remove(ctx, userID, kind, movieID); err != nil {
		slog.Error("failed to remove from list",
			slog.String("user_id", userID),
			slog.String("list", string(kind)),
			slog.String("movie_id", movieID),
			slog.String("error", err.Error()),
		)
		s.record(kind, "remove", "error")
		return Result{Message: msgs.removeFailed, Err: err}
	}

	if s.applyLocal(gen, userID, kind, func(c *collection) bool { return c.remove(movieID) }) {
		s.publish(eventFor(kind))
	}

	s.record(kind, "remove", "success")
	return Result{Success: true, Message: msgs.removed}
}

func (s *Store) snapshotGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// applyLocal はリモート書き込み完了後にローカルのコレクションを更新する。
// 書き込み中にサインアウトやユーザー切り替えがあった場合は何もしない。
func (s *Store) applyLocal(gen uint64, userID string, kind model.ListKind, fn func(*collection) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || userID != s.userID {
		slog.Debug("dropping stale list update",
			slog.String("user_id", userID),
			slog.String("list", string(kind)),
		)
		return false
	}
	return fn(s.collectionLocked(kind))
}

// Contains は作品がコレクションに含まれるかを返す。
func (s *Store) Contains(kind model.ListKind, movieID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collectionLocked(kind)
	return c != nil && c.contains(movieID)
}

// IsFavorite は作品がお気に入りに含まれるかを返す。
func (s *Store) IsFavorite(movieID string) bool { return s.Contains(model.ListFavorites, movieID) }

// IsInWatchlist は作品がウォッチリストに含まれるかを返す。
func (s *Store) IsInWatchlist(movieID string) bool { return s.Contains(model.ListWatchlist, movieID) }

// Favorites はお気に入りの作品IDのコピーを返す。
func (s *Store) Favorites() []string { return s.IDs(model.ListFavorites) }

// Watchlist はウォッチリストの作品IDのコピーを返す。
func (s *Store) Watchlist() []string { return s.IDs(model.ListWatchlist) }

// FavoritesCount はお気に入りの件数を返す。
func (s *Store) FavoritesCount() int { return len(s.IDs(model.ListFavorites)) }

// WatchlistCount はウォッチリストの件数を返す。
func (s *Store) WatchlistCount() int { return len(s.IDs(model.ListWatchlist)) }

// IDs は指定コレクションの作品IDのコピーを返す。
func (s *Store) IDs(kind model.ListKind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collectionLocked(kind)
	if c == nil {
		return []string{}
	}
	return slices.Clone(c.ids)
}

func (s *Store) collectionLocked(kind model.ListKind) *collection {
	switch kind {
	case model.ListFavorites:
		return &s.favorites
	case model.ListWatchlist:
		return &s.watchlist
	default:
		return nil
	}
}

func (s *Store) publish(t events.Type) {
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: t})
	}
}

func (s *Store) record(kind model.ListKind, action, result string) {
	if s.recorder != nil {
		s.recorder.RecordListToggle(string(kind), action, result)
	}
}

func unsupported(kind model.ListKind) Result {
	return Result{
		Message: "Unsupported list",
		Err:     fmt.Errorf("unsupported list kind: %q", kind),
	}
}

func eventFor(kind model.ListKind) events.Type {
	if kind == model.ListWatchlist {
		return events.WatchlistChanged
	}
	return events.FavoritesChanged
}
