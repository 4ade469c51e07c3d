package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hitoshi/movieverse/internal/events"
	"github.com/hitoshi/movieverse/internal/model"
)

// --- モック定義 ---

type mockWriter struct {
	mu       sync.Mutex
	addFn    func(ctx context.Context, userID string, kind model.ListKind, movieID string) error
	removeFn func(ctx context.Context, userID string, kind model.ListKind, movieID string) error
	calls    []string
}

func (m *mockWriter) Add(ctx context.Context, userID string, kind model.ListKind, movieID string) error {
	m.mu.Lock()
	m.calls = append(m.calls, "add:"+string(kind)+":"+movieID)
	m.mu.Unlock()
	if m.addFn != nil {
		return m.addFn(ctx, userID, kind, movieID)
	}
	return nil
}

func (m *mockWriter) Remove(ctx context.Context, userID string, kind model.ListKind, movieID string) error {
	m.mu.Lock()
	m.calls = append(m.calls, "remove:"+string(kind)+":"+movieID)
	m.mu.Unlock()
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, kind, movieID)
	}
	return nil
}

// fakeLive は購読関数を保持し、テストから同期的にスナップショットを配信する。
type fakeLive struct {
	mu       sync.Mutex
	fns      map[string]func(model.ListSnapshot)
	canceled []string
}

func newFakeLive() *fakeLive {
	return &fakeLive{fns: map[string]func(model.ListSnapshot){}}
}

func (f *fakeLive) Subscribe(userID string, fn func(model.ListSnapshot)) func() {
	f.mu.Lock()
	f.fns[userID] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.canceled = append(f.canceled, userID)
		f.mu.Unlock()
	}
}

// push は購読解除後も保持している関数を呼ぶ（遅延到着したスナップショットを模す）。
func (f *fakeLive) push(snap model.ListSnapshot) {
	f.mu.Lock()
	fn := f.fns[snap.UserID]
	f.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

type mockRecorder struct {
	records []string
}

func (m *mockRecorder) RecordListToggle(list, action, result string) {
	m.records = append(m.records, list+"/"+action+"/"+result)
}

type userRef struct{ id string }

func (u *userRef) get() string { return u.id }

func newTestStore(t *testing.T) (*Store, *mockWriter, *fakeLive, *userRef, <-chan events.Event) {
	t.Helper()
	bus := events.NewBus(64)
	ch, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	writer := &mockWriter{}
	live := newFakeLive()
	user := &userRef{}
	return NewStore(writer, live, bus, user.get), writer, live, user, ch
}

func drain(ch <-chan events.Event) []events.Type {
	var got []events.Type
	for {
		select {
		case ev := <-ch:
			got = append(got, ev.Type)
		default:
			return got
		}
	}
}

// --- テスト ---

func TestStore_InitialStateUninitialized(t *testing.T) {
	s, _, _, _, _ := newTestStore(t)

	if st := s.State(model.ListFavorites); st != Uninitialized {
		t.Errorf("favorites state = %v, want uninitialized", st)
	}
	s.SetUser("")
	if st := s.State(model.ListWatchlist); st != Uninitialized {
		t.Errorf("watchlist state after empty identity = %v, want uninitialized", st)
	}
}

func TestStore_SubscribeAppliesSnapshotWholesale(t *testing.T) {
	s, _, live, user, ch := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")

	if st := s.State(model.ListFavorites); st != Subscribed {
		t.Fatalf("state = %v, want subscribed", st)
	}

	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"m1", "m2"}, Watchlist: []string{"m3"}})
	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"m2"}, Watchlist: []string{"m3"}})

	if got := s.Favorites(); len(got) != 1 || got[0] != "m2" {
		t.Errorf("Favorites() = %v, want [m2]", got)
	}
	if s.IsFavorite("m1") {
		t.Error("m1 should have been removed by the second snapshot")
	}
	if !s.IsInWatchlist("m3") || s.WatchlistCount() != 1 {
		t.Errorf("watchlist = %v", s.Watchlist())
	}

	evs := drain(ch)
	if len(evs) != 4 {
		t.Errorf("events = %v, want favorites/watchlist changed twice", evs)
	}
}

func TestStore_ToggleRoundTrip(t *testing.T) {
	s, writer, _, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")
	ctx := context.Background()

	r := s.ToggleFavorite(ctx, "m1")
	if !r.Success || !r.Added || r.Message != "Added to favorites!" {
		t.Fatalf("first toggle = %+v", r)
	}
	// 楽観的更新によりスナップショット到着前に反映される
	if !s.IsFavorite("m1") {
		t.Error("IsFavorite should reflect the optimistic add")
	}

	r = s.ToggleFavorite(ctx, "m1")
	if !r.Success || r.Added || r.Message != "Removed from favorites" {
		t.Fatalf("second toggle = %+v", r)
	}
	if s.IsFavorite("m1") {
		t.Error("IsFavorite should reflect the optimistic remove")
	}

	want := []string{"add:favorites:m1", "remove:favorites:m1"}
	if len(writer.calls) != 2 || writer.calls[0] != want[0] || writer.calls[1] != want[1] {
		t.Errorf("writer calls = %v, want %v", writer.calls, want)
	}
}

func TestStore_ToggleWatchlistIndependent(t *testing.T) {
	s, _, _, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")
	ctx := context.Background()

	s.ToggleFavorite(ctx, "m1")
	r := s.ToggleWatchlist(ctx, "m1")
	if !r.Success || r.Message != "Added to watchlist!" {
		t.Fatalf("ToggleWatchlist() = %+v", r)
	}
	if !s.IsFavorite("m1") || !s.IsInWatchlist("m1") {
		t.Error("an item may be in both sets")
	}
}

func TestStore_ToggleRequiresIdentity(t *testing.T) {
	s, writer, _, _, _ := newTestStore(t)
	ctx := context.Background()

	r := s.ToggleFavorite(ctx, "m1")
	if r.Success || !r.AuthRequired || !errors.Is(r.Err, ErrAuthRequired) {
		t.Errorf("ToggleFavorite() = %+v, want auth required", r)
	}
	if r.Message != "Please login to add favorites" {
		t.Errorf("Message = %q", r.Message)
	}

	r = s.ToggleWatchlist(ctx, "m1")
	if r.Message != "Please login to add to watchlist" {
		t.Errorf("Message = %q", r.Message)
	}

	r = s.Remove(ctx, model.ListFavorites, "m1")
	if r.Message != "User not logged in" || !r.AuthRequired {
		t.Errorf("Remove() = %+v", r)
	}
	if len(writer.calls) != 0 {
		t.Errorf("writer should not be called, got %v", writer.calls)
	}
}

func TestStore_RemoteErrorReported(t *testing.T) {
	s, writer, _, user, _ := newTestStore(t)
	rec := &mockRecorder{}
	s.recorder = rec
	user.id = "u1"
	s.SetUser("u1")

	writer.addFn = func(context.Context, string, model.ListKind, string) error {
		return errors.New("connection reset")
	}

	r := s.ToggleWatchlist(context.Background(), "m1")
	if r.Success || r.Message != "Failed to add to watchlist" || r.Err == nil {
		t.Errorf("ToggleWatchlist() = %+v", r)
	}
	if s.IsInWatchlist("m1") {
		t.Error("failed add must not update the local set")
	}
	if len(rec.records) != 1 || rec.records[0] != "watchlist/add/error" {
		t.Errorf("records = %v", rec.records)
	}
}

func TestStore_SignOutClearsAndIgnoresLateSnapshots(t *testing.T) {
	s, _, live, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")
	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"m1"}, Watchlist: []string{"m2"}})

	user.id = ""
	s.SetUser("")

	if s.FavoritesCount() != 0 || s.WatchlistCount() != 0 {
		t.Errorf("sets should be empty after sign-out: %v %v", s.Favorites(), s.Watchlist())
	}
	if st := s.State(model.ListFavorites); st != Unsubscribed {
		t.Errorf("state = %v, want unsubscribed", st)
	}
	if len(live.canceled) != 1 || live.canceled[0] != "u1" {
		t.Errorf("canceled = %v, want [u1]", live.canceled)
	}

	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"m9"}})
	if s.IsFavorite("m9") {
		t.Error("snapshot after sign-out must not be applied")
	}
}

func TestStore_SwitchUserResubscribes(t *testing.T) {
	s, _, live, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")
	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"m1"}})

	user.id = "u2"
	s.SetUser("u2")
	if s.FavoritesCount() != 0 {
		t.Errorf("Favorites() = %v, want empty after switching user", s.Favorites())
	}

	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"stale"}})
	live.push(model.ListSnapshot{UserID: "u2", Favorites: []string{"m2"}})

	if got := s.Favorites(); len(got) != 1 || got[0] != "m2" {
		t.Errorf("Favorites() = %v, want [m2]", got)
	}
}

func TestStore_SameUserDoesNotResubscribe(t *testing.T) {
	s, _, live, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")
	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"m1"}})

	s.SetUser("u1") // トークン再発行など同一ユーザーの通知

	if !s.IsFavorite("m1") {
		t.Error("same-user notification should keep the local set")
	}
	if len(live.canceled) != 0 {
		t.Errorf("canceled = %v, want none", live.canceled)
	}
}

func TestStore_OptimisticUpdateThenSnapshotWins(t *testing.T) {
	s, _, live, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")

	s.ToggleFavorite(context.Background(), "m1")
	// 別タブの操作で削除済みの状態が後から届いた場合、後勝ちで置き換わる
	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{}})

	if s.IsFavorite("m1") {
		t.Error("later snapshot should win over the optimistic update")
	}
}

func TestStore_UnsupportedList(t *testing.T) {
	s, writer, _, user, _ := newTestStore(t)
	user.id = "u1"

	r := s.Toggle(context.Background(), model.ListWatched, "m1")
	if r.Success || r.Err == nil {
		t.Errorf("Toggle(watched) = %+v, want failure", r)
	}
	if len(writer.calls) != 0 {
		t.Errorf("writer calls = %v, want none", writer.calls)
	}
}

// blockingAdd はリリースされるまで Add を止める writer 関数と、その開始・解放用チャネルを返す。
func blockingAdd() (fn func(context.Context, string, model.ListKind, string) error, started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	fn = func(context.Context, string, model.ListKind, string) error {
		close(started)
		<-release
		return nil
	}
	return fn, started, release
}

func TestStore_AddInFlightDuringSignOutIsDropped(t *testing.T) {
	s, writer, _, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")

	var started, release chan struct{}
	writer.addFn, started, release = blockingAdd()

	done := make(chan Result)
	go func() { done <- s.ToggleFavorite(context.Background(), "m1") }()
	<-started

	user.id = ""
	s.SetUser("")
	close(release)
	<-done

	if s.IsFavorite("m1") || s.FavoritesCount() != 0 {
		t.Errorf("Favorites() = %v, want empty after sign-out", s.Favorites())
	}
	if st := s.State(model.ListFavorites); st != Unsubscribed {
		t.Errorf("state = %v, want unsubscribed", st)
	}
}

func TestStore_RemoveInFlightDuringUserSwitchIsDropped(t *testing.T) {
	s, writer, live, user, _ := newTestStore(t)
	user.id = "u1"
	s.SetUser("u1")
	live.push(model.ListSnapshot{UserID: "u1", Favorites: []string{"m1"}})

	started := make(chan struct{})
	release := make(chan struct{})
	writer.removeFn = func(context.Context, string, model.ListKind, string) error {
		close(started)
		<-release
		return nil
	}

	done := make(chan Result)
	go func() { done <- s.ToggleFavorite(context.Background(), "m1") }()
	<-started

	user.id = "u2"
	s.SetUser("u2")
	live.push(model.ListSnapshot{UserID: "u2", Favorites: []string{"m1"}})
	close(release)
	<-done

	if !s.IsFavorite("m1") {
		t.Errorf("Favorites() = %v, u1's removal must not touch u2's set", s.Favorites())
	}
}
