// Package session は現在の認証ユーザーとそのプロフィールを保持する。
package session

import (
	"context"
	"sync"

	"github.com/hitoshi/movieverse/internal/events"
	"github.com/hitoshi/movieverse/internal/identity"
	"github.com/hitoshi/movieverse/internal/model"
)

// AuthSource は認証状態の変更ストリーム。identity.Clientが実装する。
type AuthSource interface {
	OnChange(fn identity.ChangeFunc) (unsubscribe func())
}

// ProfileLoader はプロフィールの読み込みインターフェース。失敗時もフォールバックを返す。
type ProfileLoader interface {
	Load(ctx context.Context, ident *model.Identity) model.Profile
}

// State は保持しているIdentityとプロフィールのスナップショット。
// 未認証の場合はどちらもnil。
type State struct {
	Identity *model.Identity
	Profile  *model.Profile
}

// LoggedIn は認証済みかどうかを返す。
func (s State) LoggedIn() bool { return s.Identity != nil }

// AuthPayload は auth_changed イベントのペイロード。
type AuthPayload struct {
	LoggedIn bool           `json:"loggedIn"`
	User     *model.Profile `json:"user,omitempty"`
}

// Holder は認証状態の変更を購読し、プロフィールを読み込んだうえで
// アプリケーション全体へ auth_changed を通知する。
type Holder struct {
	loader ProfileLoader
	bus    events.Publisher

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	generation uint64
	listeners  map[uint64]func(State)
	nextID     uint64

	// emitMu は状態の確定と通知の順序を揃える。
	emitMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once

	// loading はプロフィール読み込み中のみ non-nil。確定または破棄でクローズする。
	loading chan struct{}

	unsubscribe func()
}

// NewHolder はHolderを生成する。busはnilでもよい。
func NewHolder(loader ProfileLoader, bus events.Publisher) *Holder {
	ctx, cancel := context.WithCancel(context.Background())
	return &Holder{
		loader:    loader,
		bus:       bus,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[uint64]func(State)),
		ready:     make(chan struct{}),
	}
}

// Start は認証状態の変更ストリームを1回だけ購読する。
func (h *Holder) Start(src AuthSource) {
	h.mu.Lock()
	if h.unsubscribe != nil {
		h.mu.Unlock()
		return
	}
	h.unsubscribe = func() {}
	h.mu.Unlock()

	unsubscribe := src.OnChange(h.handle)

	h.mu.Lock()
	h.unsubscribe = unsubscribe
	h.mu.Unlock()
}

// Close は購読を解除し、実行中のプロフィール読み込みを破棄する。
func (h *Holder) Close() {
	h.cancel()
	h.mu.Lock()
	unsubscribe := h.unsubscribe
	h.generation++
	h.finishLoadingLocked()
	h.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Ready は最初の認証状態が確定した時点でクローズされるチャネルを返す。
func (h *Holder) Ready() <-chan struct{} { return h.ready }

// WaitReady は最初の認証状態が確定するまで待機する。
func (h *Holder) WaitReady(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitSettled は読み込み中のプロフィールが確定するまで待機する。
// 読み込み中でなければ即座に返る。
func (h *Holder) WaitSettled(ctx context.Context) error {
	for {
		h.mu.Lock()
		ch := h.loading
		h.mu.Unlock()
		if ch == nil {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Current は現在の状態を返す。
func (h *Holder) Current() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OnChange は状態確定のたびに呼ばれるリスナーを登録する。
func (h *Holder) OnChange(fn func(State)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// handle は認証状態の変更通知を処理する。
func (h *Holder) handle(ident *model.Identity) {
	h.mu.Lock()
	h.generation++
	gen := h.generation
	h.mu.Unlock()

	if ident == nil {
		h.commit(gen, State{})
		return
	}

	h.mu.Lock()
	// 別ユーザーへの切り替えでは前のユーザーのプロフィールを見せない
	if prev := h.state.Identity; prev == nil || prev.UID != ident.UID {
		h.state.Profile = nil
	}
	h.state.Identity = ident
	h.finishLoadingLocked()
	h.loading = make(chan struct{})
	h.mu.Unlock()

	go func() {
		p := h.loader.Load(h.ctx, ident)
		h.commit(gen, State{Identity: ident, Profile: &p})
	}()
}

// commit は世代が最新の場合のみ状態を確定して通知する。
func (h *Holder) commit(gen uint64, st State) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	if gen != h.generation {
		h.mu.Unlock()
		return
	}
	h.state = st
	fns := make([]func(State), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
	h.mu.Lock()
	if gen == h.generation {
		h.finishLoadingLocked()
	}
	h.mu.Unlock()
	h.readyOnce.Do(func() { close(h.ready) })
	if h.bus != nil {
		h.bus.Publish(events.Event{
			Type:    events.AuthChanged,
			Payload: AuthPayload{LoggedIn: st.LoggedIn(), User: st.Profile},
		})
	}
}

func (h *Holder) finishLoadingLocked() {
	if h.loading != nil {
		close(h.loading)
		h.loading = nil
	}
}
