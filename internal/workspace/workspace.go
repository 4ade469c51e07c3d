// Package workspace はブラウザごとの状態（認証クライアント、セッション、
// お気に入り・ウォッチリスト、イベントバス、モーダル）をまとめて管理する。
package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/movieverse/internal/authform"
	"github.com/hitoshi/movieverse/internal/catalog"
	"github.com/hitoshi/movieverse/internal/events"
	"github.com/hitoshi/movieverse/internal/favorites"
	"github.com/hitoshi/movieverse/internal/identity"
	"github.com/hitoshi/movieverse/internal/session"
)

// DefaultIdleTimeout はアクセスのないワークスペースを破棄するまでの時間。
const DefaultIdleTimeout = 30 * time.Minute

// CatalogNotifier はカタログ更新の通知元。catalog.Cacheが実装する。
type CatalogNotifier interface {
	OnLoaded(fn func(catalog.Loaded)) (cancel func())
}

// Recorder はワークスペース関連のメトリクス記録先。metrics.Collectorが実装する。
type Recorder interface {
	favorites.Recorder
	SetActiveWorkspaces(n int)
}

// Deps はワークスペースの生成に必要な共有コンポーネント。
type Deps struct {
	Provider identity.Provider
	Profiles session.ProfileLoader
	Lists    favorites.ListWriter
	Live     favorites.LiveSubscriber
	Catalog  CatalogNotifier
	Recorder Recorder // nil 可
}

// Config はRegistryの設定。
type Config struct {
	IdleTimeout time.Duration
	EventBuffer int
}

// Workspace はブラウザ1つ分の状態。
type Workspace struct {
	ID       string
	Identity *identity.Client
	Session  *session.Holder
	Lists    *favorites.Store
	Bus      *events.Bus
	Modals   *authform.ModalController

	mu       sync.Mutex
	lastSeen time.Time
	closers  []func()
}

// UserID は認証済みユーザーのIDを返す。未認証の場合は空文字を返す。
func (w *Workspace) UserID() string {
	if ident := w.Identity.Current(); ident != nil {
		return ident.UID
	}
	return ""
}

// SessionID は現在のセッションIDを返す。未認証の場合は空文字を返す。
func (w *Workspace) SessionID() string {
	if ident := w.Identity.Current(); ident != nil {
		return ident.SessionID
	}
	return ""
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// close は購読をすべて解除する。登録と逆順に呼ぶ。
func (w *Workspace) close() {
	w.mu.Lock()
	closers := w.closers
	w.closers = nil
	w.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Registry はブラウザIDごとのワークスペースを保持する。
type Registry struct {
	deps   Deps
	config Config
	now    func() time.Time

	mu     sync.Mutex
	spaces map[string]*Workspace
}

// NewRegistry はRegistryを生成する。
func NewRegistry(deps Deps, config Config) *Registry {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		deps:   deps,
		config: config,
		now:    time.Now,
		spaces: make(map[string]*Workspace),
	}
}

// Acquire はブラウザIDに対応するワークスペースを返す。
// 未知のIDまたは空文字の場合は新しいIDでワークスペースを作成し、created に true を返す。
// 新規作成時は sessionID から認証状態の復元を試みてからセッションの購読を開始する。
func (r *Registry) Acquire(ctx context.Context, browserID, sessionID string) (ws *Workspace, created bool) {
	now := r.now()

	r.mu.Lock()
	if ws, ok := r.spaces[browserID]; ok {
		r.mu.Unlock()
		ws.touch(now)
		return ws, false
	}
	r.mu.Unlock()

	id := browserID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	ws = r.build(ctx, id, sessionID)
	ws.touch(now)

	r.mu.Lock()
	if existing, ok := r.spaces[id]; ok {
		// 同じブラウザからの並行リクエストが先に登録した
		r.mu.Unlock()
		ws.close()
		existing.touch(now)
		return existing, false
	}
	r.spaces[id] = ws
	n := len(r.spaces)
	r.mu.Unlock()

	r.recordCount(n)
	slog.Debug("workspace created", slog.String("browser_id", id))
	return ws, true
}

// Lookup は既存のワークスペースを返す。
func (r *Registry) Lookup(browserID string) (*Workspace, bool) {
	r.mu.Lock()
	ws, ok := r.spaces[browserID]
	r.mu.Unlock()
	if ok {
		ws.touch(r.now())
	}
	return ws, ok
}

// Remove はワークスペースを破棄する。
func (r *Registry) Remove(browserID string) {
	r.mu.Lock()
	ws, ok := r.spaces[browserID]
	delete(r.spaces, browserID)
	n := len(r.spaces)
	r.mu.Unlock()

	if ok {
		ws.close()
		r.recordCount(n)
	}
}

// Len は保持しているワークスペース数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Prune はアイドル時間を超えたワークスペースを破棄し、破棄した件数を返す。
// イベントストリームを購読中のワークスペースは対象外。
func (r *Registry) Prune() int {
	now := r.now()

	r.mu.Lock()
	var expired []*Workspace
	for id, ws := range r.spaces {
		if ws.Bus.SubscriberCount() > 0 {
			continue
		}
		if now.Sub(ws.idleSince()) > r.config.IdleTimeout {
			delete(r.spaces, id)
			expired = append(expired, ws)
		}
	}
	n := len(r.spaces)
	r.mu.Unlock()

	for _, ws := range expired {
		ws.close()
	}
	if len(expired) > 0 {
		r.recordCount(n)
		slog.Info("idle workspaces evicted",
			slog.Int("evicted", len(expired)),
			slog.Int("remaining", n),
		)
	}
	return len(expired)
}

// Run はコンテキストがキャンセルされるまでinterval毎にPruneを実行し、終了時に全ワークスペースを破棄する。
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Prune()
		case <-ctx.Done():
			r.Close()
			return
		}
	}
}

// Close は全ワークスペースを破棄する。
func (r *Registry) Close() {
	r.mu.Lock()
	spaces := r.spaces
	r.spaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range spaces {
		ws.close()
	}
	r.recordCount(0)
}

// build はワークスペースを組み立てる。
// 配線順: 認証復元 → リスト購読の登録 → セッション購読開始 → カタログ通知の中継。
func (r *Registry) build(ctx context.Context, id, sessionID string) *Workspace {
	bus := events.NewBus(r.config.EventBuffer)
	client := identity.NewClient(r.deps.Provider)

	if sessionID != "" {
		if err := client.Restore(ctx, sessionID); err != nil {
			slog.Warn("failed to restore session",
				slog.String("browser_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	var opts []favorites.Option
	if r.deps.Recorder != nil {
		opts = append(opts, favorites.WithRecorder(r.deps.Recorder))
	}
	ws := &Workspace{
		ID:       id,
		Identity: client,
		Session:  session.NewHolder(r.deps.Profiles, bus),
		Bus:      bus,
		Modals:   authform.NewModalController(nil),
	}
	ws.Lists = favorites.NewStore(r.deps.Lists, r.deps.Live, bus, ws.UserID, opts...)

	stopLists := ws.Session.OnChange(func(st session.State) {
		if st.Identity == nil {
			ws.Lists.SetUser("")
			return
		}
		ws.Lists.SetUser(st.Identity.UID)
	})
	ws.Session.Start(client)

	ws.closers = append(ws.closers, bus.Close)
	if r.deps.Catalog != nil {
		stopCatalog := r.deps.Catalog.OnLoaded(func(l catalog.Loaded) {
			bus.Publish(events.Event{Type: events.CatalogLoaded, Payload: l})
		})
		ws.closers = append(ws.closers, stopCatalog)
	}
	ws.closers = append(ws.closers, stopLists, ws.Lists.Close, ws.Session.Close)
	return ws
}

func (r *Registry) recordCount(n int) {
	if r.deps.Recorder != nil {
		r.deps.Recorder.SetActiveWorkspaces(n)
	}
}
