// Package live はユーザーごとの作品リストのライブ購読を提供する。
// 購読者には変更のたびに差分ではなくスナップショット全体が配信される。
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/movieverse/internal/model"
)

// SnapshotLoader はユーザーのリストスナップショットを読み込むインターフェース。
type SnapshotLoader interface {
	Snapshot(ctx context.Context, userID string) (model.ListSnapshot, error)
}

// Hub はユーザーIDごとの購読者を管理し、変更通知を受けてスナップショットを配信する。
// 通知は購読者ごとに1件へ合流されるため、連続した変更でも最新の状態のみが届く。
type Hub struct {
	loader SnapshotLoader

	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*subscriber
}

type subscriber struct {
	userID string
	fn     func(model.ListSnapshot)
	dirty  chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewHub はHubを生成する。
func NewHub(loader SnapshotLoader) *Hub {
	return &Hub{
		loader: loader,
		subs:   make(map[string]map[uint64]*subscriber),
	}
}

// Subscribe は指定ユーザーのリストを購読する。
// 購読直後に現在のスナップショットが1回配信され、以降は Notify のたびに配信される。
// 返されたcancel関数を呼ぶと、それ以降fnは呼ばれない（実行中の1回を除く）。
func (h *Hub) Subscribe(userID string, fn func(model.ListSnapshot)) (cancel func()) {
	sub := &subscriber{
		userID: userID,
		fn:     fn,
		dirty:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uint64]*subscriber)
	}
	h.subs[userID][id] = sub
	h.mu.Unlock()

	sub.dirty <- struct{}{}
	go h.deliver(sub)

	return func() {
		sub.once.Do(func() { close(sub.done) })
		h.mu.Lock()
		delete(h.subs[userID], id)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
	}
}

// Notify は指定ユーザーのリストが変更されたことを購読者に通知する。
func (h *Hub) Notify(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[userID] {
		sub.markDirty()
	}
}

// NotifyAll は全購読者に再読み込みを要求する。
// 変更通知の取りこぼしが疑われる場合（リスナーの再接続時など）に使用する。
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, byID := range h.subs {
		for _, sub := range byID {
			sub.markDirty()
		}
	}
}

// SubscriberCount は現在の購読者数を返す。
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, byID := range h.subs {
		n += len(byID)
	}
	return n
}

func (s *subscriber) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (h *Hub) deliver(sub *subscriber) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sub.done
		cancel()
	}()

	for {
		select {
		case <-sub.done:
			return
		case <-sub.dirty:
		}

		snap, err := h.loader.Snapshot(ctx, sub.userID)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("failed to load list snapshot",
					slog.String("user_id", sub.userID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		select {
		case <-sub.done:
			return
		default:
		}
		sub.fn(snap)
	}
}
