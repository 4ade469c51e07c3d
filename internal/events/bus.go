// Package events はアプリケーション内の変更通知を配信するイベントバスを提供する。
package events

import (
	"log/slog"
	"sync"
)

// Type はイベント種別。
type Type string

const (
	AuthChanged      Type = "auth_changed"
	FavoritesChanged Type = "favorites_changed"
	WatchlistChanged Type = "watchlist_changed"
	CatalogLoaded    Type = "catalog_loaded"
)

// Event はバス上を流れる1件の通知。
type Event struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload,omitempty"`
}

// Publisher はイベントの発行側インターフェース。
type Publisher interface {
	Publish(ev Event)
}

// Bus はイベントを全購読者へ配信する。
// 購読者のバッファが満杯の場合、そのイベントは当該購読者に対して破棄される。
// 通知はいずれも状態全体の再描画を促すものなので、取りこぼしても次の通知で回復する。
type Bus struct {
	buffer int

	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool
}

// NewBus はBusを生成する。bufferは購読者ごとのチャネル容量。
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{buffer: buffer, subs: make(map[uint64]chan Event)}
}

// Publish はイベントを全購読者へ送信する。ブロックしない。
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("event dropped for slow subscriber",
				slog.String("type", string(ev.Type)),
				slog.Uint64("subscriber", id),
			)
		}
	}
}

// Subscribe は購読用チャネルと解除関数を返す。
// 解除またはClose後にチャネルはクローズされる。
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// SubscriberCount は現在の購読者数を返す。
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close は全購読者のチャネルをクローズし、以降の発行を無視する。
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
