package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ListChangedChannel は list_entries の変更を通知するPostgreSQLのチャネル名。
const ListChangedChannel = "list_entries_changed"

// Notifier は変更通知の転送先。Hubが実装する。
type Notifier interface {
	Notify(userID string)
	NotifyAll()
}

// PGListener はPostgreSQLの LISTEN/NOTIFY を受信し、Notifierへ転送する。
// プロセス外（別インスタンスやworker）からの変更も購読者に届く。
type PGListener struct {
	databaseURL  string
	notifier     Notifier
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
}

// NewPGListener はPGListenerを生成する。
func NewPGListener(databaseURL string, notifier Notifier) *PGListener {
	return &PGListener{
		databaseURL:  databaseURL,
		notifier:     notifier,
		minReconnect: 10 * time.Second,
		maxReconnect: time.Minute,
		pingInterval: 90 * time.Second,
	}
}

// Run はコンテキストがキャンセルされるまで通知を受信し続ける。
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.databaseURL, l.minReconnect, l.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("list change listener event",
				slog.Int("event", int(ev)),
				slog.String("error", err.Error()),
			)
		}
	})
	defer listener.Close()

	if err := listener.Listen(ListChangedChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ListChangedChannel, err)
	}
	slog.Info("list change listener started", slog.String("channel", ListChangedChannel))

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("list change listener stopped")
			return nil
		case n := <-listener.Notify:
			l.dispatch(n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					slog.Warn("list change listener ping failed", slog.String("error", err.Error()))
				}
			}()
		}
	}
}

// dispatch は1件の通知を転送する。
// nilは再接続を意味し、その間の通知が失われている可能性があるため全購読者を再読み込みさせる。
func (l *PGListener) dispatch(n *pq.Notification) {
	if n == nil {
		l.notifier.NotifyAll()
		return
	}
	if n.Extra == "" {
		return
	}
	l.notifier.Notify(n.Extra)
}
