package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/movieverse/internal/events"
	"github.com/hitoshi/movieverse/internal/session"
)

// defaultHeartbeatInterval はSSE接続を維持するためのコメント送信間隔。
const defaultHeartbeatInterval = 25 * time.Second

// EventsHandler はワークスペースのイベントをServer-Sent Eventsで配信する。
type EventsHandler struct {
	heartbeat time.Duration
}

// NewEventsHandler はEventsHandlerを生成する。
func NewEventsHandler(heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	return &EventsHandler{heartbeat: heartbeat}
}

// Stream はクライアントが切断するかワークスペースが破棄されるまでイベントを送り続ける。
// 接続直後に現在の認証状態を auth_changed として送る。
// GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	ch, unsubscribe := ws.Bus.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	select {
	case <-ws.Session.Ready():
		st := ws.Session.Current()
		initial := events.Event{
			Type:    events.AuthChanged,
			Payload: session.AuthPayload{LoggedIn: st.LoggedIn(), User: st.Profile},
		}
		if err := writeEvent(w, initial); err != nil {
			return
		}
	default:
	}
	if err := rc.Flush(); err != nil {
		slog.Warn("streaming not supported", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				slog.Debug("event stream closed",
					slog.String("browser_id", ws.ID),
					slog.String("error", err.Error()),
				)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent はイベントを1件書き込む。
func writeEvent(w http.ResponseWriter, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
