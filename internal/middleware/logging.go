package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// quietPaths はスクレイプやヘルスチェックのように頻繁に呼ばれるパス。Debugで記録する。
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// RequestRecorder はHTTPリクエストのメトリクス記録先。metrics.Collectorが実装する。
type RequestRecorder interface {
	RecordRequest(method, route string, statusCode int, duration time.Duration)
}

// NewLoggingMiddleware はリクエストごとに1行の構造化ログを出力するミドルウェアを返す。
// recorder が nil でない場合はルートパターン単位でレイテンシも記録する。
func NewLoggingMiddleware(logger *slog.Logger, recorder RequestRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				// ハンドラーが何も書かなかった
				status = http.StatusOK
			}
			route := routePattern(r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			if userID, err := UserIDFromContext(r.Context()); err == nil {
				attrs = append(attrs, slog.String("user_id", userID))
			}
			if ws, err := WorkspaceFromContext(r.Context()); err == nil {
				attrs = append(attrs, slog.String("browser_id", ws.ID))
			}

			logger.LogAttrs(r.Context(), requestLevel(r.URL.Path, status), "http_request", attrs...)

			if recorder != nil {
				recorder.RecordRequest(r.Method, route, status, elapsed)
			}
		})
	}
}

func requestLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case quietPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// routePattern はchiがマッチしたルートパターンを返す。
// 未マッチの場合は固定値を返す。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
