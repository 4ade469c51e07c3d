package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRecoveryMiddleware はハンドラーのpanicを500レスポンスに変換する。
// レスポンスヘッダー送信後のpanicはログのみ残す。
// http.ErrAbortHandler は net/http に任せるため再送出する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				committed := ww.Status() != 0
				logger.Error("panic recovered",
					slog.Any("panic", v),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", chimw.GetReqID(r.Context())),
					slog.String("browser_id", cookieValue(r, BrowserCookieName)),
					slog.Bool("response_committed", committed),
					slog.String("stack", string(debug.Stack())),
				)
				if !committed {
					WriteInternalServerError(ww)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
