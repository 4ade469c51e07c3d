package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/movieverse/internal/middleware"
	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/profile"
	"github.com/hitoshi/movieverse/internal/view"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// セッション、ユーザー名予約、資格情報、リストをまとめて削除する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はアカウントページと退会のHTTPハンドラー。
type UserHandler struct {
	service      UserServiceInterface
	cookies      sessionCookies
	readyTimeout time.Duration
	now          func() time.Time
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	timeout := config.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	return &UserHandler{
		service:      service,
		cookies:      newSessionCookies(config),
		readyTimeout: timeout,
		now:          time.Now,
	}
}

// Account はマイアカウントページを返す。未ログインの場合は401を返す。
// GET /api/account
func (h *UserHandler) Account(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	waitSession(r.Context(), ws, h.readyTimeout)

	st := ws.Session.Current()
	if !st.LoggedIn() {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError(view.MsgLoginMyAccount))
		return
	}

	p := profile.Fallback(st.Identity)
	if st.Profile != nil {
		p = *st.Profile
	}
	writeJSON(w, http.StatusOK, view.RenderAccount(p, ws.Lists.FavoritesCount(), ws.Lists.WatchlistCount(), h.now()))
}

// Withdraw はユーザーの退会処理を実行し、ブラウザをログアウト状態に戻す。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	if ws, err := middleware.WorkspaceFromContext(r.Context()); err == nil && ws.UserID() == userID {
		if err := ws.Identity.SignOut(r.Context()); err != nil {
			slog.Warn("failed to sign out withdrawn user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	h.cookies.clear(w)

	w.WriteHeader(http.StatusNoContent)
}
