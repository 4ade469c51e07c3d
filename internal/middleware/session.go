// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/workspace"
)

const (
	// SessionCookieName はログインセッションIDを保持するCookieの名前。
	SessionCookieName = "session_id"
	// BrowserCookieName はブラウザ（ワークスペース）IDを保持するCookieの名前。
	BrowserCookieName = "browser_id"

	browserCookieMaxAge = 365 * 24 * 60 * 60
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// workspaceContextKey はリクエストコンテキストにワークスペースを格納するためのキー。
	workspaceContextKey = contextKey("workspace")
)

// WorkspaceAcquirer はブラウザIDからワークスペースを取得・作成するインターフェース。
// workspace.Registryが実装する。
type WorkspaceAcquirer interface {
	Acquire(ctx context.Context, browserID, sessionID string) (*workspace.Workspace, bool)
}

// TokenVerifier はBearerトークン（IDトークン）を検証してユーザーIDを返すインターフェース。
// identity.Serviceが実装する。
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// CookieConfig はミドルウェアが発行するCookieの設定。
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewWorkspaceMiddleware はブラウザCookieからワークスペースを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 新しいワークスペースを作成した場合はブラウザCookieを発行する。
// 作成時はセッションCookieから認証状態を復元する。
func NewWorkspaceMiddleware(acquirer WorkspaceAcquirer, config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			browserID := cookieValue(r, BrowserCookieName)
			sessionID := cookieValue(r, SessionCookieName)

			ws, created := acquirer.Acquire(r.Context(), browserID, sessionID)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     BrowserCookieName,
					Value:    ws.ID,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   browserCookieMaxAge,
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), workspaceContextKey, ws)
			if userID := ws.UserID(); userID != "" {
				ctx = context.WithValue(ctx, userIDContextKey, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAuthMiddleware は認証済みユーザーを要求するミドルウェアを返す。
// Authorization: Bearer ヘッダーがある場合はIDトークンを検証し、
// ない場合はワークスペースの認証状態を使う。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string

			if token, ok := bearerToken(r); ok {
				uid, err := verifier.VerifyToken(token)
				if err != nil {
					slog.Warn("invalid bearer token",
						slog.String("error", err.Error()),
					)
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError("Please login"))
					return
				}
				userID = uid
			} else if ws, err := WorkspaceFromContext(r.Context()); err == nil {
				userID = ws.UserID()
			}

			if userID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError("Please login"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// WorkspaceFromContext はリクエストコンテキストからワークスペースを取得する。
// ワークスペースミドルウェアを通過したリクエストでのみ有効。
func WorkspaceFromContext(ctx context.Context) (*workspace.Workspace, error) {
	ws, ok := ctx.Value(workspaceContextKey).(*workspace.Workspace)
	if !ok || ws == nil {
		return nil, fmt.Errorf("workspace not found in context")
	}
	return ws, nil
}

// ContextWithWorkspace はコンテキストにワークスペースを注入する。
func ContextWithWorkspace(ctx context.Context, ws *workspace.Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey, ws)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
