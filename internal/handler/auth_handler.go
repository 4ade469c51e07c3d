// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/movieverse/internal/authform"
	"github.com/hitoshi/movieverse/internal/middleware"
	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/workspace"
)

// defaultReadyTimeout は認証状態の確定を待つ既定の時間。
const defaultReadyTimeout = 3 * time.Second

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int           // セッションCookieの有効期間（秒）
	ReadyTimeout  time.Duration // 認証状態の確定を待つ上限
}

// AuthHandler はサインアップ・ログイン・ログアウトとモーダル操作のHTTPハンドラー。
type AuthHandler struct {
	forms     *authform.Controller
	directory authform.Directory
	config    AuthHandlerConfig
	cookies   sessionCookies
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(forms *authform.Controller, directory authform.Directory, config AuthHandlerConfig) *AuthHandler {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = defaultReadyTimeout
	}
	return &AuthHandler{
		forms:     forms,
		directory: directory,
		config:    config,
		cookies:   newSessionCookies(config),
	}
}

// authResponse はフォーム送信結果のAPIレスポンス。
type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// sessionResponse は現在の認証状態のAPIレスポンス。
type sessionResponse struct {
	LoggedIn  bool           `json:"loggedIn"`
	User      *model.Profile `json:"user,omitempty"`
	IDToken   string         `json:"idToken,omitempty"`
	ExpiresAt time.Time      `json:"expiresAt,omitzero"`
}

type modalRequest struct {
	Modal string `json:"modal"`
}

// SignUp はアカウントを作成してログインする。
// POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	var form authform.SignupForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeInvalidRequest(w)
		return
	}

	res := h.forms.SignUp(r.Context(), ws.Identity, form)
	h.writeResult(w, ws, res, http.StatusCreated)
}

// Login はメールアドレスまたはユーザー名でログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	var form authform.LoginForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeInvalidRequest(w)
		return
	}

	res := h.forms.Login(r.Context(), ws.Identity, form)
	h.writeResult(w, ws, res, http.StatusOK)
}

// Logout はセッションを破棄する。失敗した場合もセッションCookieはクリアする。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	res := h.forms.Logout(r.Context(), ws.Identity)
	h.cookies.clear(w)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, toAuthResponse(res))
}

// Session は現在の認証状態とプロフィールを返す。
// GET /api/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	waitSession(r.Context(), ws, h.config.ReadyTimeout)
	st := ws.Session.Current()

	resp := sessionResponse{LoggedIn: st.LoggedIn(), User: st.Profile}
	if st.Identity != nil {
		resp.IDToken = st.Identity.IDToken
		resp.ExpiresAt = st.Identity.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// UsernameAvailable はユーザー名が未使用かどうかを返す。
// GET /api/auth/username?username=xxx
func (h *AuthHandler) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if !authform.IsValidUsername(username) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(authform.MsgInvalidUsername))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":  username,
		"available": h.directory.UsernameAvailable(r.Context(), username),
	})
}

// ModalState は認証モーダルの状態を返す。
// GET /api/auth/modal
func (h *AuthHandler) ModalState(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Modals.State())
}

// OpenModal はサインアップまたはログインのモーダルを開く。
// POST /api/auth/modal
func (h *AuthHandler) OpenModal(w http.ResponseWriter, r *http.Request) {
	h.modalAction(w, r, (*authform.ModalController).Open)
}

// SwitchModal は開いているモーダルを閉じてもう一方を開く。
// POST /api/auth/modal/switch
func (h *AuthHandler) SwitchModal(w http.ResponseWriter, r *http.Request) {
	h.modalAction(w, r, (*authform.ModalController).Switch)
}

// CloseModal は開いているモーダルを閉じる。
// DELETE /api/auth/modal
func (h *AuthHandler) CloseModal(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Modals.Close())
}

func (h *AuthHandler) modalAction(w http.ResponseWriter, r *http.Request, action func(*authform.ModalController, authform.Modal) (authform.ModalState, error)) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	var req modalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	m, valid := authform.ParseModal(req.Modal)
	if !valid {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("modal must be signup or login"))
		return
	}

	state, err := action(ws.Modals, m)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// writeResult はサインアップ・ログインの結果を書き込む。
// 成功時はセッションCookieを発行し、モーダルを閉じる。
func (h *AuthHandler) writeResult(w http.ResponseWriter, ws *workspace.Workspace, res authform.Result, successStatus int) {
	if !res.Success {
		status := http.StatusInternalServerError
		if res.Err != nil {
			status = mapAPIErrorToHTTPStatus(res.Err)
		}
		writeJSON(w, status, toAuthResponse(res))
		return
	}

	if res.Identity != nil {
		h.cookies.set(w, res.Identity.SessionID)
	}
	ws.Modals.Close()
	writeJSON(w, successStatus, toAuthResponse(res))
}

// sessionCookies はセッションCookieの発行と削除を行う。
type sessionCookies struct {
	domain string
	secure bool
	maxAge int
}

func newSessionCookies(config AuthHandlerConfig) sessionCookies {
	return sessionCookies{domain: config.CookieDomain, secure: config.CookieSecure, maxAge: config.SessionMaxAge}
}

func (c sessionCookies) set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   c.maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c sessionCookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toAuthResponse(res authform.Result) authResponse {
	resp := authResponse{Success: res.Success, Message: res.Message}
	if res.Err != nil {
		resp.Code = res.Err.Code
	}
	return resp
}
