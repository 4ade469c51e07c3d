package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/movieverse/internal/middleware"
	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/workspace"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse = middleware.ErrorResponseBody

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthRequired:
		return http.StatusUnauthorized
	case model.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case model.ErrCodeValidation, model.ErrCodeInvalidList, model.ErrCodeInvalidPage:
		return http.StatusBadRequest
	case model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case model.ErrCodeModalCooldown:
		return http.StatusConflict
	case model.ErrCodeMovieNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeCatalogNotLoaded:
		return http.StatusServiceUnavailable
	case model.ErrCodeListUpdateFailed, model.ErrCodeCatalogSourceFail:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeUnauthorized は未認証エラーを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError("Please login"))
}

// writeInvalidRequest はリクエストボディの解析失敗を書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// currentWorkspace はリクエストのワークスペースを返す。
// 取得できない場合はエラーレスポンスを書き込み false を返す。
func currentWorkspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, err := middleware.WorkspaceFromContext(r.Context())
	if err != nil {
		slog.Error("workspace missing from request context", slog.String("path", r.URL.Path))
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return ws, true
}

// waitSession はワークスペースの認証状態とプロフィールが確定するまで待機する。
// timeout を過ぎた場合はその時点の状態で処理を続ける。
func waitSession(ctx context.Context, ws *workspace.Workspace, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := ws.Session.WaitReady(ctx)
	if err == nil {
		err = ws.Session.WaitSettled(ctx)
	}
	if err != nil {
		slog.Warn("session not ready",
			slog.String("browser_id", ws.ID),
			slog.String("error", err.Error()),
		)
	}
}

// pageParam はクエリパラメータ page を読み取る。未指定は1ページ目。
func pageParam(r *http.Request) (int, *model.APIError) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, model.NewInvalidPageError(raw)
	}
	return page, nil
}
