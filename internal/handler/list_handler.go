package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/movieverse/internal/favorites"
	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/view"
	"github.com/hitoshi/movieverse/internal/workspace"
)

// ListHandler はお気に入り・ウォッチリストのHTTPハンドラー。
// 未ログイン時の操作はリスト側のメッセージをそのまま返す。
type ListHandler struct {
	catalog      CatalogReader
	readyTimeout time.Duration
	loadTimeout  time.Duration
}

// NewListHandler はListHandlerを生成する。
func NewListHandler(reader CatalogReader, readyTimeout, loadTimeout time.Duration) *ListHandler {
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &ListHandler{catalog: reader, readyTimeout: readyTimeout, loadTimeout: loadTimeout}
}

// listResultResponse はリスト変更操作のAPIレスポンス。
type listResultResponse struct {
	favorites.Result
	List    model.ListKind `json:"list"`
	MovieID string         `json:"movieId"`
	Count   int            `json:"count"`
}

// Toggle は作品のリスト所属状態を反転する。
// POST /api/lists/{list}/{movieID}/toggle
func (h *ListHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*favorites.Store).Toggle, func(s *favorites.Store, kind model.ListKind, id string) bool {
		return !s.Contains(kind, id)
	})
}

// Add は作品をリストに追加する。
// PUT /api/lists/{list}/{movieID}
func (h *ListHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*favorites.Store).Add, func(*favorites.Store, model.ListKind, string) bool { return true })
}

// Remove は作品をリストから削除する。カタログから消えた作品も削除できる。
// DELETE /api/lists/{list}/{movieID}
func (h *ListHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*favorites.Store).Remove, nil)
}

// Collection はお気に入りまたはウォッチリストのページを返す。
// GET /api/lists/{list}
func (h *ListHandler) Collection(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseListParam(w, r)
	if !ok {
		return
	}
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	waitSession(r.Context(), ws, h.readyTimeout)

	ctx, cancel := context.WithTimeout(r.Context(), h.loadTimeout)
	defer cancel()
	movies, err := h.catalog.WaitLoaded(ctx)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewCatalogNotLoadedError())
		return
	}

	loggedIn := ws.UserID() != ""
	writeJSON(w, http.StatusOK, view.RenderCollection(movies, kind, ws.Lists.IDs(kind), loggedIn, ws.Lists))
}

// mutate はリスト操作を実行する。adds が true を返す場合（追加になる場合）は
// 作品がカタログに存在することを先に確認する。
func (h *ListHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(*favorites.Store, context.Context, model.ListKind, string) favorites.Result,
	adds func(*favorites.Store, model.ListKind, string) bool,
) {
	kind, ok := parseListParam(w, r)
	if !ok {
		return
	}
	movieID := chi.URLParam(r, "movieID")
	if movieID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("movie ID is required"))
		return
	}
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	waitSession(r.Context(), ws, h.readyTimeout)

	if adds != nil && adds(ws.Lists, kind, movieID) && !h.requireMovie(w, r, movieID) {
		return
	}

	res := op(ws.Lists, r.Context(), kind, movieID)
	writeJSON(w, listResultStatus(res), toListResultResponse(ws, res, kind, movieID))
}

// requireMovie はカタログに作品があるかを確認し、なければエラーを書き込んで false を返す。
func (h *ListHandler) requireMovie(w http.ResponseWriter, r *http.Request, movieID string) bool {
	ctx, cancel := context.WithTimeout(r.Context(), h.loadTimeout)
	defer cancel()
	if _, err := h.catalog.WaitLoaded(ctx); err != nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewCatalogNotLoadedError())
		return false
	}
	if _, ok := h.catalog.Get(movieID); !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMovieNotFoundError(movieID))
		return false
	}
	return true
}

func toListResultResponse(ws *workspace.Workspace, res favorites.Result, kind model.ListKind, movieID string) listResultResponse {
	return listResultResponse{
		Result:  res,
		List:    kind,
		MovieID: movieID,
		Count:   len(ws.Lists.IDs(kind)),
	}
}

func listResultStatus(res favorites.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.AuthRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func parseListParam(w http.ResponseWriter, r *http.Request) (model.ListKind, bool) {
	raw := chi.URLParam(r, "list")
	kind, ok := model.ParseListKind(raw)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidListError(raw))
		return "", false
	}
	return kind, true
}
