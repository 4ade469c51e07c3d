package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/movieverse/internal/catalog"
	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/view"
)

// defaultLoadTimeout はカタログの初回ロードを待つ既定の時間。
const defaultLoadTimeout = 5 * time.Second

// CatalogReader はカタログハンドラーが必要とする読み取りインターフェース。catalog.Cacheが実装する。
type CatalogReader interface {
	WaitLoaded(ctx context.Context) ([]model.Movie, error)
	Get(id string) (model.Movie, bool)
}

// CatalogHandler は作品一覧・詳細・検索のHTTPハンドラー。
type CatalogHandler struct {
	catalog     CatalogReader
	loadTimeout time.Duration
}

// NewCatalogHandler はCatalogHandlerを生成する。loadTimeout が0以下なら既定値を使う。
func NewCatalogHandler(reader CatalogReader, loadTimeout time.Duration) *CatalogHandler {
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &CatalogHandler{catalog: reader, loadTimeout: loadTimeout}
}

// Home はトップページの各セクションを返す。
// GET /api/home
func (h *CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	movies, ok := h.movies(w, r)
	if !ok {
		return
	}
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view.RenderHome(movies, ws.Lists))
}

// Movie は作品詳細を返す。
// GET /api/movies/{id}
func (h *CatalogHandler) Movie(w http.ResponseWriter, r *http.Request) {
	movies, ok := h.movies(w, r)
	if !ok {
		return
	}
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	m, found := h.catalog.Get(id)
	if !found {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMovieNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, view.RenderDetail(movies, m, ws.Lists))
}

// MovieByTitle はタイトルが一致する作品の詳細を返す。
// GET /api/movies?title=xxx
func (h *CatalogHandler) MovieByTitle(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("title is required"))
		return
	}

	movies, ok := h.movies(w, r)
	if !ok {
		return
	}
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	m, found := catalog.FindByTitle(movies, title)
	if !found {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMovieNotFoundError(title))
		return
	}
	writeJSON(w, http.StatusOK, view.RenderDetail(movies, m, ws.Lists))
}

// Trending は公開年の新しい順の一覧を返す。
// GET /api/trending?page=N
func (h *CatalogHandler) Trending(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(movies []model.Movie, page int, state view.ListState) view.Listing {
		return view.RenderTrending(movies, page, state)
	})
}

// TopRated は評価の高い順の一覧を返す。
// GET /api/top-rated?page=N
func (h *CatalogHandler) TopRated(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(movies []model.Movie, page int, state view.ListState) view.Listing {
		return view.RenderTopRated(movies, page, state)
	})
}

// Genre はジャンル別の一覧を返す。
// GET /api/genres/{genre}?page=N
func (h *CatalogHandler) Genre(w http.ResponseWriter, r *http.Request) {
	genre, err := url.PathUnescape(chi.URLParam(r, "genre"))
	if err != nil || strings.TrimSpace(genre) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("genre is required"))
		return
	}
	h.listing(w, r, func(movies []model.Movie, page int, state view.ListState) view.Listing {
		return view.RenderGenre(movies, genre, page, state)
	})
}

// Genres はカタログに含まれるジャンル一覧を返す。
// GET /api/genres
func (h *CatalogHandler) Genres(w http.ResponseWriter, r *http.Request) {
	movies, ok := h.movies(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"genres": catalog.Genres(movies)})
}

// Search はタイトル検索の結果を返す。
// GET /api/search?q=xxx&page=N
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	h.listing(w, r, func(movies []model.Movie, page int, state view.ListState) view.Listing {
		return view.RenderSearch(movies, query, page, state)
	})
}

// Suggestions は検索ボックスの候補を返す。空の入力には空配列を返す。
// GET /api/search/suggestions?q=xxx
func (h *CatalogHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeJSON(w, http.StatusOK, map[string][]view.Card{"suggestions": {}})
		return
	}

	movies, ok := h.movies(w, r)
	if !ok {
		return
	}
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]view.Card{
		"suggestions": view.RenderSuggestions(movies, query, ws.Lists),
	})
}

func (h *CatalogHandler) listing(w http.ResponseWriter, r *http.Request, render func([]model.Movie, int, view.ListState) view.Listing) {
	page, perr := pageParam(r)
	if perr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, perr)
		return
	}
	movies, ok := h.movies(w, r)
	if !ok {
		return
	}
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, render(movies, page, ws.Lists))
}

// movies は初回ロードを待ってカタログを返す。
// 待機時間内にロードされなければ503を書き込み false を返す。
func (h *CatalogHandler) movies(w http.ResponseWriter, r *http.Request) ([]model.Movie, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.loadTimeout)
	defer cancel()

	movies, err := h.catalog.WaitLoaded(ctx)
	if err != nil {
		slog.Warn("catalog not loaded",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewCatalogNotLoadedError())
		return nil, false
	}
	return movies, true
}
