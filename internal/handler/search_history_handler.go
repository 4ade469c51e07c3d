package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/movieverse/internal/searchhistory"
)

// SearchHistoryHandler はブラウザごとの検索履歴のHTTPハンドラー。履歴はCookieに保存する。
type SearchHistoryHandler struct {
	secure bool
}

// NewSearchHistoryHandler はSearchHistoryHandlerを生成する。
func NewSearchHistoryHandler(secure bool) *SearchHistoryHandler {
	return &SearchHistoryHandler{secure: secure}
}

type searchTermRequest struct {
	Term string `json:"term"`
}

type searchHistoryResponse struct {
	History []string `json:"history"`
}

// List は検索履歴を新しい順に返す。
// GET /api/search-history
func (h *SearchHistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	history := h.history(w, r)
	writeJSON(w, http.StatusOK, searchHistoryResponse{History: history.List()})
}

// Add は検索語を履歴の先頭に追加する。
// POST /api/search-history
func (h *SearchHistoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req searchTermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	entries, err := h.history(w, r).Add(req.Term)
	if err != nil {
		slog.Error("failed to save search history", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchHistoryResponse{History: entries})
}

// Clear は検索履歴を削除する。
// DELETE /api/search-history
func (h *SearchHistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.history(w, r).Clear(); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SearchHistoryHandler) history(w http.ResponseWriter, r *http.Request) *searchhistory.History {
	return searchhistory.New(searchhistory.NewCookieStorage(w, r, h.secure))
}
