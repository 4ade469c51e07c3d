package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/movieverse/internal/contact"
	"github.com/hitoshi/movieverse/internal/middleware"
	"github.com/hitoshi/movieverse/internal/model"
)

// ContactSubmitter はお問い合わせの受付インターフェース。contact.Serviceが実装する。
type ContactSubmitter interface {
	Submit(ctx context.Context, form contact.Form, userID string) (*model.ContactMessage, error)
}

// ContactHandler はお問い合わせフォームのHTTPハンドラー。
type ContactHandler struct {
	service ContactSubmitter
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactSubmitter) *ContactHandler {
	return &ContactHandler{service: service}
}

type contactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Submit はお問い合わせを保存する。ログイン中であればユーザーIDを添える。
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form contact.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&form); err != nil {
		writeInvalidRequest(w)
		return
	}

	var userID string
	if ws, err := middleware.WorkspaceFromContext(r.Context()); err == nil {
		userID = ws.UserID()
	}

	if _, err := h.service.Submit(r.Context(), form, userID); err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			slog.Error("failed to save contact message", slog.String("error", err.Error()))
		}
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contactResponse{Success: true, Message: contact.MsgSent})
}
