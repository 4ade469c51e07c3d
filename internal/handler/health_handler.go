package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker は依存先の疎通確認を行うインターフェース。
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CatalogStatus はカタログのロード状況を返すインターフェース。catalog.Cacheが実装する。
type CatalogStatus interface {
	IsLoaded() bool
	Version() uint64
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db      HealthChecker
	catalog CatalogStatus
	timeout time.Duration
}

// NewHealthHandler はHealthHandlerを生成する。db が nil の場合はデータベースの確認を省略する。
func NewHealthHandler(db HealthChecker, catalog CatalogStatus) *HealthHandler {
	return &HealthHandler{db: db, catalog: catalog, timeout: 2 * time.Second}
}

type healthResponse struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	CatalogLoaded  bool   `json:"catalogLoaded"`
	CatalogVersion uint64 `json:"catalogVersion"`
}

// Health はデータベースとカタログの状態を返す。
// データベースに接続できない場合は503を返す。カタログ未ロードは失敗として扱わない。
// GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "skipped"}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.db.Check(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			resp.Status = "unavailable"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	if h.catalog != nil {
		resp.CatalogLoaded = h.catalog.IsLoaded()
		resp.CatalogVersion = h.catalog.Version()
	}

	writeJSON(w, status, resp)
}
