package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/movieverse/internal/authform"
	"github.com/hitoshi/movieverse/internal/middleware"
)

// CatalogService はルーターが必要とするカタログ機能をまとめたインターフェース。catalog.Cacheが実装する。
type CatalogService interface {
	CatalogReader
	CatalogStatus
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Workspaces        middleware.WorkspaceAcquirer
	TokenVerifier     middleware.TokenVerifier
	Cookies           middleware.CookieConfig
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	RequestRecorder   middleware.RequestRecorder // nil 可

	// 認証
	Forms      *authform.Controller
	Directory  authform.Directory
	AuthConfig AuthHandlerConfig

	// カタログ
	Catalog            CatalogService
	CatalogLoadTimeout time.Duration

	// ユーザー
	UserService UserServiceInterface
	Contact     ContactSubmitter

	// 運用
	HealthChecker  HealthChecker // nil 可
	MetricsHandler http.Handler  // nil 可
	EventHeartbeat time.Duration
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → Workspace → RateLimit(General) → CSRF
//
// 認証が必要なルートはさらに Auth を通す。/healthz と /metrics はワークスペースを作らない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.RequestRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookies.Secure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	healthHandler := NewHealthHandler(deps.HealthChecker, deps.Catalog)
	authHandler := NewAuthHandler(deps.Forms, deps.Directory, deps.AuthConfig)
	catalogHandler := NewCatalogHandler(deps.Catalog, deps.CatalogLoadTimeout)
	listHandler := NewListHandler(deps.Catalog, deps.AuthConfig.ReadyTimeout, deps.CatalogLoadTimeout)
	historyHandler := NewSearchHistoryHandler(deps.Cookies.Secure)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
	eventsHandler := NewEventsHandler(deps.EventHeartbeat)
	contactHandler := NewContactHandler(deps.Contact)

	// --- 運用エンドポイント ---
	r.Get("/healthz", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- ブラウザ向けAPI ---
	// ミドルウェアスタック: Workspace → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewWorkspaceMiddleware(deps.Workspaces, deps.Cookies))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)
		r.Get("/api/session", authHandler.Session)
		r.Get("/api/events", eventsHandler.Stream)

		// 認証フォームとモーダル
		r.Route("/api/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.SignUp)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/username", authHandler.UsernameAvailable)

			r.Get("/modal", authHandler.ModalState)
			r.Post("/modal", authHandler.OpenModal)
			r.Delete("/modal", authHandler.CloseModal)
			r.Post("/modal/switch", authHandler.SwitchModal)
		})

		// カタログ
		r.Get("/api/home", catalogHandler.Home)
		r.Get("/api/movies", catalogHandler.MovieByTitle)
		r.Get("/api/movies/{id}", catalogHandler.Movie)
		r.Get("/api/trending", catalogHandler.Trending)
		r.Get("/api/top-rated", catalogHandler.TopRated)
		r.Get("/api/genres", catalogHandler.Genres)
		r.Get("/api/genres/{genre}", catalogHandler.Genre)
		r.Get("/api/search", catalogHandler.Search)
		r.Get("/api/search/suggestions", catalogHandler.Suggestions)

		// 検索履歴
		r.Route("/api/search-history", func(r chi.Router) {
			r.Get("/", historyHandler.List)
			r.Post("/", historyHandler.Add)
			r.Delete("/", historyHandler.Clear)
		})

		// お気に入り・ウォッチリスト（未ログイン時はリスト側のメッセージを返す）
		r.Route("/api/lists/{list}", func(r chi.Router) {
			r.Get("/", listHandler.Collection)
			r.Put("/{movieID}", listHandler.Add)
			r.Delete("/{movieID}", listHandler.Remove)
			r.Post("/{movieID}/toggle", listHandler.Toggle)
		})

		r.Get("/api/account", userHandler.Account)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/api/contact", contactHandler.Submit)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))

			r.Delete("/api/users/me", userHandler.Withdraw)
		})
	})

	return r
}
