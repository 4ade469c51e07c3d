// Package app はサブコマンドごとに依存関係を組み立ててアプリケーションを起動する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/movieverse/internal/authform"
	"github.com/hitoshi/movieverse/internal/catalog"
	"github.com/hitoshi/movieverse/internal/config"
	"github.com/hitoshi/movieverse/internal/contact"
	"github.com/hitoshi/movieverse/internal/database"
	"github.com/hitoshi/movieverse/internal/favorites"
	"github.com/hitoshi/movieverse/internal/handler"
	"github.com/hitoshi/movieverse/internal/identity"
	"github.com/hitoshi/movieverse/internal/live"
	"github.com/hitoshi/movieverse/internal/logger"
	"github.com/hitoshi/movieverse/internal/metrics"
	"github.com/hitoshi/movieverse/internal/middleware"
	"github.com/hitoshi/movieverse/internal/profile"
	"github.com/hitoshi/movieverse/internal/repository"
	"github.com/hitoshi/movieverse/internal/security"
	"github.com/hitoshi/movieverse/internal/user"
	"github.com/hitoshi/movieverse/internal/worker/cleanup"
	"github.com/hitoshi/movieverse/internal/workspace"
)

const (
	userAgent        = "movieverse/1.0"
	pruneInterval    = time.Minute
	shutdownTimeout  = 30 * time.Second
	attemptPruneTick = 5 * time.Minute
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.Options{})

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログを再構成する
	logger.SetupDefault(w, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting application",
		slog.String("command", string(CommandServe)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("catalog_source", cfg.CatalogSourceKind),
	)

	// 1. DB接続
	db, err := database.OpenWithPool(cfg.DatabaseURL, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.Int("max_open_conns", cfg.DBMaxOpenConns),
	)

	// 2. リポジトリとメトリクス
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	listRepo := repository.NewPostgresListRepo(db)

	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 認証プロバイダー
	tokens := identity.NewTokenIssuer([]byte(cfg.SessionSecret), cfg.BaseURL, cfg.IDTokenTTL)
	attempts := identity.NewAttemptLimiter(cfg.SignInRateLimit, cfg.SignInRateWindow)
	go attempts.Run(ctx, attemptPruneTick)

	identitySvc := identity.NewService(
		userRepo, userRepo, userRepo, sessionRepo, tokens, attempts,
		identity.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 4. リストのライブ配信
	hub := live.NewHub(listRepo)
	var lists favorites.ListWriter = listRepo
	if cfg.LiveListen {
		listener := live.NewPGListener(cfg.DatabaseURL, hub)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("list listener stopped", slog.String("error", err.Error()))
			}
		}()
	} else {
		lists = handler.NewNotifyingListWriter(listRepo, hub)
	}

	// 5. カタログ
	source, err := newCatalogSource(cfg, collector)
	if err != nil {
		return err
	}
	cache := catalog.NewCache(source,
		catalog.WithCacheRecorder(collector),
		catalog.WithCacheLogger(slog.Default()),
	)
	cache.Start(ctx)

	// 6. ワークスペース
	workspaces := workspace.NewRegistry(workspace.Deps{
		Provider: identitySvc,
		Profiles: profile.NewLoader(userRepo),
		Lists:    lists,
		Live:     hub,
		Catalog:  cache,
		Recorder: collector,
	}, workspace.Config{IdleTimeout: cfg.WorkspaceIdleTimeout})
	go workspaces.Run(ctx, pruneInterval)

	// 7. ルーターの構築
	// configのUserRateLimitはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.UserRateLimit) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.UserRateLimit
	limiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer limiter.Stop()

	userService := user.NewService(userRepo, sessionRepo, hub)

	router := handler.NewRouter(&handler.RouterDeps{
		Workspaces:        workspaces,
		TokenVerifier:     identitySvc,
		Cookies:           middleware.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		CSRF:              middleware.CSRFConfig{CookieSecure: cfg.CookieSecure, CookieDomain: cfg.CookieDomain},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Logger:            slog.Default(),
		RequestRecorder:   collector,

		Forms:     authform.NewController(identitySvc, collector),
		Directory: identitySvc,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			ReadyTimeout:  cfg.ReadyTimeout,
		},

		Catalog:            cache,
		CatalogLoadTimeout: cfg.CatalogLoadTimeout,

		UserService: handler.NewUserServiceAdapter(userService),
		Contact:     contact.NewService(repository.NewPostgresContactRepo(db), security.NewTextSanitizer()),

		HealthChecker:  handler.NewDBHealthChecker(db),
		MetricsHandler: metrics.Handler(registry),
		EventHeartbeat: cfg.EventHeartbeat,
	})

	// 8. HTTPサーバーの起動
	// /api/events は長時間接続のため WriteTimeout は設定しない
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	// イベントストリームを先に閉じないと Shutdown が接続の終了を待ち続ける
	workspaces.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newCatalogSource は設定に応じたカタログソースを生成する。
func newCatalogSource(cfg *config.Config, recorder catalog.FetchRecorder) (catalog.Source, error) {
	sanitizer := security.NewTextSanitizer()

	switch cfg.CatalogSourceKind {
	case config.SourceFile:
		return catalog.NewFileSource(cfg.CatalogFile, cfg.CatalogPollInterval, sanitizer, slog.Default()), nil
	case config.SourceRTDB, config.SourceFeed:
		guard := security.NewSourceGuard()
		if err := guard.ValidateURL(cfg.CatalogURL); err != nil {
			return nil, fmt.Errorf("invalid CATALOG_URL: %w", err)
		}
		httpCfg := catalog.HTTPSourceConfig{
			Name:         cfg.CatalogSourceKind,
			URL:          cfg.CatalogURL,
			PollInterval: cfg.CatalogPollInterval,
			MaxBodySize:  cfg.CatalogMaxBodySize,
			UserAgent:    userAgent,
		}
		client := guard.NewSafeClient(cfg.FetchTimeout)
		if cfg.CatalogSourceKind == config.SourceFeed {
			return catalog.NewFeedSource(httpCfg, client, guard, sanitizer, recorder, slog.Default()), nil
		}
		return catalog.NewJSONSource(httpCfg, client, guard, sanitizer, recorder, slog.Default()), nil
	default:
		return nil, fmt.Errorf("unknown catalog source kind: %q", cfg.CatalogSourceKind)
	}
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除と予約なしユーザーの検査を定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := poolConfig(cfg)
	pool.MaxOpenConns = 2
	db, err := database.OpenWithPool(cfg.DatabaseURL, pool)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db),
		repository.NewPostgresUserRepo(db),
		slog.Default(),
	)

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))
	job.Loop(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// migrateOptions は migrate サブコマンドのフラグ。
type migrateOptions struct {
	Steps  int  // 0 の場合はすべて適用する。負の値は巻き戻し
	Status bool // 状態の表示のみ行う
}

// runMigrate はデータベースマイグレーションを実行する。
// 既定ではすべての未適用マイグレーションを順番に適用する。
func runMigrate(w io.Writer, cfg *config.Config, opts migrateOptions) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", opts.Steps),
	)

	if opts.Status {
		status, err := database.Status(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		fmt.Fprintf(w, "version=%d latest=%d dirty=%t pending=%t\n",
			status.Version, status.Latest, status.Dirty, status.Pending())
		return nil
	}

	var err error
	if opts.Steps != 0 {
		err = database.StepMigrations(cfg.DatabaseURL, opts.Steps)
	} else {
		err = database.RunMigrations(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// poolConfig は設定からコネクションプールの設定を組み立てる。
func poolConfig(cfg *config.Config) database.PoolConfig {
	return database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
