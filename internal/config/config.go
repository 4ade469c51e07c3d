// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// カタログソースの種別。
const (
	SourceRTDB = "rtdb"
	SourceFeed = "feed"
	SourceFile = "file"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`
	LiveListen  bool   `env:"LIVE_LISTEN" envDefault:"true"` // PostgreSQLのLISTEN/NOTIFYでリスト変更を受信する

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Session
	SessionSecret string        `env:"SESSION_SECRET,notEmpty"`
	SessionMaxAge int           `env:"SESSION_MAX_AGE" envDefault:"1209600"` // 秒（14日）
	IDTokenTTL    time.Duration `env:"ID_TOKEN_TTL" envDefault:"1h"`
	ReadyTimeout  time.Duration `env:"SESSION_READY_TIMEOUT" envDefault:"3s"`

	// Catalog
	CatalogSourceKind   string        `env:"CATALOG_SOURCE_KIND" envDefault:"rtdb"`
	CatalogURL          string        `env:"CATALOG_URL"`
	CatalogPollInterval time.Duration `env:"CATALOG_POLL_INTERVAL" envDefault:"1m"`
	CatalogFile         string        `env:"CATALOG_FILE" envDefault:"catalog.toml"`
	CatalogLoadTimeout  time.Duration `env:"CATALOG_LOAD_TIMEOUT" envDefault:"5s"`
	CatalogMaxBodySize  int64         `env:"CATALOG_MAX_BODY_SIZE" envDefault:"10485760"`
	FetchTimeout        time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`

	// Workspace
	WorkspaceIdleTimeout time.Duration `env:"WORKSPACE_IDLE_TIMEOUT" envDefault:"30m"`
	EventHeartbeat       time.Duration `env:"EVENT_HEARTBEAT" envDefault:"25s"`

	// Rate Limit
	UserRateLimit    int           `env:"USER_RATE_LIMIT" envDefault:"120"`  // req/min
	SignInRateLimit  int           `env:"SIGNIN_RATE_LIMIT" envDefault:"10"` // 試行回数/SignInRateWindow
	SignInRateWindow time.Duration `env:"SIGNIN_RATE_WINDOW" envDefault:"15m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Worker
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`

	// Server
	ServerPort string `env:"PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定のものをすべて列挙したエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		if missing := missingVars(err); len(missing) > 0 {
			return nil, fmt.Errorf("required environment variables are not set: %v", missing)
		}
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CatalogSourceKind {
	case SourceRTDB, SourceFeed:
		if c.CatalogURL == "" {
			return fmt.Errorf("CATALOG_URL is required when CATALOG_SOURCE_KIND=%s", c.CatalogSourceKind)
		}
	case SourceFile:
		if c.CatalogFile == "" {
			return fmt.Errorf("CATALOG_FILE is required when CATALOG_SOURCE_KIND=%s", c.CatalogSourceKind)
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE_KIND must be one of rtdb, feed, file: %q", c.CatalogSourceKind)
	}
	if c.UserRateLimit <= 0 || c.SignInRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if !slices.Contains([]string{"json", "text"}, c.LogFormat) {
		return fmt.Errorf("LOG_FORMAT must be json or text: %q", c.LogFormat)
	}
	return nil
}

// missingVars は未設定または空の必須環境変数名を返す。
func missingVars(err error) []string {
	var agg env.AggregateError
	errs := []error{err}
	if errors.As(err, &agg) {
		errs = agg.Errors
	}

	var missing []string
	for _, e := range errs {
		var notSet env.EnvVarIsNotSetError
		var empty env.EmptyEnvVarError
		switch {
		case errors.As(e, &notSet):
			missing = append(missing, notSet.Key)
		case errors.As(e, &empty):
			missing = append(missing, empty.Key)
		}
	}
	return missing
}
