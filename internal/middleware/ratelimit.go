package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/movieverse/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	AuthRate        rate.Limit    // サインイン・サインアップのレート（req/sec）
	AuthBurst       int           // サインイン・サインアップのバーストサイズ
	CleanupInterval time.Duration // 使われなくなったリミッターを掃除する間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min、サインイン・サインアップ 10 req/min（いずれもユーザーまたはブラウザ単位）。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		AuthRate:        rate.Limit(10.0 / 60.0),
		AuthBurst:       10,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiters はキーごとのトークンバケットを保持する。
type keyedLimiters struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiters(limit rate.Limit, burst int) *keyedLimiters {
	return &keyedLimiters{
		limit:   limit,
		burst:   burst,
		now:     time.Now,
		entries: make(map[string]*keyedEntry),
	}
}

// reserve はトークンを1つ消費する。
// 消費できなかった場合は次にトークンが補充されるまでの時間を返す。
func (k *keyedLimiters) reserve(key string) (time.Duration, bool) {
	now := k.now()

	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()

	res := e.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Duration(math.MaxInt64), false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// sweep は ttl を超えて使われていないエントリを削除し、削除件数を返す。
func (k *keyedLimiters) sweep(ttl time.Duration) int {
	cutoff := k.now().Add(-ttl)

	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for key, e := range k.entries {
		if e.lastSeen.Before(cutoff) {
			delete(k.entries, key)
			n++
		}
	}
	return n
}

func (k *keyedLimiters) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// RateLimiter はユーザーまたはブラウザごとのレート制限を管理する。
// API全般と認証フォーム送信の2系統を独立に持つ。
type RateLimiter struct {
	config  RateLimiterConfig
	general *keyedLimiters
	auth    *keyedLimiters

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成し、掃除用のゴルーチンを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newKeyedLimiters(config.GeneralRate, config.GeneralBurst),
		auth:    newKeyedLimiters(config.AuthRate, config.AuthBurst),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop は掃除用のゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証済みの場合はユーザーID、未認証の場合はブラウザIDを単位とする（WorkspaceMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware("general", rl.general)
}

// AuthMiddleware はサインイン・サインアップとお問い合わせ送信に使う厳しいレート制限ミドルウェアを返す。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware("auth", rl.auth)
}

func (rl *RateLimiter) middleware(limitType string, limiters *keyedLimiters) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := limitKey(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError("Please login"))
				return
			}

			if wait, allowed := limiters.reserve(key); !allowed {
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", limitType),
					slog.Duration("retry_after", wait),
				)
				writeTooManyRequests(w, retryAfterSeconds(wait))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// limitKey はレート制限の単位となるキーを返す。
func limitKey(r *http.Request) (string, bool) {
	if userID, err := UserIDFromContext(r.Context()); err == nil {
		return "user:" + userID, true
	}
	if ws, err := WorkspaceFromContext(r.Context()); err == nil {
		return "browser:" + ws.ID, true
	}
	return "", false
}

// retryAfterSeconds はRetry-Afterヘッダー用に待ち時間を秒に切り上げる。最小1秒、最大1時間。
func retryAfterSeconds(wait time.Duration) int {
	if wait > time.Hour {
		return int(time.Hour / time.Second)
	}
	sec := int(math.Ceil(wait.Seconds()))
	if sec < 1 {
		return 1
	}
	return sec
}

// GeneralLimiterCount は保持しているAPI全般リミッターの数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// AuthLimiterCount は保持している認証リミッターの数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.len()
}

// cleanupLoop は最終アクセスがCleanupIntervalの2倍より古いリミッターを定期的に削除する。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	ttl := rl.config.CleanupInterval * 2
	for {
		select {
		case <-ticker.C:
			if n := rl.general.sweep(ttl) + rl.auth.sweep(ttl); n > 0 {
				slog.Debug("rate limiter entries swept", slog.Int("removed", n))
			}
		case <-rl.stopCh:
			return
		}
	}
}
