package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AttemptLimiter はメールアドレスごとのサインイン試行回数を制限する。
// 上限を超えた試行は auth/too-many-requests として扱われる。
type AttemptLimiter struct {
	rate  rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	limiters map[string]*attemptEntry
	now      func() time.Time
}

type attemptEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewAttemptLimiter はAttemptLimiterを生成する。
// burst回まで連続で試行でき、以降はperの間隔で1回ずつ回復する。
func NewAttemptLimiter(burst int, per time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		rate:     rate.Every(per),
		burst:    burst,
		ttl:      per * time.Duration(burst) * 2,
		limiters: make(map[string]*attemptEntry),
		now:      time.Now,
	}
}

// Allow はキーの試行を1回消費し、許可されればtrueを返す。
func (l *AttemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[key]
	if !ok {
		e = &attemptEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = e
	}
	e.lastAccess = now
	return e.limiter.AllowN(now, 1)
}

// Reset はキーの試行履歴を破棄する。サインイン成功時に呼ぶ。
func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}

// Prune は最終試行からttlを過ぎたエントリを削除し、削除件数を返す。
func (l *AttemptLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, e := range l.limiters {
		if now.Sub(e.lastAccess) > l.ttl {
			delete(l.limiters, key)
			n++
		}
	}
	return n
}

// Run はコンテキストがキャンセルされるまでinterval毎にPruneを実行する。
func (l *AttemptLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Prune()
		case <-ctx.Done():
			return
		}
	}
}
