package catalog

import (
	"net/http"
	"time"
)

// FetchResult はカタログ取得のHTTPステータスを、次の取得をどうするかで分類したもの。
type FetchResult int

const (
	FetchResultOK          FetchResult = iota // 本文を読み込む
	FetchResultNotModified                    // 現在のスナップショットを維持する
	FetchResultFatal                          // 取得先の設定誤りが疑われる
	FetchResultBackoff                        // 取得先の過負荷・障害。間隔を空けて再試行する
	FetchResultUnknown
)

var fetchResultNames = [...]string{"ok", "not_modified", "fatal", "backoff", "unknown"}

func (r FetchResult) String() string {
	if r < 0 || int(r) >= len(fetchResultNames) {
		return "unknown"
	}
	return fetchResultNames[r]
}

var statusResults = map[int]FetchResult{
	http.StatusOK:              FetchResultOK,
	http.StatusNotModified:     FetchResultNotModified,
	http.StatusUnauthorized:    FetchResultFatal,
	http.StatusForbidden:       FetchResultFatal,
	http.StatusNotFound:        FetchResultFatal,
	http.StatusGone:            FetchResultFatal,
	http.StatusTooManyRequests: FetchResultBackoff,
}

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。5xxはすべてバックオフ対象。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	if r, ok := statusResults[statusCode]; ok {
		return r
	}
	if statusCode >= http.StatusInternalServerError {
		return FetchResultBackoff
	}
	return FetchResultUnknown
}

// Backoff は連続失敗時の指数バックオフ。
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff は初回5秒、最大5分。
var DefaultBackoff = Backoff{Initial: 5 * time.Second, Max: 5 * time.Minute}

// Delay は consecutiveErrors 回連続で失敗した後の待ち時間 Initial*2^n を Max で頭打ちにして返す。
func (b Backoff) Delay(consecutiveErrors int) time.Duration {
	if consecutiveErrors <= 0 {
		return min(b.Initial, b.Max)
	}
	if consecutiveErrors >= 62 || b.Initial > b.Max>>consecutiveErrors {
		return b.Max
	}
	return b.Initial << consecutiveErrors
}
