package searchhistory

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	// cookieMaxAge は履歴クッキーの保持期間。
	cookieMaxAge = 365 * 24 * time.Hour
	// maxCookieBytes はブラウザが1クッキーに許す名前・値・属性の合計の上限。
	maxCookieBytes = 4096
)

// ErrValueTooLarge は値がStorageの容量を超える場合のエラー。
var ErrValueTooLarge = errors.New("value too large for storage")

// CookieStorage はリクエストのクッキーを読み、レスポンスにSet-Cookieを書くStorage。
// 1リクエストの間だけ有効で、書き込んだ値は同じリクエスト内の Get に反映される。
type CookieStorage struct {
	w       http.ResponseWriter
	r       *http.Request
	secure  bool
	pending map[string]*string
}

// NewCookieStorage はCookieStorageを生成する。
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	return &CookieStorage{w: w, r: r, secure: secure, pending: map[string]*string{}}
}

// Get はクッキーの値を返す。
func (s *CookieStorage) Get(key string) (string, bool) {
	if v, ok := s.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	c, err := s.r.Cookie(key)
	if err != nil {
		return "", false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// Set は値をクッキーに書き込む。
// Set-Cookie が maxCookieBytes を超える場合は何も書かずに ErrValueTooLarge を返す。
func (s *CookieStorage) Set(key, value string) error {
	c := &http.Cookie{
		Name:     key,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(value)),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if n := len(c.String()); n > maxCookieBytes {
		return fmt.Errorf("cookie %s is %d bytes: %w", key, n, ErrValueTooLarge)
	}
	http.SetCookie(s.w, c)
	s.pending[key] = &value
	return nil
}

// Remove はクッキーを失効させる。
func (s *CookieStorage) Remove(key string) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.pending[key] = nil
	return nil
}

// MemoryStorage はプロセス内メモリに値を保持するStorage。
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

var (
	_ Storage = (*CookieStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
