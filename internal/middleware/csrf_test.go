package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/movieverse/internal/model"
)

func csrfTestHandler(called *bool) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_SafeMethodsPassWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		called := false
		w := httptest.NewRecorder()
		csrfTestHandler(&called).ServeHTTP(w, httptest.NewRequest(method, "/api/home", nil))

		if !called || w.Code != http.StatusOK {
			t.Errorf("%s: called = %v, status = %d", method, called, w.Code)
		}
	}
}

func TestCSRFMiddleware_StateChangingRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		cookie string
		header string
		bearer string
		want   int
	}{
		{name: "Cookieなし", method: http.MethodPost, header: "tok", want: http.StatusForbidden},
		{name: "ヘッダーなし", method: http.MethodPost, cookie: "tok", want: http.StatusForbidden},
		{name: "不一致", method: http.MethodPost, cookie: "tok", header: "other", want: http.StatusForbidden},
		{name: "POST一致", method: http.MethodPost, cookie: "tok", header: "tok", want: http.StatusOK},
		{name: "PUT一致", method: http.MethodPut, cookie: "tok", header: "tok", want: http.StatusOK},
		{name: "DELETE一致", method: http.MethodDelete, cookie: "tok", header: "tok", want: http.StatusOK},
		{name: "PATCHトークンなし", method: http.MethodPatch, want: http.StatusForbidden},
		{name: "DELETEトークンなし", method: http.MethodDelete, want: http.StatusForbidden},
		{name: "Bearer認証は検証しない", method: http.MethodPut, bearer: "id-token", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/lists/favorites/m1", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeaderName, tt.header)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			called := false
			w := httptest.NewRecorder()
			csrfTestHandler(&called).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if called != (tt.want == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
			if tt.want == http.StatusForbidden {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode: %v", err)
				}
				if body.Code != model.ErrCodeCSRFInvalid {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
				}
			}
		})
	}
}

func TestCSRFMiddleware_GETSetsCookieOnce(t *testing.T) {
	called := false
	h := csrfTestHandler(&called)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/home", nil))

	var csrf *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == CSRFCookieName {
			csrf = c
		}
	}
	if csrf == nil {
		t.Fatal("CSRF cookie should be set on first GET")
	}
	if csrf.HttpOnly {
		t.Error("CSRF cookie must be readable from JavaScript")
	}
	if len(csrf.Value) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(csrf.Value))
	}
	if csrf.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", csrf.MaxAge)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/home", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if len(w.Result().Cookies()) != 0 {
		t.Errorf("existing cookie should not be replaced: %v", w.Result().Cookies())
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	config := CSRFConfig{CookieSecure: true, CookieDomain: "example.com"}
	chain := NewCSRFMiddleware(config)(NewCSRFTokenHandler(config))

	t.Run("新規発行はCookieとレスポンスが一致する", func(t *testing.T) {
		w := httptest.NewRecorder()
		chain.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}

		var cookies []*http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == CSRFCookieName {
				cookies = append(cookies, c)
			}
		}
		if len(cookies) != 1 {
			t.Fatalf("Set-Cookie count = %d, want 1", len(cookies))
		}
		if cookies[0].Value != body.Token || body.Token == "" {
			t.Errorf("cookie = %q, token = %q", cookies[0].Value, body.Token)
		}
		if !cookies[0].Secure || cookies[0].Domain != "example.com" {
			t.Errorf("cookie attributes = %+v", cookies[0])
		}
		if w.Header().Get("Cache-Control") != "no-store" {
			t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
		}
	})

	t.Run("既存Cookieのトークンを返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing-csrf-token"})
		w := httptest.NewRecorder()
		chain.ServeHTTP(w, req)

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if body.Token != "existing-csrf-token" {
			t.Errorf("token = %q, want %q", body.Token, "existing-csrf-token")
		}
	})
}
