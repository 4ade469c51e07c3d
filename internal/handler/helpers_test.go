package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/movieverse/internal/authform"
	"github.com/hitoshi/movieverse/internal/catalog"
	"github.com/hitoshi/movieverse/internal/contact"
	"github.com/hitoshi/movieverse/internal/identity"
	"github.com/hitoshi/movieverse/internal/live"
	"github.com/hitoshi/movieverse/internal/middleware"
	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/profile"
	"github.com/hitoshi/movieverse/internal/security"
	"github.com/hitoshi/movieverse/internal/workspace"
)

// --- インメモリの認証プロバイダー ---

type memAccount struct {
	user     model.User
	password string
}

// memAccounts は identity.Provider、authform.Directory、profile.UserFinder を
// メモリ上で実装する。
type memAccounts struct {
	mu       sync.Mutex
	byEmail  map[string]*memAccount
	byID     map[string]*memAccount
	sessions map[string]string // sessionID -> userID
	next     int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		byEmail:  map[string]*memAccount{},
		byID:     map[string]*memAccount{},
		sessions: map[string]string{},
	}
}

func (m *memAccounts) issueLocked(a *memAccount) *model.Identity {
	m.next++
	sid := fmt.Sprintf("session-%d", m.next)
	m.sessions[sid] = a.user.ID
	return &model.Identity{
		UID:       a.user.ID,
		Email:     a.user.Email,
		SessionID: sid,
		IDToken:   "token-" + sid,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (m *memAccounts) SignUp(_ context.Context, email, password, username string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, identity.ErrEmailAlreadyInUse
	}
	m.next++
	a := &memAccount{
		user: model.User{
			ID:        fmt.Sprintf("user-%d", m.next),
			Email:     email,
			Username:  username,
			CreatedAt: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		},
		password: password,
	}
	m.byEmail[email] = a
	m.byID[a.user.ID] = a
	return m.issueLocked(a), nil
}

func (m *memAccounts) SignIn(_ context.Context, email, password string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	if a.password != password {
		return nil, identity.ErrWrongPassword
	}
	return m.issueLocked(a), nil
}

func (m *memAccounts) SignOut(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *memAccounts) Resume(_ context.Context, sessionID string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	a, ok := m.byID[uid]
	if !ok {
		return nil, nil
	}
	return &model.Identity{UID: uid, Email: a.user.Email, SessionID: sessionID, IDToken: "token-" + sessionID}, nil
}

func (m *memAccounts) Refresh(ctx context.Context, current *model.Identity) (*model.Identity, error) {
	return m.Resume(ctx, current.SessionID)
}

func (m *memAccounts) UsernameAvailable(_ context.Context, username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if strings.EqualFold(a.user.Username, username) {
			return false
		}
	}
	return true
}

func (m *memAccounts) LookupEmailByUsername(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if strings.EqualFold(a.user.Username, username) {
			return a.user.Email, nil
		}
	}
	return "", identity.ErrUsernameNotFound
}

func (m *memAccounts) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	u := a.user
	return &u, nil
}

func (m *memAccounts) remove(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[userID]; ok {
		delete(m.byEmail, a.user.Email)
		delete(m.byID, userID)
	}
	for sid, uid := range m.sessions {
		if uid == userID {
			delete(m.sessions, sid)
		}
	}
}

// --- インメモリのリストリポジトリ ---

type memLists struct {
	mu      sync.Mutex
	entries map[string]map[model.ListKind][]string
	failAdd error
}

func newMemLists() *memLists {
	return &memLists{entries: map[string]map[model.ListKind][]string{}}
}

func (m *memLists) Add(_ context.Context, userID string, kind model.ListKind, movieID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd != nil {
		return m.failAdd
	}
	if m.entries[userID] == nil {
		m.entries[userID] = map[model.ListKind][]string{}
	}
	if !slices.Contains(m.entries[userID][kind], movieID) {
		m.entries[userID][kind] = append(m.entries[userID][kind], movieID)
	}
	return nil
}

func (m *memLists) Remove(_ context.Context, userID string, kind model.ListKind, movieID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.entries[userID][kind]
	if i := slices.Index(ids, movieID); i >= 0 {
		m.entries[userID][kind] = slices.Delete(ids, i, i+1)
	}
	return nil
}

func (m *memLists) Snapshot(_ context.Context, userID string) (model.ListSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKind := m.entries[userID]
	return model.ListSnapshot{
		UserID:    userID,
		Favorites: slices.Clone(byKind[model.ListFavorites]),
		Watchlist: slices.Clone(byKind[model.ListWatchlist]),
		Watched:   slices.Clone(byKind[model.ListWatched]),
	}, nil
}

func (m *memLists) ids(userID string, kind model.ListKind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries[userID][kind])
}

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// memContacts は保存されたお問い合わせを保持する。
type memContacts struct {
	mu    sync.Mutex
	saved []model.ContactMessage
	err   error
}

func (m *memContacts) Create(_ context.Context, msg *model.ContactMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, *msg)
	return nil
}

func (m *memContacts) all() []model.ContactMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.saved)
}

type mockVerifier struct {
	verifyFn func(token string) (string, error)
}

func (m *mockVerifier) VerifyToken(token string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return "", errors.New("invalid token")
}

// --- テスト環境 ---

type testEnv struct {
	t        *testing.T
	server   *httptest.Server
	client   *http.Client
	accounts *memAccounts
	lists    *memLists
	cache    *catalog.Cache
	registry *workspace.Registry
	users    *mockUserService
	contacts *memContacts
	csrf     string
}

// newTestEnv はインメモリの依存でルーター全体を起動する。
// movies が nil の場合、カタログは未ロードのまま。
func newTestEnv(t *testing.T, movies []model.Movie) *testEnv {
	t.Helper()

	accounts := newMemAccounts()
	lists := newMemLists()
	hub := live.NewHub(lists)
	cache := catalog.NewCache(nil)
	if movies != nil {
		cache.Replace(movies)
	}

	registry := workspace.NewRegistry(workspace.Deps{
		Provider: accounts,
		Profiles: profile.NewLoader(accounts),
		Lists:    NewNotifyingListWriter(lists, hub),
		Live:     hub,
		Catalog:  cache,
	}, workspace.Config{})

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	users := &mockUserService{}
	contacts := &memContacts{}

	router := NewRouter(&RouterDeps{
		Workspaces:    registry,
		TokenVerifier: &mockVerifier{},
		RateLimiter:   limiter,
		Forms:         authform.NewController(accounts, nil),
		Directory:     accounts,
		AuthConfig: AuthHandlerConfig{
			SessionMaxAge: 3600,
			ReadyTimeout:  2 * time.Second,
		},
		Catalog:            cache,
		CatalogLoadTimeout: 100 * time.Millisecond,
		UserService:        users,
		Contact:            contact.NewService(contacts, security.NewTextSanitizer()),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "# metrics\n")
		}),
		EventHeartbeat: time.Second,
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		registry.Close()
		limiter.Stop()
	})

	return &testEnv{
		t:        t,
		server:   server,
		client:   newBrowser(t),
		accounts: accounts,
		lists:    lists,
		cache:    cache,
		registry: registry,
		users:    users,
		contacts: contacts,
	}
}

// newBrowser はCookieを保持するHTTPクライアントを返す。
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

// do はリクエストを送信する。状態変更メソッドにはCSRFトークンを付ける。
func (e *testEnv) do(method, path string, body any) *http.Response {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", e.csrfToken())
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(path string) *http.Response {
	e.t.Helper()
	return e.do(http.MethodGet, path, nil)
}

func (e *testEnv) csrfToken() string {
	e.t.Helper()
	if e.csrf != "" {
		return e.csrf
	}
	resp, err := e.client.Get(e.server.URL + "/api/csrf-token")
	if err != nil {
		e.t.Fatalf("csrf token: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		e.t.Fatalf("decode csrf token: %v", err)
	}
	e.csrf = body.Token
	if c := e.cookie("csrf_token"); c != "" {
		e.csrf = c
	}
	return e.csrf
}

// signUp は新規アカウントを作成してログイン状態にする。
func (e *testEnv) signUp(username, email, password string) {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/auth/signup", authform.SignupForm{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	})
	if resp.StatusCode != http.StatusCreated {
		e.t.Fatalf("signup status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

// cookie は指定名のCookieの値を返す。
func (e *testEnv) cookie(name string) string {
	for _, c := range e.client.Jar.Cookies(mustParseURL(e.t, e.server.URL)) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

// eventually は cond が true を返すまで待つ。
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// testMovies は n 件の作品を返す。偶数番目は Action、奇数番目は Drama。
func testMovies(n int) []model.Movie {
	movies := make([]model.Movie, n)
	for i := range movies {
		genre := "Action"
		if i%2 == 1 {
			genre = "Drama"
		}
		movies[i] = model.Movie{
			ID:     fmt.Sprintf("m%02d", i),
			Title:  fmt.Sprintf("Movie %02d", i),
			Year:   fmt.Sprintf("%d", 2000+i%10),
			Rating: fmt.Sprintf("%d.0", i%10),
			Genre:  []string{genre},
		}
	}
	return movies
}
