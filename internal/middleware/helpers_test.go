package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/workspace"
)

// --- モック定義 ---

// stubProvider はセッションIDから固定のIdentityを復元する認証プロバイダー。
type stubProvider struct {
	sessions map[string]string // sessionID -> userID
}

func (p *stubProvider) SignUp(context.Context, string, string, string) (*model.Identity, error) {
	return nil, errors.New("not supported")
}

func (p *stubProvider) SignIn(context.Context, string, string) (*model.Identity, error) {
	return nil, errors.New("not supported")
}

func (p *stubProvider) SignOut(context.Context, string) error { return nil }

func (p *stubProvider) Resume(_ context.Context, sessionID string) (*model.Identity, error) {
	uid, ok := p.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &model.Identity{UID: uid, Email: uid + "@example.com", SessionID: sessionID}, nil
}

func (p *stubProvider) Refresh(_ context.Context, current *model.Identity) (*model.Identity, error) {
	return current, nil
}

type stubProfiles struct{}

func (stubProfiles) Load(_ context.Context, ident *model.Identity) model.Profile {
	return model.Profile{UID: ident.UID, Email: ident.Email}
}

type nopLists struct{}

func (nopLists) Add(context.Context, string, model.ListKind, string) error    { return nil }
func (nopLists) Remove(context.Context, string, model.ListKind, string) error { return nil }
func (nopLists) Subscribe(string, func(model.ListSnapshot)) func()           { return func() {} }

// newTestRegistry は "valid-session" → "user-123" のセッションを持つRegistryを返す。
func newTestRegistry() *workspace.Registry {
	return workspace.NewRegistry(workspace.Deps{
		Provider: &stubProvider{sessions: map[string]string{"valid-session": "user-123"}},
		Profiles: stubProfiles{},
		Lists:    nopLists{},
		Live:     nopLists{},
	}, workspace.Config{})
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

// requestWithUser はユーザーIDを注入したリクエストを返す。
func requestWithUser(method, path, userID string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// browserCookie はレスポンスから発行されたブラウザCookieを取り出す。
func browserCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == BrowserCookieName {
			return c
		}
	}
	return nil
}
