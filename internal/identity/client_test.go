package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/movieverse/internal/model"
)

type mockProvider struct {
	signUpFn  func(ctx context.Context, email, password, username string) (*model.Identity, error)
	signInFn  func(ctx context.Context, email, password string) (*model.Identity, error)
	signOutFn func(ctx context.Context, sessionID string) error
	resumeFn  func(ctx context.Context, sessionID string) (*model.Identity, error)
	refreshFn func(ctx context.Context, current *model.Identity) (*model.Identity, error)
}

func (m *mockProvider) SignUp(ctx context.Context, email, password, username string) (*model.Identity, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, username)
	}
	return &model.Identity{UID: "u-new", Email: email, SessionID: "s-new"}, nil
}

func (m *mockProvider) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &model.Identity{UID: "u1", Email: email, SessionID: "s1"}, nil
}

func (m *mockProvider) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockProvider) Resume(ctx context.Context, sessionID string) (*model.Identity, error) {
	if m.resumeFn != nil {
		return m.resumeFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockProvider) Refresh(ctx context.Context, current *model.Identity) (*model.Identity, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, current)
	}
	next := *current
	next.IDToken = current.IDToken + "-refreshed"
	return &next, nil
}

var _ Provider = (*mockProvider)(nil)

func TestClient_OnChangeFiresImmediately(t *testing.T) {
	c := NewClient(&mockProvider{})

	var got []*model.Identity
	unsubscribe := c.OnChange(func(id *model.Identity) { got = append(got, id) })
	defer unsubscribe()

	if len(got) != 1 || got[0] != nil {
		t.Fatalf("initial notifications = %v, want [nil]", got)
	}
}

func TestClient_SignInSignOutNotifies(t *testing.T) {
	c := NewClient(&mockProvider{})
	ctx := context.Background()

	var got []*model.Identity
	c.OnChange(func(id *model.Identity) { got = append(got, id) })

	if _, err := c.SignIn(ctx, "a@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("notifications = %d, want 4", len(got))
	}
	if got[1] == nil || got[1].UID != "u1" {
		t.Errorf("sign-in notification = %+v", got[1])
	}
	if got[2] == nil || got[2].UID != "u1" || got[2].IDToken == got[1].IDToken {
		t.Errorf("refresh notification = %+v, want same UID with new token", got[2])
	}
	if got[3] != nil {
		t.Errorf("sign-out notification = %+v, want nil", got[3])
	}
	if c.Current() != nil {
		t.Error("Current() should be nil after sign-out")
	}
}

func TestClient_FailedSignInKeepsState(t *testing.T) {
	c := NewClient(&mockProvider{
		signInFn: func(context.Context, string, string) (*model.Identity, error) {
			return nil, ErrWrongPassword
		},
	})

	calls := 0
	c.OnChange(func(*model.Identity) { calls++ })

	if _, err := c.SignIn(context.Background(), "a@example.com", "bad"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("SignIn() error = %v, want %v", err, ErrWrongPassword)
	}
	if calls != 1 {
		t.Errorf("listener calls = %d, want 1 (initial only)", calls)
	}
}

func TestClient_UnsubscribeStopsNotifications(t *testing.T) {
	c := NewClient(&mockProvider{})

	calls := 0
	unsubscribe := c.OnChange(func(*model.Identity) { calls++ })
	unsubscribe()

	if _, err := c.SignIn(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("listener calls = %d, want 1", calls)
	}
}

func TestClient_RestoreWithInvalidSession(t *testing.T) {
	c := NewClient(&mockProvider{})

	var last *model.Identity = &model.Identity{UID: "sentinel"}
	c.OnChange(func(id *model.Identity) { last = id })

	if err := c.Restore(context.Background(), "expired"); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if last != nil {
		t.Errorf("last notification = %+v, want nil", last)
	}
}

func TestClient_SignOutWhenSignedOutIsNoop(t *testing.T) {
	called := false
	c := NewClient(&mockProvider{
		signOutFn: func(context.Context, string) error {
			called = true
			return nil
		},
	})
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if called {
		t.Error("provider SignOut should not be called when signed out")
	}
}
