package identity

import (
	"context"
	"sync"

	"github.com/hitoshi/movieverse/internal/model"
)

// Provider はClientが利用する認証プロバイダーのインターフェース。Serviceが実装する。
type Provider interface {
	SignUp(ctx context.Context, email, password, username string) (*model.Identity, error)
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
	SignOut(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) (*model.Identity, error)
	Refresh(ctx context.Context, current *model.Identity) (*model.Identity, error)
}

// ChangeFunc は認証状態の変更通知を受け取る関数。サインアウト時はnilが渡される。
type ChangeFunc func(*model.Identity)

// Client はブラウザ1つ分の認証状態を保持し、変更をリスナーへ通知する。
// 通知はサインイン、サインアウト、同一ユーザーのトークン再発行のたびに発生する。
type Client struct {
	provider Provider

	mu        sync.Mutex
	current   *model.Identity
	listeners map[uint64]ChangeFunc
	nextID    uint64

	// emitMu は通知の順序を保証する。
	emitMu sync.Mutex
}

// NewClient はClientを生成する。
func NewClient(provider Provider) *Client {
	return &Client{
		provider:  provider,
		listeners: make(map[uint64]ChangeFunc),
	}
}

// OnChange はリスナーを登録し、現在の状態で即座に1回呼び出す。
// 返された関数で登録を解除する。
func (c *Client) OnChange(fn ChangeFunc) (unsubscribe func()) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	current := c.current
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Current は現在のIdentityを返す。未認証の場合はnilを返す。
func (c *Client) Current() *model.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SignUp はユーザーを作成してサインインする。
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*model.Identity, error) {
	ident, err := c.provider.SignUp(ctx, email, password, username)
	if err != nil {
		return nil, err
	}
	c.set(ident)
	return ident, nil
}

// SignIn はメールアドレスとパスワードでサインインする。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	ident, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(ident)
	return ident, nil
}

// SignOut はセッションを破棄して未認証状態にする。
// 未認証の場合は何もしない。
func (c *Client) SignOut(ctx context.Context) error {
	current := c.Current()
	if current == nil {
		return nil
	}
	if err := c.provider.SignOut(ctx, current.SessionID); err != nil {
		return err
	}
	c.set(nil)
	return nil
}

// Restore はセッションIDから認証状態を復元する。
// セッションが無効な場合は未認証状態を通知する。
func (c *Client) Restore(ctx context.Context, sessionID string) error {
	ident, err := c.provider.Resume(ctx, sessionID)
	if err != nil {
		return err
	}
	c.set(ident)
	return nil
}

// Refresh はIDトークンを再発行し、同じユーザーで状態変更を通知する。
// セッションが失効していた場合は未認証状態になる。
func (c *Client) Refresh(ctx context.Context) error {
	current := c.Current()
	if current == nil {
		return nil
	}
	ident, err := c.provider.Refresh(ctx, current)
	if err != nil {
		return err
	}
	c.set(ident)
	return nil
}

func (c *Client) set(ident *model.Identity) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.current = ident
	fns := make([]ChangeFunc, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ident)
	}
}
