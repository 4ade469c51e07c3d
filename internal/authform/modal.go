package authform

import (
	"sync"
	"time"

	"github.com/hitoshi/movieverse/internal/model"
)

// Modal はモーダルの種別。
type Modal string

const (
	ModalNone   Modal = ""
	ModalSignup Modal = "signup"
	ModalLogin  Modal = "login"
)

// モーダル開閉のタイミング。
const (
	// CloseAnimation は閉じるアニメーションの所要時間。この間は閉じている途中として扱う。
	CloseAnimation = 300 * time.Millisecond
	// Cooldown は閉じ終わってから次のモーダルを開けるまでの待ち時間。
	Cooldown = 100 * time.Millisecond
	// SwitchDelay はモーダル切り替え時に次のモーダルを開くまでの待ち時間。
	SwitchDelay = 400 * time.Millisecond
)

// ModalState はクライアントに返すモーダルの状態。
type ModalState struct {
	Open      Modal     `json:"open"`
	Closing   bool      `json:"closing"`
	Pending   Modal     `json:"pending,omitempty"`
	PendingAt time.Time `json:"pendingAt,omitzero"`
}

// ModalController はサインアップ・ログインモーダルの開閉を制御する。
// 閉じた直後の連続操作で同じモーダルが重複して開くのを防ぐ。
type ModalController struct {
	now func() time.Time

	mu        sync.Mutex
	open      Modal
	closedAt  time.Time
	pending   Modal
	pendingAt time.Time
}

// NewModalController はModalControllerを生成する。now が nil なら time.Now を使う。
func NewModalController(now func() time.Time) *ModalController {
	if now == nil {
		now = time.Now
	}
	return &ModalController{now: now}
}

// Open は指定モーダルを開く。閉じている途中またはクールダウン中はエラーを返す。
// 別のモーダルが開いていた場合は置き換える。
func (c *ModalController) Open(m Modal) (ModalState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.resolvePending(now)
	err := c.openLocked(now, m)
	return c.state(now), err
}

func (c *ModalController) openLocked(now time.Time, m Modal) error {
	if c.blocked(now) {
		return model.NewModalCooldownError()
	}
	c.open = m
	c.pending = ModalNone
	c.pendingAt = time.Time{}
	return nil
}

// Close は開いているモーダルを閉じる。開いていなければ何もしない。
func (c *ModalController) Close() ModalState {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.resolvePending(now)
	if c.open != ModalNone {
		c.open = ModalNone
		c.closedAt = now
	}
	return c.state(now)
}

// Switch は現在のモーダルを閉じ、SwitchDelay 後にもう一方のモーダルを開く予約をする。
// 何も開いていない場合は to をそのまま開こうとする。
func (c *ModalController) Switch(to Modal) (ModalState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.resolvePending(now)
	if c.open == ModalNone {
		err := c.openLocked(now, to)
		return c.state(now), err
	}
	c.open = ModalNone
	c.closedAt = now
	c.pending = to
	c.pendingAt = now.Add(SwitchDelay)
	return c.state(now), nil
}

// State は現在の状態を返す。予約済みのモーダルは期限を過ぎていればこの時点で開く。
func (c *ModalController) State() ModalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.resolvePending(now)
	return c.state(now)
}

func (c *ModalController) resolvePending(now time.Time) {
	if c.pending == ModalNone || now.Before(c.pendingAt) {
		return
	}
	if c.blocked(now) {
		return
	}
	c.open = c.pending
	c.pending = ModalNone
	c.pendingAt = time.Time{}
}

func (c *ModalController) blocked(now time.Time) bool {
	if c.closedAt.IsZero() {
		return false
	}
	return now.Sub(c.closedAt) < CloseAnimation+Cooldown
}

func (c *ModalController) state(now time.Time) ModalState {
	return ModalState{
		Open:      c.open,
		Closing:   !c.closedAt.IsZero() && now.Sub(c.closedAt) < CloseAnimation,
		Pending:   c.pending,
		PendingAt: c.pendingAt,
	}
}

// ParseModal は文字列をModalに変換する。
func ParseModal(s string) (Modal, bool) {
	switch Modal(s) {
	case ModalSignup, ModalLogin:
		return Modal(s), true
	default:
		return ModalNone, false
	}
}
