package authform

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/movieverse/internal/identity"
	"github.com/hitoshi/movieverse/internal/model"
)

// Authenticator はブラウザ単位の認証クライアント。identity.Clientが実装する。
type Authenticator interface {
	SignUp(ctx context.Context, email, password, username string) (*model.Identity, error)
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
	SignOut(ctx context.Context) error
}

// Directory はユーザー名の参照機能。identity.Serviceが実装する。
type Directory interface {
	UsernameAvailable(ctx context.Context, username string) bool
	LookupEmailByUsername(ctx context.Context, username string) (string, error)
}

// SignInRecorder はログイン結果の記録先。metrics.Collectorが実装する。
type SignInRecorder interface {
	RecordSignIn(result string)
}

// Result はフォーム送信の結果。Message はそのままUIに表示する。
type Result struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Identity *model.Identity `json:"-"`
	Err      *model.APIError `json:"-"`
}

// Controller はフォームの検証から認証クライアント呼び出しまでの流れをまとめる。
type Controller struct {
	directory Directory
	recorder  SignInRecorder
}

// NewController はControllerを生成する。recorder は nil でもよい。
func NewController(directory Directory, recorder SignInRecorder) *Controller {
	return &Controller{directory: directory, recorder: recorder}
}

// SignUp は入力検証、ユーザー名の空き確認、アカウント作成を順に行う。
func (c *Controller) SignUp(ctx context.Context, auth Authenticator, form SignupForm) Result {
	form = form.Normalize()
	if verr := form.Validate(); verr != nil {
		return Result{Message: verr.Message, Err: verr}
	}

	if !c.directory.UsernameAvailable(ctx, form.Username) {
		return Result{Message: MsgUsernameTakenUI, Err: model.NewUsernameTakenError()}
	}

	ident, err := auth.SignUp(ctx, form.Email, form.Password, form.Username)
	if err != nil {
		msg := SignupMessage(err)
		slog.Warn("signup failed",
			slog.String("code", identity.CodeOf(err)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, identity.ErrUsernameAlreadyInUse) {
			return Result{Message: msg, Err: model.NewUsernameTakenError()}
		}
		return Result{Message: msg, Err: model.NewAuthFailedError(msg)}
	}
	return Result{Success: true, Message: MsgSignupSuccess, Identity: ident}
}

// Login はメールアドレスまたはユーザー名でログインする。
// @ を含まない入力はユーザー名としてメールアドレスを引き直す。
func (c *Controller) Login(ctx context.Context, auth Authenticator, form LoginForm) Result {
	if verr := form.Validate(); verr != nil {
		return Result{Message: verr.Message, Err: verr}
	}

	email := strings.ToLower(strings.TrimSpace(form.Identifier))
	if form.IsUsername() {
		resolved, err := c.directory.LookupEmailByUsername(ctx, email)
		if err != nil {
			return c.loginFailed(err)
		}
		email = resolved
	}

	ident, err := auth.SignIn(ctx, email, form.Password)
	if err != nil {
		return c.loginFailed(err)
	}
	c.record(nil)
	return Result{Success: true, Message: MsgLoginSuccess, Identity: ident}
}

// Logout はサインアウトする。
func (c *Controller) Logout(ctx context.Context, auth Authenticator) Result {
	if err := auth.SignOut(ctx); err != nil {
		slog.Error("logout failed", slog.String("error", err.Error()))
		return Result{Message: MsgLogoutFailed, Err: model.NewAuthFailedError(MsgLogoutFailed)}
	}
	return Result{Success: true, Message: MsgLogoutSuccess}
}

func (c *Controller) loginFailed(err error) Result {
	c.record(err)
	msg := LoginMessage(err)
	if identity.CodeOf(err) == "" {
		slog.Error("login failed", slog.String("error", err.Error()))
	}
	return Result{Message: msg, Err: model.NewAuthFailedError(msg)}
}

func (c *Controller) record(err error) {
	if c.recorder != nil {
		c.recorder.RecordSignIn(loginOutcome(err))
	}
}
