// Package authform はサインアップ・ログインフォームの検証、エラーメッセージ、
// モーダルの開閉制御を提供する。
package authform

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/movieverse/internal/model"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// 検証メッセージ。
const (
	MsgInvalidUsername  = "Username must be 3-20 characters (letters, numbers, underscore only)"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgShortPassword    = "Password must be at least 6 characters"
	MsgPasswordMismatch = "Passwords do not match"
	MsgFillAllFields    = "Please fill in all fields"
)

// SignupForm はサインアップフォームの入力値。
type SignupForm struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginForm はログインフォームの入力値。Identifier はメールアドレスまたはユーザー名。
type LoginForm struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// IsValidUsername はユーザー名が3〜20文字の英数字とアンダースコアかを判定する。
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// IsValidEmail はメールアドレスの形式を判定する。
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPassword はパスワード長を判定する。
func IsValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// Normalize は前後の空白を除去する。パスワードはそのまま残す。
func (f SignupForm) Normalize() SignupForm {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	return f
}

// Validate はユーザー名、メールアドレス、パスワード、確認用パスワードの順に検証し、
// 最初に見つかった問題を返す。
func (f SignupForm) Validate() *model.APIError {
	f = f.Normalize()
	switch {
	case !IsValidUsername(f.Username):
		return model.NewValidationError(MsgInvalidUsername)
	case !IsValidEmail(f.Email):
		return model.NewValidationError(MsgInvalidEmail)
	case !IsValidPassword(f.Password):
		return model.NewValidationError(MsgShortPassword)
	case f.Password != f.ConfirmPassword:
		return model.NewValidationError(MsgPasswordMismatch)
	}
	return nil
}

// Validate は未入力の項目がないかを検証する。
func (f LoginForm) Validate() *model.APIError {
	if strings.TrimSpace(f.Identifier) == "" || f.Password == "" {
		return model.NewValidationError(MsgFillAllFields)
	}
	return nil
}

// IsUsername は入力がユーザー名として扱われるか（@を含まないか）を返す。
func (f LoginForm) IsUsername() bool {
	return !strings.Contains(f.Identifier, "@")
}
