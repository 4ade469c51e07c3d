package identity

import "errors"

// 認証プロバイダーのエラーコード。
const (
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeUserNotFound         = "auth/user-not-found"
	CodeWrongPassword        = "auth/wrong-password"
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeUsernameAlreadyInUse = "auth/username-already-in-use"
	CodeUsernameNotFound     = "auth/username-not-found"
	CodeUserRecordNotFound   = "auth/user-record-not-found"
)

// AuthError は認証プロバイダーが返すコード付きエラー。
// UI側はCodeをメッセージ表に引き当てて表示する。
type AuthError struct {
	Code string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

// Unwrap は内部エラーを返す。
func (e *AuthError) Unwrap() error { return e.Err }

// Is はコードが一致するAuthErrorを同一とみなす。
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Err == nil && t.Code == e.Code
}

func codeError(code string) *AuthError { return &AuthError{Code: code} }

// errors.Is で比較するための代表値。
var (
	ErrEmailAlreadyInUse    = codeError(CodeEmailAlreadyInUse)
	ErrWeakPassword         = codeError(CodeWeakPassword)
	ErrInvalidEmail         = codeError(CodeInvalidEmail)
	ErrUserNotFound         = codeError(CodeUserNotFound)
	ErrWrongPassword        = codeError(CodeWrongPassword)
	ErrInvalidCredential    = codeError(CodeInvalidCredential)
	ErrTooManyRequests      = codeError(CodeTooManyRequests)
	ErrUsernameAlreadyInUse = codeError(CodeUsernameAlreadyInUse)
	ErrUsernameNotFound     = codeError(CodeUsernameNotFound)
	ErrUserRecordNotFound   = codeError(CodeUserRecordNotFound)
)

// CodeOf はエラーに含まれる認証エラーコードを返す。AuthErrorでなければ空文字を返す。
func CodeOf(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
