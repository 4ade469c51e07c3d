package authform

import (
	"errors"

	"github.com/hitoshi/movieverse/internal/identity"
)

// 結果メッセージ。
const (
	MsgSignupSuccess   = "Account created successfully!"
	MsgLoginSuccess    = "Login successful!"
	MsgLogoutSuccess   = "Logged out successfully"
	MsgLogoutFailed    = "Logout failed"
	MsgSignupFailed    = "Signup failed. Please try again."
	MsgLoginFailed     = "Login failed. Please try again."
	MsgUsernameTaken   = "Username is already taken"
	MsgUsernameTakenUI = "Username is already taken. Please choose another one."
	MsgUsernameMissing = "Username not found"
	MsgUserMissing     = "User not found"
)

var signupMessages = map[string]string{
	identity.CodeEmailAlreadyInUse:    "Email is already in use",
	identity.CodeWeakPassword:         "Password is too weak",
	identity.CodeInvalidEmail:         "Invalid email address",
	identity.CodeUsernameAlreadyInUse: MsgUsernameTaken,
}

var loginMessages = map[string]string{
	identity.CodeUserNotFound:       "Account not found",
	identity.CodeWrongPassword:      "Incorrect password",
	identity.CodeInvalidCredential:  "Invalid email or password",
	identity.CodeTooManyRequests:    "Too many failed attempts. Please try again later",
	identity.CodeUsernameNotFound:   MsgUsernameMissing,
	identity.CodeUserRecordNotFound: MsgUserMissing,
}

// SignupMessage はサインアップ失敗のエラーを表示用メッセージに変換する。
func SignupMessage(err error) string {
	if msg, ok := signupMessages[identity.CodeOf(err)]; ok {
		return msg
	}
	return MsgSignupFailed
}

// LoginMessage はログイン失敗のエラーを表示用メッセージに変換する。
func LoginMessage(err error) string {
	if msg, ok := loginMessages[identity.CodeOf(err)]; ok {
		return msg
	}
	return MsgLoginFailed
}

// loginOutcome はメトリクス用にログイン結果を分類する。
func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, identity.ErrTooManyRequests):
		return "too_many_requests"
	case identity.CodeOf(err) != "":
		return "rejected"
	default:
		return "error"
	}
}
