// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, list, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired      = "AUTH_REQUIRED"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeUsernameTaken     = "USERNAME_TAKEN"
	ErrCodeMovieNotFound     = "MOVIE_NOT_FOUND"
	ErrCodeInvalidList       = "INVALID_LIST"
	ErrCodeInvalidPage       = "INVALID_PAGE"
	ErrCodeCatalogNotLoaded  = "CATALOG_NOT_LOADED"
	ErrCodeModalCooldown     = "MODAL_COOLDOWN"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeListUpdateFailed  = "LIST_UPDATE_FAILED"
	ErrCodeCatalogSourceFail = "CATALOG_SOURCE_FAILED"
	ErrCodeCSRFInvalid       = "CSRF_INVALID"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewAuthRequiredError はログインが必要な操作に対するエラーを生成する。
// message にはUIにそのまま表示する文言を渡す。
func NewAuthRequiredError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  message,
		Category: "auth",
		Action:   "ログインまたは新規登録を行ってください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewAuthFailedError は認証プロバイダーが返したエラーをUI向けに変換したエラーを生成する。
func NewAuthFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "入力内容を確認し、再度お試しください。",
	}
}

// NewUsernameTakenError はユーザー名が既に予約済みの場合のエラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "Username is already taken",
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewMovieNotFoundError は作品未検出エラーを生成する。
func NewMovieNotFoundError(movieID string) *APIError {
	return &APIError{
		Code:     ErrCodeMovieNotFound,
		Message:  fmt.Sprintf("指定された作品が見つかりません: %s", movieID),
		Category: "catalog",
		Action:   "作品IDを確認してください。",
	}
}

// NewInvalidListError は無効なリスト種別エラーを生成する。
func NewInvalidListError(list string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidList,
		Message:  fmt.Sprintf("無効なリスト種別です: %s", list),
		Category: "validation",
		Action:   "リスト種別には favorites、watchlist のいずれかを指定してください。",
	}
}

// NewInvalidPageError は無効なページ番号エラーを生成する。
func NewInvalidPageError(page string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %s", page),
		Category: "validation",
		Action:   "1以上の整数を指定してください。",
	}
}

// NewCatalogNotLoadedError はカタログ未ロード時のエラーを生成する。
func NewCatalogNotLoadedError() *APIError {
	return &APIError{
		Code:     ErrCodeCatalogNotLoaded,
		Message:  "作品カタログを読み込み中です。",
		Category: "catalog",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewModalCooldownError はモーダルのクールダウン中に開こうとした場合のエラーを生成する。
func NewModalCooldownError() *APIError {
	return &APIError{
		Code:     ErrCodeModalCooldown,
		Message:  "モーダルを閉じた直後のため開けません。",
		Category: "validation",
		Action:   "少し待ってから再度お試しください。",
	}
}

// NewListUpdateFailedError はリスト更新失敗エラーを生成する。
func NewListUpdateFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeListUpdateFailed,
		Message:  message,
		Category: "list",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-After の秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
