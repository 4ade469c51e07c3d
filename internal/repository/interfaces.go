// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/movieverse/internal/model"
)

var (
	// ErrDuplicateUsername はユーザー名の予約が既に存在する場合のエラー。
	ErrDuplicateUsername = errors.New("username already reserved")
	// ErrDuplicateEmail はメールアドレスが既に登録済みの場合のエラー。
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーをリスト付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithUsername はユーザー、ユーザー名予約、資格情報を同一トランザクションで作成する。
	// 一意制約違反は ErrDuplicateUsername / ErrDuplicateEmail を返す。
	CreateWithUsername(ctx context.Context, user *model.User, reservation *model.UsernameReservation, credential *model.Credential) error

	// DeleteByID は指定IDのユーザーを削除する。
	// usernames、credentials、sessions、list_entriesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListWithoutReservation はユーザー名予約を持たないユーザーを返す。
	ListWithoutReservation(ctx context.Context, limit int) ([]*model.User, error)
}

// UsernameRepository はユーザー名予約の参照インターフェース。
type UsernameRepository interface {
	// FindByUsername は小文字化済みのユーザー名で予約を検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, usernameLower string) (*model.UsernameReservation, error)
}

// CredentialRepository はパスワード資格情報の参照インターフェース。
type CredentialRepository interface {
	// FindByUserID は指定ユーザーの資格情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Credential, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDの有効なセッションを取得し、最終利用時刻を更新する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ListRepository はユーザーごとの作品リスト（お気に入り/ウォッチリスト/視聴済み）の永続化インターフェース。
// Add と Remove は集合演算として冪等に振る舞う。
type ListRepository interface {
	// Add は作品IDをリストに追加する。既に存在する場合は何もしない。
	Add(ctx context.Context, userID string, kind model.ListKind, movieID string) error
	// Remove は作品IDをリストから削除する。存在しない場合は何もしない。
	Remove(ctx context.Context, userID string, kind model.ListKind, movieID string) error
	// Snapshot はユーザーの全リストを追加順で返す。
	Snapshot(ctx context.Context, userID string) (model.ListSnapshot, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ContactRepository はお問い合わせメッセージの保存インターフェース。
type ContactRepository interface {
	// Create はメッセージを保存する。
	Create(ctx context.Context, msg *model.ContactMessage) error
}
