// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Favorites、Watchlist、Watched はユーザーレコードに非正規化されたリストで、
// リポジトリが list_entries から組み立てる。
type User struct {
	ID        string
	Email     string
	Username  string
	Premium   bool
	Favorites []string
	Watchlist []string
	Watched   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsernameReservation は小文字化したユーザー名とユーザーIDの対応を表す。
type UsernameReservation struct {
	UsernameLower string
	Username      string
	UserID        string
	CreatedAt     time.Time
}

// Credential はメールアドレス・パスワード認証の資格情報を表す。
type Credential struct {
	UserID       string
	PasswordHash []byte
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID         string
	UserID     string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time // セッション復元のたびに更新される
}

// Identity は認証済みユーザーを表す。
// 認証プロバイダーの状態変更通知で配信される。
type Identity struct {
	UID       string
	Email     string
	SessionID string
	IDToken   string
	ExpiresAt time.Time
}

// Profile はIdentityとユーザーレコードをマージしたプロフィールを表す。
type Profile struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Premium   bool      `json:"premium"`
	Favorites []string  `json:"favorites"`
	Watchlist []string  `json:"watchlist"`
	Watched   []string  `json:"watched"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	Fallback  bool      `json:"-"`
}
