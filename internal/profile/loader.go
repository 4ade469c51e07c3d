// Package profile はIdentityにユーザーレコードをマージしたプロフィールを読み込む。
package profile

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/movieverse/internal/model"
)

// fallbackUsername はメールアドレスも無い場合の表示名。
const fallbackUsername = "User"

// UserFinder はユーザーレコードの参照インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Loader はユーザープロフィールを読み込む。
type Loader struct {
	users UserFinder
}

// NewLoader はLoaderを生成する。
func NewLoader(users UserFinder) *Loader {
	return &Loader{users: users}
}

// Load はIdentityに対応するプロフィールを返す。
// レコードが存在しない場合や読み込みに失敗した場合は、
// メールアドレスの@より前を表示名とするフォールバックを返す。エラーは返さない。
func (l *Loader) Load(ctx context.Context, ident *model.Identity) model.Profile {
	if ident == nil {
		return model.Profile{}
	}

	user, err := l.users.FindByID(ctx, ident.UID)
	if err != nil {
		slog.Warn("failed to load user profile, using fallback",
			slog.String("user_id", ident.UID),
			slog.String("error", err.Error()),
		)
		return Fallback(ident)
	}
	if user == nil {
		slog.Warn("user record not found, using fallback", slog.String("user_id", ident.UID))
		return Fallback(ident)
	}

	p := model.Profile{
		UID:       ident.UID,
		Email:     ident.Email,
		Username:  user.Username,
		Premium:   user.Premium,
		Favorites: nonNil(user.Favorites),
		Watchlist: nonNil(user.Watchlist),
		Watched:   nonNil(user.Watched),
		CreatedAt: user.CreatedAt,
	}
	if p.Email == "" {
		p.Email = user.Email
	}
	if p.Username == "" {
		p.Username = DisplayNameFromEmail(p.Email)
	}
	return p
}

// Fallback はユーザーレコードなしで組み立てたプロフィールを返す。
func Fallback(ident *model.Identity) model.Profile {
	return model.Profile{
		UID:       ident.UID,
		Email:     ident.Email,
		Username:  DisplayNameFromEmail(ident.Email),
		Favorites: []string{},
		Watchlist: []string{},
		Watched:   []string{},
		Fallback:  true,
	}
}

// DisplayNameFromEmail はメールアドレスの@より前を返す。空の場合は "User" を返す。
func DisplayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return fallbackUsername
	}
	return local
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
