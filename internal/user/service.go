// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/movieverse/internal/model"
)

// UserStore は退会処理で使うユーザーの参照・削除インターフェース。
// repository.UserRepositoryの部分集合。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	DeleteByID(ctx context.Context, id string) error
}

// SessionDeleter はセッションの一括削除インターフェース。
type SessionDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// ListNotifier はリスト変更をライブ購読者へ知らせる。live.Hubが実装する。
type ListNotifier interface {
	Notify(userID string)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    UserStore
	sessionRepo SessionDeleter
	notifier    ListNotifier
}

// NewService はServiceの新しいインスタンスを生成する。notifier は nil でもよい。
func NewService(userRepo UserStore, sessionRepo SessionDeleter, notifier ListNotifier) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		notifier:    notifier,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: usernames, credentials, list_entries）
// カタログは共有データとして残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 2. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	// 他のブラウザで開いているリストを空にする
	if s.notifier != nil {
		s.notifier.Notify(userID)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Int("favorites", len(user.Favorites)),
		slog.Int("watchlist", len(user.Watchlist)),
	)

	return nil
}
