package handler

import (
	"context"
	"database/sql"

	"github.com/hitoshi/movieverse/internal/favorites"
	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/repository"
	"github.com/hitoshi/movieverse/internal/user"
)

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// ListChangeNotifier はリスト変更を購読者へ知らせるインターフェース。live.Hubが実装する。
type ListChangeNotifier interface {
	Notify(userID string)
}

// NotifyingListWriter は repository.ListRepository への書き込み後に購読者へ通知する。
// PostgresのLISTEN/NOTIFYを使わない構成で、同じユーザーの他のブラウザへ変更を伝える。
type NotifyingListWriter struct {
	repo     repository.ListRepository
	notifier ListChangeNotifier
}

// NewNotifyingListWriter はNotifyingListWriterを生成する。
func NewNotifyingListWriter(repo repository.ListRepository, notifier ListChangeNotifier) *NotifyingListWriter {
	return &NotifyingListWriter{repo: repo, notifier: notifier}
}

// Add は作品をリストに追加し、成功したら通知する。
func (a *NotifyingListWriter) Add(ctx context.Context, userID string, kind model.ListKind, movieID string) error {
	if err := a.repo.Add(ctx, userID, kind, movieID); err != nil {
		return err
	}
	a.notifier.Notify(userID)
	return nil
}

// Remove は作品をリストから削除し、成功したら通知する。
func (a *NotifyingListWriter) Remove(ctx context.Context, userID string, kind model.ListKind, movieID string) error {
	if err := a.repo.Remove(ctx, userID, kind, movieID); err != nil {
		return err
	}
	a.notifier.Notify(userID)
	return nil
}

// DBHealthChecker は *sql.DB を HealthChecker に適合させるアダプタ。
type DBHealthChecker struct {
	db *sql.DB
}

// NewDBHealthChecker はDBHealthCheckerを生成する。
func NewDBHealthChecker(db *sql.DB) *DBHealthChecker {
	return &DBHealthChecker{db: db}
}

// Check はデータベースへの疎通を確認する。
func (c *DBHealthChecker) Check(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// --- compile-time interface checks ---

var _ UserServiceInterface = (*UserServiceAdapter)(nil)
var _ favorites.ListWriter = (*NotifyingListWriter)(nil)
var _ HealthChecker = (*DBHealthChecker)(nil)
