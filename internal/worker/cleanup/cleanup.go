// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// あわせて、ユーザー名予約を持たないユーザー（サインアップ途中で失敗した状態）を
// ログに報告する。修復は行わない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/movieverse/internal/model"
)

// DefaultOrphanScanLimit は1回の実行で報告する予約なしユーザーの上限。
const DefaultOrphanScanLimit = 100

// SessionPurger は期限切れセッションの削除インターフェース。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// OrphanFinder はユーザー名予約を持たないユーザーの検索インターフェース。
type OrphanFinder interface {
	ListWithoutReservation(ctx context.Context, limit int) ([]*model.User, error)
}

// CleanupJob はセッションの自動削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	sessions  SessionPurger
	users     OrphanFinder
	logger    *slog.Logger
	ScanLimit int // 予約なしユーザーの報告上限（デフォルト: 100）
}

// NewCleanupJob は新しいCleanupJobを生成する。users が nil の場合は予約なしユーザーの検査を行わない。
func NewCleanupJob(sessions SessionPurger, users OrphanFinder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:  sessions,
		users:     users,
		logger:    logger,
		ScanLimit: DefaultOrphanScanLimit,
	}
}

// Run は期限切れセッションを削除し、予約なしユーザーを報告する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	orphans := 0
	if j.users != nil {
		users, err := j.users.ListWithoutReservation(ctx, j.ScanLimit)
		if err != nil {
			j.logger.Error("予約なしユーザーの検索に失敗しました",
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("予約なしユーザーの検索に失敗: %w", err)
		}
		for _, u := range users {
			j.logger.Warn("ユーザー名予約のないユーザーがあります",
				slog.String("user_id", u.ID),
				slog.String("email", u.Email),
				slog.Time("created_at", u.CreatedAt),
			)
		}
		orphans = len(users)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("orphan_users", orphans),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Loop はコンテキストがキャンセルされるまで interval 毎に Run を実行する。
// 起動直後に1回実行する。個々の失敗はログに残して継続する。
func (j *CleanupJob) Loop(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = j.Run(ctx)
		case <-ctx.Done():
			return
		}
	}
}
