package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/movieverse/internal/model"
)

// PostgresListRepo はPostgreSQLを使用した作品リストリポジトリ。
// 変更はトリガー経由で list_entries_changed チャネルに NOTIFY される。
type PostgresListRepo struct {
	db *sql.DB
}

// NewPostgresListRepo はPostgresListRepoを生成する。
func NewPostgresListRepo(db *sql.DB) *PostgresListRepo {
	return &PostgresListRepo{db: db}
}

// Add は作品IDをリストに追加する。既に存在する場合は何もしない。
func (r *PostgresListRepo) Add(ctx context.Context, userID string, kind model.ListKind, movieID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO list_entries (user_id, list, movie_id, added_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, list, movie_id) DO NOTHING`,
		userID, string(kind), movieID,
	)
	if err != nil {
		return fmt.Errorf("failed to add list entry: %w", err)
	}
	return nil
}

// Remove は作品IDをリストから削除する。存在しない場合は何もしない。
func (r *PostgresListRepo) Remove(ctx context.Context, userID string, kind model.ListKind, movieID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM list_entries WHERE user_id = $1 AND list = $2 AND movie_id = $3`,
		userID, string(kind), movieID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove list entry: %w", err)
	}
	return nil
}

// Snapshot はユーザーの全リストを追加順で返す。
// 空のリストはnilではなく長さ0のスライスになる。
func (r *PostgresListRepo) Snapshot(ctx context.Context, userID string) (model.ListSnapshot, error) {
	snap := model.ListSnapshot{
		UserID:    userID,
		Favorites: []string{},
		Watchlist: []string{},
		Watched:   []string{},
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT list, movie_id FROM list_entries
		 WHERE user_id = $1
		 ORDER BY added_at, movie_id`,
		userID,
	)
	if err != nil {
		return snap, fmt.Errorf("failed to query list entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var list, movieID string
		if err := rows.Scan(&list, &movieID); err != nil {
			return snap, fmt.Errorf("failed to scan list entry: %w", err)
		}
		switch model.ListKind(list) {
		case model.ListFavorites:
			snap.Favorites = append(snap.Favorites, movieID)
		case model.ListWatchlist:
			snap.Watchlist = append(snap.Watchlist, movieID)
		case model.ListWatched:
			snap.Watched = append(snap.Watched, movieID)
		}
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to iterate list entries: %w", err)
	}

	return snap, nil
}

// compile-time interface check
var _ ListRepository = (*PostgresListRepo)(nil)
