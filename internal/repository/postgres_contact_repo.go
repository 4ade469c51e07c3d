package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/movieverse/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用したお問い合わせリポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// Create はメッセージを保存する。UserIDが空の場合はNULLで保存する。
func (r *PostgresContactRepo) Create(ctx context.Context, msg *model.ContactMessage) error {
	userID := sql.NullString{String: msg.UserID, Valid: msg.UserID != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, user_id, name, email, subject, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, userID, msg.Name, msg.Email, msg.Subject, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

var _ ContactRepository = (*PostgresContactRepo)(nil)
