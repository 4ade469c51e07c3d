package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/movieverse/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// ユーザー名予約と資格情報の参照も担う。
type PostgresUserRepo struct {
	db    *sql.DB
	lists *PostgresListRepo
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db, lists: NewPostgresListRepo(db)}
}

// FindByID は指定IDのユーザーをリスト付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := r.findOne(ctx, `WHERE id = $1`, id)
	if err != nil || user == nil {
		return user, err
	}

	snap, err := r.lists.Snapshot(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Favorites = snap.Favorites
	user.Watchlist = snap.Watchlist
	user.Watched = snap.Watched

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
// リストは読み込まない。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, username, premium, created_at, updated_at FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Email, &user.Username, &user.Premium, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// CreateWithUsername はユーザー、ユーザー名予約、資格情報を同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithUsername(ctx context.Context, user *model.User, reservation *model.UsernameReservation, credential *model.Credential) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, username, premium, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Username, user.Premium, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usernames (username_lower, username, user_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		reservation.UsernameLower, reservation.Username, reservation.UserID, reservation.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to insert username reservation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash, updated_at) VALUES ($1, $2, $3)`,
		credential.UserID, credential.PasswordHash, credential.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// ListWithoutReservation はユーザー名予約を持たないユーザーを作成日時順に返す。
func (r *PostgresUserRepo) ListWithoutReservation(ctx context.Context, limit int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.username, u.premium, u.created_at, u.updated_at
		 FROM users u
		 LEFT JOIN usernames n ON n.user_id = u.id
		 WHERE n.user_id IS NULL
		 ORDER BY u.created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users without reservation: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.Premium, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindByUsername は小文字化済みのユーザー名で予約を検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, usernameLower string) (*model.UsernameReservation, error) {
	res := &model.UsernameReservation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT username_lower, username, user_id, created_at FROM usernames WHERE username_lower = $1`,
		usernameLower,
	).Scan(&res.UsernameLower, &res.Username, &res.UserID, &res.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find username: %w", err)
	}
	return res, nil
}

// FindByUserID は指定ユーザーの資格情報を取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUserID(ctx context.Context, userID string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, password_hash, updated_at FROM credentials WHERE user_id = $1`,
		userID,
	).Scan(&cred.UserID, &cred.PasswordHash, &cred.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return cred, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// compile-time interface check
var (
	_ UserRepository       = (*PostgresUserRepo)(nil)
	_ UsernameRepository   = (*PostgresUserRepo)(nil)
	_ CredentialRepository = (*PostgresUserRepo)(nil)
)
