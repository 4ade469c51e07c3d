// Package identity はメールアドレス・パスワードによる認証プロバイダーと、
// ブラウザごとの認証クライアント（状態変更ストリーム）を提供する。
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hitoshi/movieverse/internal/model"
	"github.com/hitoshi/movieverse/internal/repository"
)

// minPasswordLength 文字未満のパスワードは auth/weak-password になる。
const minPasswordLength = 6

// bcryptMaxBytes はbcryptが受け付ける入力の上限バイト数。
const bcryptMaxBytes = 72

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証プロバイダーとしてのビジネスロジックを提供する。
type Service struct {
	users       repository.UserRepository
	usernames   repository.UsernameRepository
	credentials repository.CredentialRepository
	sessions    repository.SessionRepository
	tokens      *TokenIssuer
	attempts    *AttemptLimiter
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	usernames repository.UsernameRepository,
	credentials repository.CredentialRepository,
	sessions repository.SessionRepository,
	tokens *TokenIssuer,
	attempts *AttemptLimiter,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:       users,
		usernames:   usernames,
		credentials: credentials,
		sessions:    sessions,
		tokens:      tokens,
		attempts:    attempts,
		config:      config,
		now:         time.Now,
	}
}

// passwordKey はbcryptに渡す入力を返す。
// 72バイトを超えるパスワードはSHA-256のbase64（44バイト）に畳み込む。
func passwordKey(password string) []byte {
	if len(password) <= bcryptMaxBytes {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// NormalizeUsername はユーザー名を予約キー（前後空白除去・小文字化）に変換する。
func NormalizeUsername(username string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(username))
}

// NormalizeEmail はメールアドレスを前後空白除去・小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp はユーザーを作成し、セッションを発行する。
// ユーザー、ユーザー名予約、資格情報は同一トランザクションで作成される。
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*model.Identity, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword(passwordKey(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	userID := uuid.New().String()
	normalized := NormalizeUsername(username)

	user := &model.User{
		ID:        userID,
		Email:     email,
		Username:  normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	reservation := &model.UsernameReservation{
		UsernameLower: normalized,
		Username:      normalized,
		UserID:        userID,
		CreatedAt:     now,
	}
	credential := &model.Credential{
		UserID:       userID,
		PasswordHash: hash,
		UpdatedAt:    now,
	}

	if err := s.users.CreateWithUsername(ctx, user, reservation, credential); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailAlreadyInUse
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrUsernameAlreadyInUse
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", userID),
		slog.String("username", normalized),
	)

	return s.issue(ctx, user)
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if s.attempts != nil && !s.attempts.Allow(email) {
		slog.Warn("sign-in attempts exceeded", slog.String("email", email))
		return nil, ErrTooManyRequests
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	cred, err := s.credentials.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, passwordKey(password)); err != nil {
		return nil, ErrWrongPassword
	}

	if s.attempts != nil {
		s.attempts.Reset(email)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return s.issue(ctx, user)
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Resume は既存セッションからIdentityを復元する。
// セッションが存在しないか期限切れの場合、またはユーザーが削除済みの場合はnilを返す。
func (s *Service) Resume(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return s.tokenFor(user, session)
}

// Refresh は同じセッションのIDトークンを再発行する。
// セッションが失効している場合はnilを返す。
func (s *Service) Refresh(ctx context.Context, current *model.Identity) (*model.Identity, error) {
	if current == nil {
		return nil, nil
	}
	return s.Resume(ctx, current.SessionID)
}

// VerifyToken はIDトークンを検証し、ユーザーIDを返す。
func (s *Service) VerifyToken(token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// LookupEmailByUsername はユーザー名予約からログイン用メールアドレスを解決する。
func (s *Service) LookupEmailByUsername(ctx context.Context, username string) (string, error) {
	res, err := s.usernames.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return "", fmt.Errorf("failed to find username: %w", err)
	}
	if res == nil {
		return "", ErrUsernameNotFound
	}

	user, err := s.users.FindByID(ctx, res.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", ErrUserRecordNotFound
	}
	return user.Email, nil
}

// UsernameAvailable はユーザー名が未予約かどうかを返す。
// 参照に失敗した場合はサインアップを妨げないよう利用可能として扱う。
func (s *Service) UsernameAvailable(ctx context.Context, username string) bool {
	res, err := s.usernames.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		slog.Warn("username availability check failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return true
	}
	return res == nil
}

func (s *Service) issue(ctx context.Context, user *model.User) (*model.Identity, error) {
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.tokenFor(user, session)
}

func (s *Service) tokenFor(user *model.User, session *model.Session) (*model.Identity, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, session.ID)
	if err != nil {
		return nil, err
	}
	return &model.Identity{
		UID:       user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		IDToken:   token,
		ExpiresAt: expiresAt,
	}, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
