// Package contact はお問い合わせフォームの検証と保存を提供する。
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/movieverse/internal/authform"
	"github.com/hitoshi/movieverse/internal/model"
)

// 各項目の最大文字数。contact_messages の列定義と揃える。
const (
	MaxNameLength    = 100
	MaxEmailLength   = 254
	MaxSubjectLength = 200
	MaxMessageLength = 5000
)

// UIに表示するメッセージ。
const (
	MsgFillAllFields = authform.MsgFillAllFields
	MsgInvalidEmail  = authform.MsgInvalidEmail
	MsgTooLong       = "%s must be at most %d characters"
	MsgSent          = "Thank you! Your message has been sent."
)

// Form はお問い合わせフォームの入力値。
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Sanitizer は入力からHTMLを取り除く。security.TextSanitizerが実装する。
type Sanitizer interface {
	Text(raw string) string
}

// Store はメッセージの保存先。repository.ContactRepositoryが実装する。
type Store interface {
	Create(ctx context.Context, msg *model.ContactMessage) error
}

// Clean は各項目からHTMLを除去し、前後の空白を取り除く。
func (f Form) Clean(s Sanitizer) Form {
	return Form{
		Name:    s.Text(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Subject: s.Text(f.Subject),
		Message: s.Text(f.Message),
	}
}

// Validate は未入力、メールアドレスの形式、長さの順に検証し、最初に見つかった問題を返す。
func (f Form) Validate() *model.APIError {
	if f.Name == "" || f.Email == "" || f.Subject == "" || f.Message == "" {
		return model.NewValidationError(MsgFillAllFields)
	}
	if !authform.IsValidEmail(f.Email) || len(f.Email) > MaxEmailLength {
		return model.NewValidationError(MsgInvalidEmail)
	}
	for _, field := range []struct {
		label string
		value string
		max   int
	}{
		{"Name", f.Name, MaxNameLength},
		{"Subject", f.Subject, MaxSubjectLength},
		{"Message", f.Message, MaxMessageLength},
	} {
		if utf8.RuneCountInString(field.value) > field.max {
			return model.NewValidationError(fmt.Sprintf(MsgTooLong, field.label, field.max))
		}
	}
	return nil
}

// Service はお問い合わせの受付を行う。
type Service struct {
	store     Store
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(store Store, sanitizer Sanitizer) *Service {
	return &Service{store: store, sanitizer: sanitizer, now: time.Now}
}

// Submit はフォームを検証して保存する。userID は未ログインなら空文字。
// 入力に問題がある場合は *model.APIError を返す。
func (s *Service) Submit(ctx context.Context, form Form, userID string) (*model.ContactMessage, error) {
	form = form.Clean(s.sanitizer)
	if apiErr := form.Validate(); apiErr != nil {
		return nil, apiErr
	}

	msg := &model.ContactMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      form.Name,
		Email:     strings.ToLower(form.Email),
		Subject:   form.Subject,
		Message:   form.Message,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("お問い合わせの保存に失敗しました: %w", err)
	}

	slog.Info("お問い合わせを受け付けました",
		slog.String("contact_id", msg.ID),
		slog.Bool("signed_in", userID != ""),
	)
	return msg, nil
}
