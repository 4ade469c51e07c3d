package model

import "time"

// ContactMessage はお問い合わせフォームから送信されたメッセージ。
// UserID は送信時にログインしていた場合のみ設定される。
type ContactMessage struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}
