// Package security はカタログ取り込み時の入力防御を提供する。
//
// TextSanitizer は外部カタログソースから届く文字列をプレーンテキストに落とし、
// SourceGuard はカタログ取得先URLへのSSRFを防止する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はカタログ文字列のサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Text はHTMLタグを全て除去したプレーンテキストを返す。
	Text(raw string) string
	// URL は http/https の絶対URLのみを通過させ、それ以外は空文字列を返す。
	URL(raw string) string
}

// TextSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはゴルーチンセーフなので共有して使う。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はHTMLタグを除去し、エンティティを復元したテキストを返す。
// JSON応答で二重エスケープされないよう、bluemondayが付与したエスケープは戻す。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// URL はポスターや予告編などのリンクを検証する。
func (s *TextSanitizer) URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !isAllowedScheme(parsed.Scheme) || parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

var _ TextSanitizerService = (*TextSanitizer)(nil)
