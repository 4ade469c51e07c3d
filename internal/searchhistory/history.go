// Package searchhistory はブラウザごとの検索履歴を管理する。
package searchhistory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
)

const (
	// StorageKey は履歴を保存するキー。
	StorageKey = "searchHistory"
	// MaxEntries は保持する履歴の最大件数。
	MaxEntries = 10
	// MaxTermLength は1語として保存する最大文字数。超えた分は切り捨てる。
	MaxTermLength = 100
)

// Storage はブラウザのローカルストレージに相当するキー・値ストア。
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// History は検索履歴の読み書きを行う。新しい語ほど先頭に並ぶ。
type History struct {
	store Storage
	fold  cases.Caser
}

// New はHistoryを生成する。
func New(store Storage) *History {
	return &History{store: store, fold: cases.Fold()}
}

// List は保存済みの履歴を返す。壊れた値は空の履歴として扱う。
func (h *History) List() []string {
	raw, ok := h.store.Get(StorageKey)
	if !ok || raw == "" {
		return []string{}
	}
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		slog.Warn("discarding unreadable search history", slog.String("error", err.Error()))
		return []string{}
	}
	if entries == nil {
		return []string{}
	}
	return entries
}

// Add は term を履歴の先頭に追加し、更新後の履歴を返す。
// 空白のみの語は無視する。大文字小文字だけが異なる既存の語は取り除く。
func (h *History) Add(term string) ([]string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return h.List(), nil
	}
	if r := []rune(term); len(r) > MaxTermLength {
		term = strings.TrimSpace(string(r[:MaxTermLength]))
	}

	key := h.fold.String(term)
	entries := []string{term}
	for _, e := range h.List() {
		if h.fold.String(e) == key {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	// 容量に収まるまで古い語から落とす
	for {
		encoded, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		err = h.store.Set(StorageKey, string(encoded))
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, ErrValueTooLarge) || len(entries) == 1 {
			return nil, err
		}
		entries = entries[:len(entries)-1]
	}
}

// Clear は履歴のキーごと削除する。
func (h *History) Clear() error {
	return h.store.Remove(StorageKey)
}
