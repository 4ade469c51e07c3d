package catalog

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/movieverse/internal/model"
)

// NewFeedSource は新作情報を配信する RSS/Atom フィードを購読するソースを生成する。
// フィードの各エントリを1作品として扱い、フィード上の順序をカタログ順とする。
func NewFeedSource(cfg HTTPSourceConfig, client *http.Client, validator URLValidator, s Sanitizer, recorder FetchRecorder, logger *slog.Logger) *HTTPSource {
	if cfg.Name == "" {
		cfg.Name = "feed"
	}
	if cfg.Accept == "" {
		cfg.Accept = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
	}
	return NewHTTPSource(cfg, client, validator, FeedDecoder(s), recorder, logger)
}

// FeedDecoder は gofeed でフィードをパースし作品リストへ変換するDecoderを返す。
func FeedDecoder(s Sanitizer) Decoder {
	if s == nil {
		s = passthrough{}
	}
	return func(body []byte) ([]model.Movie, error) {
		parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse catalog feed: %w", err)
		}
		movies := make([]model.Movie, 0, len(parsed.Items))
		for _, item := range parsed.Items {
			if item == nil {
				continue
			}
			movies = append(movies, movieFromFeedItem(item, s))
		}
		return movies, nil
	}
}

func movieFromFeedItem(item *gofeed.Item, s Sanitizer) model.Movie {
	fields := map[string]any{
		"title":       item.Title,
		"description": item.Description,
		"trailerUrl":  item.Link,
	}
	if len(item.Categories) > 0 {
		genres := make([]any, 0, len(item.Categories))
		for _, c := range item.Categories {
			genres = append(genres, c)
		}
		fields["genre"] = genres
	}
	if published := item.PublishedParsed; published != nil {
		fields["year"] = strconv.Itoa(published.Year())
		fields["releaseDate"] = published.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		fields["year"] = strconv.Itoa(item.UpdatedParsed.Year())
	}
	if poster := feedItemPoster(item); poster != "" {
		fields["poster"] = poster
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		fields["director"] = item.Authors[0].Name
	}
	if item.Content != "" && strings.TrimSpace(item.Description) == "" {
		fields["description"] = item.Content
	}
	if gallery := imageSources(item.Content); len(gallery) > 1 {
		urls := make([]any, 0, len(gallery)-1)
		for _, g := range gallery[1:] {
			urls = append(urls, g)
		}
		fields["gallery"] = urls
	}

	return NormalizeOne(feedItemID(item), fields, s)
}

// feedItemID はGUID、リンク、タイトルの順で安定したIDを作る。
func feedItemID(item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		key = item.Title
	}
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// feedItemPoster はエントリ画像、画像エンクロージャ、本文中の最初の img の順でポスターを選ぶ。
func feedItemPoster(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	for _, body := range []string{item.Content, item.Description} {
		if srcs := imageSources(body); len(srcs) > 0 {
			return srcs[0]
		}
	}
	return ""
}

// imageSources はHTML断片に含まれる img の src を出現順に返す。
func imageSources(fragment string) []string {
	if fragment == "" {
		return nil
	}
	var srcs []string
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return srcs
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := tokenizer.TagAttr()
				if strings.EqualFold(string(key), "src") && len(val) > 0 {
					srcs = append(srcs, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}
