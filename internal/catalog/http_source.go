package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/movieverse/internal/model"
)

// URLValidator は取得先URLの事前検証インターフェース。security.SourceGuardが実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// FetchRecorder はカタログ取得の記録先。metrics.Collectorが実装する。
type FetchRecorder interface {
	RecordCatalogFetchFailure(source string, reason string)
	RecordCatalogHTTPStatus(statusCode int)
	RecordCatalogFetchLatency(duration time.Duration)
}

// Decoder はレスポンスボディを作品リストに変換する。
type Decoder func(body []byte) ([]model.Movie, error)

// HTTPSourceConfig はHTTPSourceの設定。
type HTTPSourceConfig struct {
	Name         string
	URL          string
	PollInterval time.Duration
	MaxBodySize  int64
	UserAgent    string
	Accept       string
	Backoff      Backoff
}

// HTTPSource はURLを定期的に条件付きGETし、内容が変わったときだけ emit する。
type HTTPSource struct {
	cfg       HTTPSourceConfig
	client    *http.Client
	validator URLValidator
	decode    Decoder
	recorder  FetchRecorder
	logger    *slog.Logger

	etag         string
	lastModified string
	digest       [sha256.Size]byte
	emitted      bool
}

// NewHTTPSource はHTTPSourceを生成する。validator と recorder は nil でもよい。
func NewHTTPSource(cfg HTTPSourceConfig, client *http.Client, validator URLValidator, decode Decoder, recorder FetchRecorder, logger *slog.Logger) *HTTPSource {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 10 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Movieverse/1.0 catalog poller"
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{
		cfg:       cfg,
		client:    client,
		validator: validator,
		decode:    decode,
		recorder:  recorder,
		logger:    logger,
	}
}

// NewJSONSource はリアルタイムデータベースの REST エンドポイント
// （movies ノードを JSON で返すURL）を購読するソースを生成する。
func NewJSONSource(cfg HTTPSourceConfig, client *http.Client, validator URLValidator, s Sanitizer, recorder FetchRecorder, logger *slog.Logger) *HTTPSource {
	if cfg.Name == "" {
		cfg.Name = "rtdb"
	}
	if cfg.Accept == "" {
		cfg.Accept = "application/json"
	}
	return NewHTTPSource(cfg, client, validator, JSONDecoder(s), recorder, logger)
}

// JSONDecoder は movies ノードの JSON を Normalize するDecoderを返す。
func JSONDecoder(s Sanitizer) Decoder {
	return func(body []byte) ([]model.Movie, error) {
		var raw any
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode catalog json: %w", err)
		}
		return Normalize(raw, s), nil
	}
}

// Name はメトリクスとログに使うソース名を返す。
func (s *HTTPSource) Name() string { return s.cfg.Name }

// Run は ctx がキャンセルされるまでポーリングを続ける。
// 取得先URLが検証に通らない場合は即座にエラーを返す。
func (s *HTTPSource) Run(ctx context.Context, emit func([]model.Movie)) error {
	if s.validator != nil {
		if err := s.validator.ValidateURL(s.cfg.URL); err != nil {
			return fmt.Errorf("catalog source url rejected: %w", err)
		}
	}

	consecutiveErrors := 0
	for {
		wait := s.cfg.PollInterval
		if err := s.Poll(ctx, emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait = s.cfg.Backoff.Delay(consecutiveErrors)
			consecutiveErrors++
			s.logger.Warn("カタログ取得に失敗しました。再試行します",
				slog.String("source", s.cfg.Name),
				slog.String("error", err.Error()),
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Duration("retry_in", wait),
			)
		} else {
			consecutiveErrors = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Poll は1回だけ取得し、内容が前回から変化していれば emit する。
func (s *HTTPSource) Poll(ctx context.Context, emit func([]model.Movie)) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if s.cfg.Accept != "" {
		req.Header.Set("Accept", s.cfg.Accept)
	}
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	if s.lastModified != "" {
		req.Header.Set("If-Modified-Since", s.lastModified)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordFailure("http")
		return fmt.Errorf("request catalog: %w", err)
	}
	defer resp.Body.Close()

	if s.recorder != nil {
		s.recorder.RecordCatalogHTTPStatus(resp.StatusCode)
		s.recorder.RecordCatalogFetchLatency(time.Since(start))
	}

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
	case FetchResultNotModified:
		return nil
	case FetchResultFatal:
		s.recordFailure("status")
		s.logger.Error("カタログ取得先が応答を拒否しました。設定を確認してください",
			slog.String("source", s.cfg.Name),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("catalog source returned status %d", resp.StatusCode)
	default:
		s.recordFailure("status")
		return fmt.Errorf("catalog source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodySize))
	if err != nil {
		s.recordFailure("read")
		return fmt.Errorf("read catalog body: %w", err)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		s.etag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		s.lastModified = lastMod
	}

	digest := sha256.Sum256(body)
	if s.emitted && bytes.Equal(digest[:], s.digest[:]) {
		return nil
	}

	movies, err := s.decode(body)
	if err != nil {
		s.recordFailure("parse")
		return err
	}
	s.digest = digest
	s.emitted = true
	emit(movies)
	return nil
}

func (s *HTTPSource) recordFailure(reason string) {
	if s.recorder != nil {
		s.recorder.RecordCatalogFetchFailure(s.cfg.Name, reason)
	}
}
