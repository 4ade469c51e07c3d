package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/movieverse/internal/model"
)

// Source はカタログの取得元。
// Run は ctx がキャンセルされるまでブロックし、値が変化するたびに emit を呼ぶ。
// 初回の値は変化の有無にかかわらず必ず emit する。
type Source interface {
	Name() string
	Run(ctx context.Context, emit func([]model.Movie)) error
}

// Recorder はカタログロードの記録先。metrics.Collectorが実装する。
type Recorder interface {
	RecordCatalogLoad(source string, movies int)
}

// Loaded は catalog_loaded 通知のペイロード。
type Loaded struct {
	Count   int    `json:"count"`
	Version uint64 `json:"version"`
}

// Cache はプロセス全体で共有する作品カタログのキャッシュ。
// ソースが値を配信するたびに一覧全体を置き換え、リスナーへ1回だけ通知する。
type Cache struct {
	source   Source
	recorder Recorder
	logger   *slog.Logger

	mu      sync.RWMutex
	movies  []model.Movie
	byID    map[string]int
	version uint64

	loaded     chan struct{}
	loadedOnce sync.Once

	lmu       sync.Mutex
	listeners map[uint64]func(Loaded)
	nextID    uint64
}

// CacheOption はCacheの任意設定。
type CacheOption func(*Cache)

// WithCacheRecorder はロード記録先を設定する。
func WithCacheRecorder(r Recorder) CacheOption {
	return func(c *Cache) { c.recorder = r }
}

// WithCacheLogger はロガーを設定する。
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// NewCache はCacheを生成する。source が nil の場合は Replace でのみ更新される。
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:    source,
		logger:    slog.Default(),
		byID:      map[string]int{},
		loaded:    make(chan struct{}),
		listeners: map[uint64]func(Loaded){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start はソースの購読をバックグラウンドで開始する。
// 返されたチャネルはソースの Run が終了したときにその戻り値を1件送って閉じる。
func (c *Cache) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	if c.source == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		c.logger.Info("カタログの購読を開始しました", slog.String("source", c.source.Name()))
		err := c.source.Run(ctx, c.Replace)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("カタログソースが停止しました",
				slog.String("source", c.source.Name()),
				slog.String("error", err.Error()),
			)
		}
		done <- err
	}()
	return done
}

// Replace は一覧全体を置き換え、catalog_loaded を通知する。
func (c *Cache) Replace(movies []model.Movie) {
	if movies == nil {
		movies = []model.Movie{}
	}
	byID := make(map[string]int, len(movies))
	for i, m := range movies {
		byID[m.ID] = i
	}

	c.mu.Lock()
	c.movies = movies
	c.byID = byID
	c.version++
	ev := Loaded{Count: len(movies), Version: c.version}
	c.mu.Unlock()

	c.loadedOnce.Do(func() { close(c.loaded) })

	name := "manual"
	if c.source != nil {
		name = c.source.Name()
	}
	if c.recorder != nil {
		c.recorder.RecordCatalogLoad(name, len(movies))
	}
	c.logger.Info("カタログを読み込みました",
		slog.String("source", name),
		slog.Int("movies", len(movies)),
		slog.Uint64("version", ev.Version),
	)

	c.lmu.Lock()
	fns := make([]func(Loaded), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// OnLoaded はカタログ置換のリスナーを登録し、解除関数を返す。
func (c *Cache) OnLoaded(fn func(Loaded)) (cancel func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lmu.Lock()
			delete(c.listeners, id)
			c.lmu.Unlock()
		})
	}
}

// IsLoaded は初回ロードが完了しているかを返す。
func (c *Cache) IsLoaded() bool {
	select {
	case <-c.loaded:
		return true
	default:
		return false
	}
}

// WaitLoaded は初回ロードを待ち、その時点の一覧を返す。
// 既にロード済みであれば即座に返る。
func (c *Cache) WaitLoaded(ctx context.Context) ([]model.Movie, error) {
	select {
	case <-c.loaded:
		return c.Movies(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Movies は現在の一覧のコピーを返す。未ロードの場合は空。
func (c *Cache) Movies() []model.Movie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.movies == nil {
		return []model.Movie{}
	}
	return slices.Clone(c.movies)
}

// Get はIDで作品を引く。
func (c *Cache) Get(id string) (model.Movie, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Movie{}, false
	}
	return c.movies[i], true
}

// Version は置換回数を返す。
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
