package tiles

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/eak1mov/go-libtiles/tile"
	"github.com/eak1mov/go-libtiles/xyz"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"geodeck/internal/metrics"
)

var ErrClosed = errors.New("tiles: loader closed")

// LoaderOptions configures a Loader. Zero values pick defaults.
type LoaderOptions struct {
	// CacheSize is the number of decoded tiles kept in memory.
	CacheSize int
	// CacheDir, when set, keeps raw tile bytes on disk between runs.
	CacheDir string
	// Concurrency bounds parallel fetches.
	Concurrency int
	// RetryAfter is how long a failed fetch is served from memory before
	// the tile is requested again.
	RetryAfter time.Duration
	// Notify is called from a fetch goroutine when a scheduled tile settles.
	Notify  func(Descriptor)
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Loader resolves descriptors through memory, disk, then the source.
// Loaded and missing tiles stay in memory until evicted. Failed fetches
// are kept for RetryAfter and then tried again.
type Loader struct {
	src     Source
	mem     *lru.Cache[tile.ID, Descriptor]
	failed  *expirable.LRU[tile.ID, Descriptor]
	disk    *diskCache
	group   singleflight.Group
	sem     chan struct{}
	notify  func(Descriptor)
	logger  *zap.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[tile.ID]struct{}
	closed  bool
}

func NewLoader(src Source, opts LoaderOptions) (*Loader, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	mem, err := lru.New[tile.ID, Descriptor](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	l := &Loader{
		src:     src,
		mem:     mem,
		failed:  expirable.NewLRU[tile.ID, Descriptor](opts.CacheSize, nil, opts.RetryAfter),
		sem:     make(chan struct{}, opts.Concurrency),
		notify:  opts.Notify,
		logger:  opts.Logger.Named("tiles"),
		metrics: opts.Metrics,
		pending: make(map[tile.ID]struct{}),
	}
	if opts.CacheDir != "" {
		if l.disk, err = newDiskCache(opts.CacheDir); err != nil {
			return nil, err
		}
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l, nil
}

// Tile returns the cached descriptor for id. On a miss it schedules a
// background fetch and returns a descriptor without an image; ok reports
// whether the tile has settled.
func (l *Loader) Tile(id tile.ID) (Descriptor, bool) {
	if d, ok := l.cached(id); ok {
		return d, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.pending[id]; busy || l.closed {
		return NewDescriptor(id), false
	}
	l.pending[id] = struct{}{}
	l.wg.Add(1)
	go l.background(id)
	return NewDescriptor(id), false
}

func (l *Loader) background(id tile.ID) {
	defer l.wg.Done()

	select {
	case l.sem <- struct{}{}:
	case <-l.ctx.Done():
		l.done(id)
		return
	}
	d := l.resolve(l.ctx, id)
	<-l.sem

	l.done(id)
	if l.ctx.Err() == nil && l.notify != nil {
		l.notify(d)
	}
}

func (l *Loader) done(id tile.ID) {
	l.mu.Lock()
	delete(l.pending, id)
	l.mu.Unlock()
}

// Load resolves ids synchronously, fetching misses in parallel. The result
// is in the order of ids.
func (l *Loader) Load(ctx context.Context, ids []tile.ID) ([]Descriptor, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	out := make([]Descriptor, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(l.sem))
	for i, id := range ids {
		g.Go(func() error {
			out[i] = l.resolve(gctx, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

func (l *Loader) cached(id tile.ID) (Descriptor, bool) {
	if d, ok := l.mem.Get(id); ok {
		return d, true
	}
	return l.failed.Get(id)
}

func (l *Loader) resolve(ctx context.Context, id tile.ID) Descriptor {
	if d, ok := l.cached(id); ok {
		l.metrics.Tile(l.src.Name(), metrics.ResultHit)
		return d
	}
	v, _, _ := l.group.Do(Key(id), func() (interface{}, error) {
		d := l.fetch(ctx, id)
		switch {
		case ctx.Err() != nil:
		case d.Err == nil || errors.Is(d.Err, ErrNoTile):
			l.mem.Add(id, d)
		default:
			l.failed.Add(id, d)
		}
		return d, nil
	})
	return v.(Descriptor)
}

func (l *Loader) fetch(ctx context.Context, id tile.ID) Descriptor {
	d := NewDescriptor(id)
	name := l.src.Name()

	if l.disk != nil {
		if data := l.disk.read(id); len(data) > 0 {
			if img, err := Decode(data); err == nil {
				l.metrics.Tile(name, metrics.ResultHit)
				d.Image = img
				return d
			}
		}
	}

	start := time.Now()
	data, err := l.src.Fetch(ctx, id)
	l.metrics.ObserveFetch(name, time.Since(start))
	if err == nil && len(data) == 0 {
		err = ErrNoTile
	}
	if err == nil {
		d.Image, err = Decode(data)
	}
	switch {
	case errors.Is(err, ErrNoTile):
		l.metrics.Tile(name, metrics.ResultMissing)
		d.Err = err
		return d
	case err != nil:
		l.metrics.Tile(name, metrics.ResultError)
		l.logger.Debug("tile fetch failed", zap.String("tile", Key(id)), zap.Error(err))
		d.Err = err
		return d
	}

	l.metrics.Tile(name, metrics.ResultFetched)
	if l.disk != nil {
		if err := l.disk.write(id, data); err != nil {
			l.logger.Warn("tile cache write failed", zap.String("tile", Key(id)), zap.Error(err))
		}
	}
	return d
}

// Close cancels in-flight fetches, waits for them and closes the source.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	return l.src.Close()
}

// diskCache keeps raw tile bytes in a {z}/{x}/{y}.tile tree.
type diskCache struct {
	r *xyz.Reader
	w *xyz.Writer
}

func newDiskCache(dir string) (*diskCache, error) {
	pattern := filepath.Join(dir, "{z}", "{x}", "{y}.tile")
	r, err := xyz.NewReader(pattern)
	if err != nil {
		return nil, err
	}
	w, err := xyz.NewWriter(pattern)
	if err != nil {
		return nil, err
	}
	return &diskCache{r: r, w: w}, nil
}

func (c *diskCache) read(id tile.ID) []byte {
	data, err := c.r.ReadTile(id)
	if err != nil {
		return nil
	}
	return data
}

func (c *diskCache) write(id tile.ID, data []byte) error {
	return c.w.WriteTile(id, data)
}
