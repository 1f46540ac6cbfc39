package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eak1mov/go-libtiles/mb"
	"github.com/eak1mov/go-libtiles/tile"
	"github.com/eak1mov/go-libtiles/xyz"
	"github.com/sony/gobreaker"
)

// Source yields raw tile bytes. An empty result with a nil error means the
// source has no such tile.
type Source interface {
	Name() string
	Fetch(ctx context.Context, id tile.ID) ([]byte, error)
	Close() error
}

// SourceOptions tunes the HTTP source. Zero values pick defaults.
type SourceOptions struct {
	Client    *http.Client
	UserAgent string
	Retries   uint64
	Timeout   time.Duration
}

// NewSource picks a source by URL scheme: mbtiles://path, file://pattern,
// or an http(s) template.
func NewSource(raw string, opts SourceOptions) (Source, error) {
	switch {
	case strings.HasPrefix(raw, "mbtiles://"):
		src, err := NewMBTilesSource(strings.TrimPrefix(raw, "mbtiles://"))
		if err != nil {
			return nil, err
		}
		return src, nil
	case strings.HasPrefix(raw, "file://"):
		src, err := NewDirSource(strings.TrimPrefix(raw, "file://"))
		if err != nil {
			return nil, err
		}
		return src, nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		t, err := ParseTemplate(raw)
		if err != nil {
			return nil, err
		}
		return NewHTTPSource(t, opts), nil
	}
	return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidTemplate, raw)
}

// StatusError is a non-200 reply from a tile server.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tiles: GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// HTTPSource fetches tiles over plain HTTP GET with retries, behind a
// circuit breaker so a dead server stops being hammered.
type HTTPSource struct {
	tmpl      Template
	client    *http.Client
	userAgent string
	retries   uint64
	breaker   *gobreaker.CircuitBreaker
}

func NewHTTPSource(t Template, opts SourceOptions) *HTTPSource {
	if opts.Client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		opts.Client = &http.Client{Timeout: timeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "geodeck/1.0"
	}
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	return &HTTPSource{
		tmpl:      t,
		client:    opts.Client,
		userAgent: opts.UserAgent,
		retries:   opts.Retries,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    t.String(),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSource) Fetch(ctx context.Context, id tile.ID) ([]byte, error) {
	v, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetchWithRetry(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *HTTPSource) fetchWithRetry(ctx context.Context, id tile.ID) ([]byte, error) {
	url := s.tmpl.URL(id)
	var data []byte
	op := func() error {
		b, err := s.get(ctx, url)
		if err != nil {
			return err
		}
		data = b
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.retries), ctx)); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *HTTPSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(resp.Body)
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		return []byte{}, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	default:
		return nil, backoff.Permanent(&StatusError{URL: url, Code: resp.StatusCode})
	}
}

// MBTilesSource reads an MBTiles archive. The sqlite3 driver must be
// registered by the binary.
type MBTilesSource struct {
	r *mb.Reader
}

func NewMBTilesSource(path string) (*MBTilesSource, error) {
	r, err := mb.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("open mbtiles %s: %w", path, err)
	}
	return &MBTilesSource{r: r}, nil
}

func (s *MBTilesSource) Name() string { return "mbtiles" }

func (s *MBTilesSource) Fetch(ctx context.Context, id tile.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.r.ReadTile(id)
}

// Metadata returns the archive's metadata table.
func (s *MBTilesSource) Metadata() (map[string]string, error) {
	return s.r.ReadMetadata()
}

func (s *MBTilesSource) Close() error { return s.r.Close() }

// DirSource reads tiles from a {z}/{x}/{y} directory tree.
type DirSource struct {
	r *xyz.Reader
}

func NewDirSource(pattern string) (*DirSource, error) {
	r, err := xyz.NewReader(pattern)
	if err != nil {
		if errors.Is(err, xyz.ErrInvalidPattern) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
		}
		return nil, err
	}
	return &DirSource{r: r}, nil
}

func (s *DirSource) Name() string { return "xyz" }

func (s *DirSource) Fetch(ctx context.Context, id tile.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.r.ReadTile(id)
}

func (s *DirSource) Close() error { return nil }
