// Package metrics exposes renderer and tile counters through prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Tile request results.
const (
	ResultHit     = "hit"
	ResultFetched = "fetched"
	ResultMissing = "missing"
	ResultError   = "error"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	frames        prometheus.Counter
	frameDuration prometheus.Histogram
	brackets      *prometheus.CounterVec
	tiles         *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodeck_frames_total",
			Help: "Frames composited on the shared surface",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geodeck_frame_duration_seconds",
			Help:    "Time spent compositing one frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		brackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geodeck_state_bracket_total",
			Help: "Surface state push/pop operations",
		}, []string{"phase"}),
		tiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geodeck_tile_requests_total",
			Help: "Tile lookups by source and result",
		}, []string{"source", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geodeck_tile_fetch_duration_seconds",
			Help:    "Time spent fetching a tile from its source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}
	m.Registry.MustRegister(m.frames, m.frameDuration, m.brackets, m.tiles, m.fetchDuration)
	return m
}

func (m *Metrics) ObserveFrame(d time.Duration) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.frameDuration.Observe(d.Seconds())
}

// Bracket counts a "push" or "pop" of the shared surface state.
func (m *Metrics) Bracket(phase string) {
	if m == nil {
		return
	}
	m.brackets.WithLabelValues(phase).Inc()
}

func (m *Metrics) Tile(source, result string) {
	if m == nil {
		return
	}
	m.tiles.WithLabelValues(source, result).Inc()
}

func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
