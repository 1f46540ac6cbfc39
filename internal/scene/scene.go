// Package scene assembles the overlay, the compositor, the basemap and the
// tile loader into one renderable map.
package scene

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gg"
	"go.uber.org/zap"

	"geodeck/internal/basemap"
	"geodeck/internal/compositor"
	"geodeck/internal/config"
	"geodeck/internal/geom"
	"geodeck/internal/layers"
	"geodeck/internal/metrics"
	"geodeck/internal/overlay"
	"geodeck/internal/tiles"
	"geodeck/internal/viewport"
)

type Options struct {
	Config        config.Config
	Width, Height int
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	// Source replaces the configured tile source when set.
	Source tiles.Source
}

// Scene owns every renderer and the tile loader. It is not safe for
// concurrent use; only tile completions arrive from other goroutines, and
// they do so through TileEvents.
type Scene struct {
	cfg    config.Config
	ov     *overlay.Renderer
	comp   *compositor.Compositor
	bm     *basemap.Map
	loader *tiles.Loader
	events chan tiles.Descriptor
	tmpl   tiles.Template
	points []geom.Point
	hover  layers.PickInfo
	hidden map[string]bool
	logger *zap.Logger
}

func New(opts Options) (*Scene, error) {
	cfg := opts.Config
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Scene{
		cfg:    cfg,
		events: make(chan tiles.Descriptor, 64),
		hidden: make(map[string]bool),
		logger: opts.Logger,
	}

	style, err := loadStyle(cfg.Basemap.Style)
	if err != nil {
		return nil, err
	}
	if cfg.Points != "" {
		if s.points, err = geom.LoadPoints(cfg.Points); err != nil {
			return nil, fmt.Errorf("load points: %w", err)
		}
	}
	if s.tmpl, err = tileTemplate(cfg.Tiles.URL); err != nil {
		return nil, err
	}

	src := opts.Source
	if src == nil {
		if src, err = tiles.NewSource(cfg.Tiles.URL, cfg.Tiles.SourceOptions()); err != nil {
			return nil, err
		}
	}
	s.loader, err = tiles.NewLoader(src, tiles.LoaderOptions{
		CacheSize:   cfg.Tiles.CacheSize,
		CacheDir:    cfg.Tiles.CacheDir,
		Concurrency: cfg.Tiles.Concurrency,
		Notify:      s.notify,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
	if err != nil {
		src.Close()
		return nil, err
	}

	s.ov = overlay.New(overlay.Options{Width: opts.Width, Height: opts.Height, Logger: opts.Logger})
	s.comp = compositor.New(s.ov, compositor.Options{
		Delegations: cfg.Delegations,
		Background:  gg.Hex(cfg.Basemap.Background),
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
	if err := s.rebuild(); err != nil {
		s.Close()
		return nil, err
	}
	if err := compositor.CheckDelegations(layers.IDs(s.ov.Layers()), style, cfg.Delegations); err != nil {
		opts.Logger.Warn("delegation table does not match", zap.Error(err))
	}

	if err := s.ov.Init(); err != nil {
		s.Close()
		return nil, err
	}
	err = s.comp.Mount(func(sh compositor.Shared) (compositor.Basemap, error) {
		m, err := basemap.New(sh, style, basemap.Options{Logger: opts.Logger})
		s.bm = m
		return m, err
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.bm.OnLoad(func() {
		if err := s.comp.OnBasemapLoaded(); err != nil {
			s.logger.Warn("register delegated layers", zap.Error(err))
		}
	})
	if err := s.bm.Load(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// tileTemplate is the address the tile layer reports for a tile. MBTiles
// archives have none.
func tileTemplate(url string) (tiles.Template, error) {
	if strings.HasPrefix(url, "mbtiles://") {
		return tiles.Template{}, nil
	}
	return tiles.ParseTemplate(url)
}

func loadStyle(path string) (*basemap.Style, error) {
	if path == "" {
		return basemap.DefaultStyle()
	}
	return basemap.LoadStyle(path)
}

// notify runs on loader goroutines. A full channel drops the event; the
// tile is still cached and shows on the next frame.
func (s *Scene) notify(d tiles.Descriptor) {
	select {
	case s.events <- d:
	default:
	}
}

// TileEvents delivers tiles as they settle after a background fetch.
func (s *Scene) TileEvents() <-chan tiles.Descriptor { return s.events }

func (s *Scene) rebuild() error {
	return s.ov.SetLayers(layers.Build(layers.Input{
		Points:   s.points,
		Template: s.tmpl,
		Tiles:    s.loader,
		Hover:    s.hover,
		MinZoom:  s.cfg.Tiles.MinZoom,
		MaxZoom:  s.cfg.Tiles.MaxZoom,
		Hidden:   s.hidden,

		PickablePoints: s.cfg.PickPoints,
	}))
}

// Render rebuilds the layer set from the current inputs and composites one
// frame.
func (s *Scene) Render(vp *viewport.Viewport) error {
	if err := s.rebuild(); err != nil {
		return err
	}
	return s.comp.Render(vp)
}

// Prefetch loads every tile the view needs and waits for them.
func (s *Scene) Prefetch(ctx context.Context, vp *viewport.Viewport) error {
	l, ok := layers.Find(s.ov.Layers(), layers.TileLayerID)
	if !ok {
		return nil
	}
	ds, err := s.loader.Load(ctx, l.(*layers.TileLayer).Visible(vp))
	if err != nil {
		return err
	}
	failed := 0
	for _, d := range ds {
		if d.Err != nil && !errors.Is(d.Err, tiles.ErrNoTile) {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Warn("tiles failed", zap.Int("failed", failed), zap.Int("total", len(ds)))
	}
	return nil
}

func (s *Scene) Resize(width, height int) error { return s.ov.Resize(width, height) }

// Surface is the composited frame.
func (s *Scene) Surface() *gg.Pixmap { return s.ov.Context().ResizeTarget() }

// Pick returns the topmost pickable object at a surface point.
func (s *Scene) Pick(vp *viewport.Viewport, x, y float64) (layers.PickInfo, bool) {
	return s.ov.Pick(vp, x, y)
}

// SetHover makes info the highlighted object from the next frame on.
func (s *Scene) SetHover(info layers.PickInfo) { s.hover = info }

func (s *Scene) Hover() layers.PickInfo { return s.hover }

func (s *Scene) SetHidden(id string, hidden bool) { s.hidden[id] = hidden }

func (s *Scene) Hidden(id string) bool { return s.hidden[id] }

func (s *Scene) SetPoints(pts []geom.Point) { s.points = pts }

func (s *Scene) Points() []geom.Point {
	if s.points == nil {
		return layers.DefaultPoints
	}
	return s.points
}

// SetStyle swaps the basemap style. Delegated layers are registered again
// by the load handler.
func (s *Scene) SetStyle(style *basemap.Style) error { return s.bm.SetStyle(style) }

func (s *Scene) Style() *basemap.Style { return s.bm.Style() }

func (s *Scene) State() compositor.State { return s.comp.State() }

// Close tears down the compositor and stops the loader.
func (s *Scene) Close() error {
	var errs []error
	if s.comp != nil {
		errs = append(errs, s.comp.Close())
	}
	if s.loader != nil {
		errs = append(errs, s.loader.Close())
	}
	return errors.Join(errs...)
}
