// Package basemap is the secondary renderer. It draws a style document's
// layers onto the shared surface and paints custom layers, owned by other
// renderers, at their insertion points in the style's draw order.
package basemap

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"geodeck/internal/compositor"
	"geodeck/internal/viewport"
)

var (
	ErrDuplicateLayer = errors.New("basemap: layer already exists")
	ErrUnknownLayer   = errors.New("basemap: no such layer")
	ErrClosed         = errors.New("basemap: closed")
)

type Options struct {
	Logger *zap.Logger
}

// entry is one slot of the draw order: a style layer or a custom layer.
type entry struct {
	style  *StyleLayer
	custom compositor.CustomLayer
}

func (e entry) id() string {
	if e.custom != nil {
		return e.custom.ID()
	}
	return e.style.ID
}

// Map renders a Style. Load handlers run every time a style finishes
// loading, including after SetStyle; custom layers do not survive a style
// change and must be added again from a load handler.
type Map struct {
	dc      *gg.Context
	style   *Style
	entries []entry
	onLoad  []func()
	loaded  bool
	closed  bool
	logger  *zap.Logger
}

// New mounts a map on the shared surface. Nothing is drawn until Load.
func New(shared compositor.Shared, style *Style, opts Options) (*Map, error) {
	if shared.Context() == nil {
		return nil, compositor.ErrContextNotReady
	}
	if style == nil {
		return nil, fmt.Errorf("%w: nil style", ErrInvalidStyle)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Map{dc: shared.Context(), logger: opts.Logger.Named("basemap")}
	m.setStyle(style)
	return m, nil
}

// OnLoad registers fn to run on every load event.
func (m *Map) OnLoad(fn func()) {
	m.onLoad = append(m.onLoad, fn)
}

// Load marks the style loaded and fires the load event.
func (m *Map) Load() error {
	if m.closed {
		return ErrClosed
	}
	m.loaded = true
	m.logger.Info("style loaded", zap.String("name", m.style.Name), zap.Int("layers", len(m.style.Layers)))
	for _, fn := range m.onLoad {
		fn()
	}
	return nil
}

// Loaded reports whether a load event has fired for the current style.
func (m *Map) Loaded() bool { return m.loaded }

// SetStyle swaps the style, drops custom layers and loads again.
func (m *Map) SetStyle(s *Style) error {
	if m.closed {
		return ErrClosed
	}
	if s == nil {
		return fmt.Errorf("%w: nil style", ErrInvalidStyle)
	}
	m.setStyle(s)
	return m.Load()
}

func (m *Map) setStyle(s *Style) {
	m.style = s
	m.loaded = false
	m.entries = m.entries[:0]
	for _, l := range s.Layers {
		m.entries = append(m.entries, entry{style: l})
	}
}

func (m *Map) Style() *Style { return m.style }

// AddLayer inserts l before the layer beforeID, or on top when beforeID is
// empty.
func (m *Map) AddLayer(l compositor.CustomLayer, beforeID string) error {
	if m.closed {
		return ErrClosed
	}
	if m.HasLayer(l.ID()) {
		return fmt.Errorf("%w: %q", ErrDuplicateLayer, l.ID())
	}
	at := len(m.entries)
	if beforeID != "" {
		at = m.index(beforeID)
		if at < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownLayer, beforeID)
		}
	}
	m.entries = append(m.entries, entry{})
	copy(m.entries[at+1:], m.entries[at:])
	m.entries[at] = entry{custom: l}
	return nil
}

func (m *Map) HasLayer(id string) bool { return m.index(id) >= 0 }

func (m *Map) HasCustomLayer(id string) bool {
	i := m.index(id)
	return i >= 0 && m.entries[i].custom != nil
}

// LayerIDs lists the draw order, custom layers included.
func (m *Map) LayerIDs() []string {
	ids := make([]string, len(m.entries))
	for i, e := range m.entries {
		ids[i] = e.id()
	}
	return ids
}

func (m *Map) index(id string) int {
	for i, e := range m.entries {
		if e.id() == id {
			return i
		}
	}
	return -1
}

// Render draws the style in order. The surface state is saved around the
// whole pass.
func (m *Map) Render(vp *viewport.Viewport) error {
	if m.closed {
		return ErrClosed
	}
	if !m.loaded {
		return nil
	}
	m.dc.Push()
	defer m.dc.Pop()

	var errs []error
	for _, e := range m.entries {
		if e.custom != nil {
			if err := e.custom.Render(m.dc, vp); err != nil {
				errs = append(errs, fmt.Errorf("layer %s: %w", e.custom.ID(), err))
			}
			continue
		}
		if !e.style.visibleAt(vp.Zoom) {
			continue
		}
		m.dc.SetTransform(vp.Matrix())
		if err := m.drawStyleLayer(e.style, vp); err != nil {
			errs = append(errs, fmt.Errorf("layer %s: %w", e.style.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Map) drawStyleLayer(l *StyleLayer, vp *viewport.Viewport) error {
	dc := m.dc
	p := l.Paint
	switch l.Type {
	case TypeBackground:
		dc.ClearWithColor(paintColor(p.BackgroundColor, nil))
		return nil

	case TypeGraticule:
		drawGraticule(dc, vp)
		dc.SetColor(paintColor(p.LineColor, nil).Color())
		dc.SetLineWidth(lineWidth(p.LineWidth))
		return dc.Stroke()

	case TypeFill:
		geo := m.style.Sources[l.Source].Geo()
		if len(geo.Polygons) == 0 {
			return nil
		}
		for _, poly := range geo.Polygons {
			for _, ring := range poly {
				path(dc, vp, orb.LineString(ring), true)
			}
		}
		dc.SetFillRule(gg.FillRuleEvenOdd)
		defer dc.SetFillRule(gg.FillRuleNonZero)
		dc.SetColor(paintColor(p.FillColor, p.FillOpacity).Color())
		return dc.Fill()

	case TypeLine:
		geo := m.style.Sources[l.Source].Geo()
		for _, ls := range geo.Lines {
			path(dc, vp, ls, false)
		}
		for _, poly := range geo.Polygons {
			for _, ring := range poly {
				path(dc, vp, orb.LineString(ring), true)
			}
		}
		dc.SetColor(paintColor(p.LineColor, p.LineOpacity).Color())
		dc.SetLineWidth(lineWidth(p.LineWidth))
		return dc.Stroke()

	case TypeCircle:
		geo := m.style.Sources[l.Source].Geo()
		if len(geo.Points) == 0 {
			return nil
		}
		r := p.CircleRadius
		if r <= 0 {
			r = 5
		}
		for _, pt := range geo.Points {
			x, y := vp.Project(pt.Lon(), pt.Lat())
			dc.DrawCircle(x, y, r)
		}
		dc.SetColor(paintColor(p.CircleColor, p.CircleOpacity).Color())
		return dc.Fill()
	}
	return nil
}

func path(dc *gg.Context, vp *viewport.Viewport, ls orb.LineString, closed bool) {
	if len(ls) < 2 {
		return
	}
	for i, pt := range ls {
		x, y := vp.Project(pt.Lon(), pt.Lat())
		if i == 0 {
			dc.MoveTo(x, y)
			continue
		}
		dc.LineTo(x, y)
	}
	if closed {
		dc.ClosePath()
	}
}

var graticuleSteps = []float64{30, 10, 5, 2, 1, 0.5, 0.25, 0.1, 0.05, 0.02, 0.01, 0.005, 0.002, 0.001}

// drawGraticule adds meridians and parallels at a spacing that yields a
// handful of lines across the view.
func drawGraticule(dc *gg.Context, vp *viewport.Viewport) {
	b := vp.Bounds()
	span := math.Max(b.Max.Lon()-b.Min.Lon(), b.Max.Lat()-b.Min.Lat())
	step := graticuleSteps[len(graticuleSteps)-1]
	for _, s := range graticuleSteps {
		if span/s >= 4 {
			step = s
			break
		}
	}
	for lon := math.Ceil(b.Min.Lon()/step) * step; lon <= b.Max.Lon(); lon += step {
		path(dc, vp, orb.LineString{{lon, b.Min.Lat()}, {lon, b.Max.Lat()}}, false)
	}
	for lat := math.Ceil(b.Min.Lat()/step) * step; lat <= b.Max.Lat(); lat += step {
		path(dc, vp, orb.LineString{{b.Min.Lon(), lat}, {b.Max.Lon(), lat}}, false)
	}
}

func paintColor(hex string, opacity *float64) gg.RGBA {
	if hex == "" {
		hex = "#000000"
	}
	c := gg.Hex(hex)
	if opacity != nil {
		c.A *= math.Max(0, math.Min(1, *opacity))
	}
	return c
}

func lineWidth(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

// Close releases the surface handle and every custom layer.
func (m *Map) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.dc = nil
	m.entries = nil
	m.onLoad = nil
	return nil
}
