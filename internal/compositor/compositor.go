// Package compositor lets the overlay and basemap renderers share one
// drawing surface. It gates basemap creation on the surface existing,
// registers delegated overlay layers with the basemap once it has loaded,
// and brackets every overlay pass with a push/pop of the surface state.
package compositor

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gg"
	"go.uber.org/zap"

	"geodeck/internal/layers"
	"geodeck/internal/metrics"
	"geodeck/internal/viewport"
)

var (
	ErrContextAlreadyReady = errors.New("compositor: context already ready")
	ErrContextNotReady     = errors.New("compositor: context not ready")
	ErrNotMounted          = errors.New("compositor: basemap not mounted")
	ErrAlreadyMounted      = errors.New("compositor: basemap already mounted")
	ErrUnbalancedBracket   = errors.New("compositor: unbalanced state bracket")
	ErrClosed              = errors.New("compositor: closed")
)

// State is the lifecycle position of the compositor.
type State int

const (
	Uninitialized State = iota
	ContextReady
	BasemapLoaded
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ContextReady:
		return "context-ready"
	case BasemapLoaded:
		return "basemap-loaded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Delegation asks the basemap to paint overlay layer LayerID just before
// its own layer BeforeID.
type Delegation struct {
	LayerID  string `yaml:"layer"`
	BeforeID string `yaml:"before"`
}

// DefaultDelegations places both overlay layers under the minor waterways.
var DefaultDelegations = []Delegation{
	{LayerID: layers.ScatterplotID, BeforeID: "waterway_other"},
	{LayerID: layers.TileLayerID, BeforeID: "waterway_other"},
}

// Shared hands the surface to a basemap. Only the compositor can make one,
// and only after the surface exists.
type Shared struct {
	dc *gg.Context
}

func (s Shared) Context() *gg.Context { return s.dc }

// CustomLayer is a layer the basemap paints at its place in the style.
type CustomLayer interface {
	ID() string
	Render(dc *gg.Context, vp *viewport.Viewport) error
}

// Basemap is the secondary renderer as seen by the compositor.
type Basemap interface {
	AddLayer(l CustomLayer, beforeID string) error
	// HasCustomLayer reports whether id was added with AddLayer. Style
	// layers with the same id do not count.
	HasCustomLayer(id string) bool
	Render(vp *viewport.Viewport) error
	Close() error
}

// Overlay is the primary renderer as seen by the compositor.
type Overlay interface {
	OnInitialized(fn func(*gg.Context) error)
	SetRenderHook(hook func(draw func() error) error)
	HasLayer(id string) bool
	DrawLayer(id string, vp *viewport.Viewport) error
	DrawLayers(vp *viewport.Viewport, skip func(id string) bool) error
	Close() error
}

type Options struct {
	Delegations []Delegation
	// Background clears the surface before the basemap has loaded.
	Background gg.RGBA
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type Compositor struct {
	overlay     Overlay
	basemap     Basemap
	delegations []Delegation
	registered  map[string]bool
	background  gg.RGBA
	logger      *zap.Logger
	metrics     *metrics.Metrics

	dc     *gg.Context
	state  State
	depth  int
	closed bool
}

// New wires c to ov: the overlay announces its surface to c and runs its
// passes through c's Frame.
func New(ov Overlay, opts Options) *Compositor {
	if opts.Delegations == nil {
		opts.Delegations = DefaultDelegations
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Compositor{
		overlay:     ov,
		delegations: opts.Delegations,
		registered:  make(map[string]bool),
		background:  opts.Background,
		logger:      opts.Logger.Named("compositor"),
		metrics:     opts.Metrics,
	}
	ov.OnInitialized(c.OnContextReady)
	ov.SetRenderHook(c.Frame)
	return c
}

func (c *Compositor) State() State { return c.state }

// Delegations returns the configured delegation table.
func (c *Compositor) Delegations() []Delegation { return c.delegations }

// Registered reports whether the basemap paints id at its insertion point.
func (c *Compositor) Registered(id string) bool { return c.registered[id] }

// OnContextReady records the shared surface. It may happen only once.
func (c *Compositor) OnContextReady(dc *gg.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.state != Uninitialized {
		return ErrContextAlreadyReady
	}
	if dc == nil {
		return fmt.Errorf("%w: nil surface", ErrContextNotReady)
	}
	c.dc = dc
	c.state = ContextReady
	c.logger.Debug("context ready", zap.Int("width", dc.Width()), zap.Int("height", dc.Height()))
	return nil
}

// Mount builds the basemap on the shared surface.
func (c *Compositor) Mount(build func(Shared) (Basemap, error)) error {
	if c.closed {
		return ErrClosed
	}
	if c.state == Uninitialized {
		return ErrContextNotReady
	}
	if c.basemap != nil {
		return ErrAlreadyMounted
	}
	bm, err := build(Shared{dc: c.dc})
	if err != nil {
		return fmt.Errorf("mount basemap: %w", err)
	}
	c.basemap = bm
	return nil
}

// OnBasemapLoaded registers every delegation with the basemap. It is safe
// to call on every load event: layers already present are left alone and
// layers dropped by a style reload are added back.
func (c *Compositor) OnBasemapLoaded() error {
	if c.closed {
		return ErrClosed
	}
	if c.basemap == nil {
		return ErrNotMounted
	}
	for _, d := range c.delegations {
		if c.basemap.HasCustomLayer(d.LayerID) {
			c.registered[d.LayerID] = true
			continue
		}
		err := c.basemap.AddLayer(&delegatedLayer{id: d.LayerID, overlay: c.overlay}, d.BeforeID)
		if err != nil {
			c.registered[d.LayerID] = false
			c.logger.Warn("delegation not registered",
				zap.String("layer", d.LayerID), zap.String("before", d.BeforeID), zap.Error(err))
			continue
		}
		c.registered[d.LayerID] = true
		c.logger.Debug("delegation registered", zap.String("layer", d.LayerID), zap.String("before", d.BeforeID))
	}
	c.state = BasemapLoaded
	return nil
}

// BeginFrame saves the surface state. Brackets do not nest.
func (c *Compositor) BeginFrame() error {
	if c.dc == nil {
		return ErrContextNotReady
	}
	if c.depth != 0 {
		return fmt.Errorf("%w: begin inside an open frame", ErrUnbalancedBracket)
	}
	c.dc.Push()
	c.depth++
	c.metrics.Bracket("push")
	return nil
}

// EndFrame restores the state saved by the matching BeginFrame.
func (c *Compositor) EndFrame() error {
	if c.depth != 1 {
		return fmt.Errorf("%w: end without begin", ErrUnbalancedBracket)
	}
	c.dc.Pop()
	c.depth--
	c.metrics.Bracket("pop")
	return nil
}

// Frame runs fn inside one bracket. The bracket is closed on every path,
// and a panic in fn is returned as an error.
func (c *Compositor) Frame(fn func() error) (err error) {
	if err := c.BeginFrame(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compositor: frame panicked: %v", r)
		}
		err = errors.Join(err, c.EndFrame())
	}()
	return fn()
}

// Render composites one frame. Once the basemap has loaded it drives the
// paint order and delegated layers are drawn at their insertion points;
// remaining overlay layers go on top. Before that the overlay draws alone.
func (c *Compositor) Render(vp *viewport.Viewport) (err error) {
	if c.closed {
		return ErrClosed
	}
	if c.state == Uninitialized {
		return ErrContextNotReady
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compositor: render panicked: %v", r)
		}
		c.metrics.ObserveFrame(time.Since(start))
	}()

	if c.state != BasemapLoaded {
		c.dc.ClearWithColor(c.background)
		return c.overlay.DrawLayers(vp, nil)
	}

	c.dc.Clear()
	var errs []error
	if err := c.basemap.Render(vp); err != nil {
		errs = append(errs, fmt.Errorf("basemap: %w", err))
	}
	if err := c.overlay.DrawLayers(vp, func(id string) bool { return c.registered[id] }); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the basemap then the overlay and its surface. The
// compositor returns to Uninitialized and refuses further work.
func (c *Compositor) Close() error {
	if c.closed {
		return nil
	}
	var errs []error
	if c.basemap != nil {
		errs = append(errs, c.basemap.Close())
		c.basemap = nil
	}
	errs = append(errs, c.overlay.Close())
	c.dc = nil
	c.state = Uninitialized
	c.depth = 0
	c.closed = true
	clear(c.registered)
	return errors.Join(errs...)
}

// delegatedLayer paints an overlay layer from inside the basemap's draw
// order. A layer the overlay does not know is skipped.
type delegatedLayer struct {
	id      string
	overlay Overlay
}

func (d *delegatedLayer) ID() string { return d.id }

func (d *delegatedLayer) Render(_ *gg.Context, vp *viewport.Viewport) error {
	if !d.overlay.HasLayer(d.id) {
		return nil
	}
	return d.overlay.DrawLayer(d.id, vp)
}
