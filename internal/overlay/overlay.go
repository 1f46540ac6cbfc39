// Package overlay is the primary renderer. It owns the shared drawing
// surface and paints layers from the layer set onto it, either all at once
// or one layer at a time on behalf of the basemap.
package overlay

import (
	"errors"
	"fmt"

	"github.com/gogpu/gg"
	"go.uber.org/zap"

	"geodeck/internal/layers"
	"geodeck/internal/viewport"
)

var (
	ErrUnknownLayer   = errors.New("overlay: unknown layer")
	ErrNotInitialized = errors.New("overlay: surface not created")
	ErrClosed         = errors.New("overlay: closed")
)

type Options struct {
	Width  int
	Height int
	Logger *zap.Logger
}

// Renderer draws the layer set. Every draw pass runs inside the render
// hook when one is installed.
type Renderer struct {
	dc     *gg.Context
	width  int
	height int
	set    []layers.Layer
	logger *zap.Logger

	initialized []func(*gg.Context) error
	hook        func(draw func() error) error
	closed      bool
}

func New(opts Options) *Renderer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Renderer{
		width:  max(1, opts.Width),
		height: max(1, opts.Height),
		logger: opts.Logger.Named("overlay"),
	}
}

// OnInitialized registers fn to receive the surface once it exists.
func (r *Renderer) OnInitialized(fn func(*gg.Context) error) {
	r.initialized = append(r.initialized, fn)
}

// SetRenderHook installs the function every draw pass runs through. The
// hook must call draw at most once.
func (r *Renderer) SetRenderHook(hook func(draw func() error) error) {
	r.hook = hook
}

// Init creates the shared surface and announces it. Calling it again is a
// no-op.
func (r *Renderer) Init() error {
	if r.closed {
		return ErrClosed
	}
	if r.dc != nil {
		return nil
	}
	r.dc = gg.NewContext(r.width, r.height)
	r.logger.Debug("surface created", zap.Int("width", r.width), zap.Int("height", r.height))

	var errs []error
	for _, fn := range r.initialized {
		errs = append(errs, fn(r.dc))
	}
	return errors.Join(errs...)
}

// Context returns the shared surface, nil before Init.
func (r *Renderer) Context() *gg.Context { return r.dc }

// Resize changes the surface size in place.
func (r *Renderer) Resize(width, height int) error {
	r.width, r.height = max(1, width), max(1, height)
	if r.dc == nil {
		return nil
	}
	return r.dc.Resize(r.width, r.height)
}

// SetLayers replaces the layer set for the next pass.
func (r *Renderer) SetLayers(set []layers.Layer) error {
	if err := layers.Validate(set); err != nil {
		return err
	}
	r.set = set
	return nil
}

func (r *Renderer) Layers() []layers.Layer { return r.set }

// HasLayer reports whether id is in the current layer set.
func (r *Renderer) HasLayer(id string) bool {
	_, ok := layers.Find(r.set, id)
	return ok
}

// DrawLayer paints a single layer.
func (r *Renderer) DrawLayer(id string, vp *viewport.Viewport) error {
	l, ok := layers.Find(r.set, id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, id)
	}
	return r.pass(vp, []layers.Layer{l})
}

// DrawLayers paints every layer for which skip returns false, in order,
// within one pass. A nil skip draws everything.
func (r *Renderer) DrawLayers(vp *viewport.Viewport, skip func(id string) bool) error {
	var todo []layers.Layer
	for _, l := range r.set {
		if skip == nil || !skip(l.Props().ID) {
			todo = append(todo, l)
		}
	}
	if len(todo) == 0 {
		return nil
	}
	return r.pass(vp, todo)
}

func (r *Renderer) pass(vp *viewport.Viewport, todo []layers.Layer) error {
	if r.closed {
		return ErrClosed
	}
	if r.dc == nil {
		return ErrNotInitialized
	}
	draw := func() error {
		r.dc.SetTransform(vp.Matrix())
		var errs []error
		for _, l := range todo {
			if err := l.Draw(r.dc, vp); err != nil {
				errs = append(errs, fmt.Errorf("layer %s: %w", l.Props().ID, err))
			}
		}
		return errors.Join(errs...)
	}
	if r.hook == nil {
		return draw()
	}
	return r.hook(draw)
}

// Pick returns the topmost pickable object under the screen point.
func (r *Renderer) Pick(vp *viewport.Viewport, x, y float64) (layers.PickInfo, bool) {
	for i := len(r.set) - 1; i >= 0; i-- {
		if info, ok := r.set[i].Pick(vp, x, y); ok {
			return info, true
		}
	}
	return layers.PickInfo{}, false
}

// Close drops the surface. Later passes fail with ErrClosed.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.dc != nil {
		err = r.dc.Close()
		r.dc = nil
	}
	return err
}
