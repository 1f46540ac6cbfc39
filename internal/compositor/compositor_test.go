package compositor

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodeck/internal/layers"
	"geodeck/internal/overlay"
	"geodeck/internal/viewport"
)

// recordingLayer logs its draws and checks it is drawn inside a bracket.
type recordingLayer struct {
	id  string
	c   **Compositor
	log *[]string
}

func (l recordingLayer) Props() layers.Props { return layers.Props{ID: l.id} }

func (l recordingLayer) Draw(*gg.Context, *viewport.Viewport) error {
	if (*l.c).depth != 1 {
		return errors.New("drawn outside a bracket")
	}
	*l.log = append(*l.log, l.id)
	return nil
}

func (l recordingLayer) Pick(*viewport.Viewport, float64, float64) (layers.PickInfo, bool) {
	return layers.PickInfo{}, false
}

// fakeBasemap keeps a style layer list with custom layers spliced in.
type fakeBasemap struct {
	order  []string
	custom map[string]CustomLayer
	adds   int
	log    *[]string
	closed bool
}

func newFakeBasemap(log *[]string) *fakeBasemap {
	return &fakeBasemap{
		order:  []string{"background", "water", "waterway_other", "labels"},
		custom: make(map[string]CustomLayer),
		log:    log,
	}
}

func (b *fakeBasemap) AddLayer(l CustomLayer, beforeID string) error {
	if slices.Contains(b.order, l.ID()) {
		return errors.New("duplicate layer " + l.ID())
	}
	i := slices.Index(b.order, beforeID)
	if i < 0 {
		return errors.New("no such layer " + beforeID)
	}
	b.adds++
	b.order = slices.Insert(b.order, i, l.ID())
	b.custom[l.ID()] = l
	return nil
}

func (b *fakeBasemap) HasLayer(id string) bool { return slices.Contains(b.order, id) }

func (b *fakeBasemap) HasCustomLayer(id string) bool { return b.custom[id] != nil }

func (b *fakeBasemap) Render(vp *viewport.Viewport) error {
	var errs []error
	for _, id := range b.order {
		if l, ok := b.custom[id]; ok {
			errs = append(errs, l.Render(nil, vp))
			continue
		}
		*b.log = append(*b.log, "style:"+id)
	}
	return errors.Join(errs...)
}

func (b *fakeBasemap) Close() error {
	b.closed = true
	return nil
}

// reload drops custom layers the way a style change does.
func (b *fakeBasemap) reload() {
	b.order = slices.DeleteFunc(b.order, func(id string) bool { return b.custom[id] != nil })
	clear(b.custom)
}

type fixture struct {
	c   *Compositor
	ov  *overlay.Renderer
	bm  *fakeBasemap
	vp  *viewport.Viewport
	log []string
}

func newFixture(t *testing.T, extra ...string) *fixture {
	t.Helper()
	f := &fixture{vp: viewport.New(viewport.Initial, 40, 30)}
	f.ov = overlay.New(overlay.Options{Width: 40, Height: 30})
	f.c = New(f.ov, Options{})
	ids := append([]string{layers.ScatterplotID, layers.TileLayerID}, extra...)
	var set []layers.Layer
	for _, id := range ids {
		set = append(set, recordingLayer{id: id, c: &f.c, log: &f.log})
	}
	require.NoError(t, f.ov.SetLayers(set))
	f.bm = newFakeBasemap(&f.log)
	return f
}

func (f *fixture) mount(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ov.Init())
	require.NoError(t, f.c.Mount(func(s Shared) (Basemap, error) {
		require.Same(t, f.ov.Context(), s.Context())
		return f.bm, nil
	}))
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Uninitialized, f.c.State())
	assert.Equal(t, "uninitialized", f.c.State().String())

	err := f.c.Mount(func(Shared) (Basemap, error) {
		t.Fatal("basemap built before the surface exists")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrContextNotReady)
	assert.ErrorIs(t, f.c.Render(f.vp), ErrContextNotReady)
	assert.ErrorIs(t, f.c.OnBasemapLoaded(), ErrNotMounted)

	require.NoError(t, f.ov.Init())
	assert.Equal(t, ContextReady, f.c.State())
	assert.ErrorIs(t, f.c.OnContextReady(f.ov.Context()), ErrContextAlreadyReady)
	assert.ErrorIs(t, f.c.OnBasemapLoaded(), ErrNotMounted)

	f.mount(t)
	assert.ErrorIs(t, f.c.Mount(func(Shared) (Basemap, error) { return f.bm, nil }), ErrAlreadyMounted)

	require.NoError(t, f.c.OnBasemapLoaded())
	assert.Equal(t, BasemapLoaded, f.c.State())
	assert.Equal(t, "basemap-loaded", f.c.State().String())
	assert.Equal(t, []string{"background", "water", layers.ScatterplotID, layers.TileLayerID, "waterway_other", "labels"}, f.bm.order)
}

func TestMountError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ov.Init())
	err := f.c.Mount(func(Shared) (Basemap, error) { return nil, errors.New("bad style") })
	assert.ErrorContains(t, err, "bad style")
	assert.ErrorIs(t, f.c.OnBasemapLoaded(), ErrNotMounted)
}

func TestRegistrationIdempotent(t *testing.T) {
	f := newFixture(t)
	f.mount(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.c.OnBasemapLoaded())
	}
	assert.Equal(t, 2, f.bm.adds)

	f.bm.reload()
	assert.False(t, f.bm.HasLayer(layers.ScatterplotID))
	require.NoError(t, f.c.OnBasemapLoaded())
	assert.Equal(t, 4, f.bm.adds)
	assert.True(t, f.bm.HasLayer(layers.ScatterplotID))
	assert.True(t, f.bm.HasLayer(layers.TileLayerID))
}

func TestRenderOrder(t *testing.T) {
	f := newFixture(t, "labels-overlay")
	require.NoError(t, f.ov.Init())

	require.NoError(t, f.c.Render(f.vp))
	assert.Equal(t, []string{layers.ScatterplotID, layers.TileLayerID, "labels-overlay"}, f.log)

	f.log = nil
	f.mount(t)
	require.NoError(t, f.c.Render(f.vp), "mounted but not loaded draws the overlay alone")
	assert.Equal(t, []string{layers.ScatterplotID, layers.TileLayerID, "labels-overlay"}, f.log)

	f.log = nil
	require.NoError(t, f.c.OnBasemapLoaded())
	require.NoError(t, f.c.Render(f.vp))
	assert.Equal(t, []string{
		"style:background", "style:water",
		layers.ScatterplotID, layers.TileLayerID,
		"style:waterway_other", "style:labels",
		"labels-overlay",
	}, f.log)
}

func TestBracketBalanced(t *testing.T) {
	f := newFixture(t)
	f.mount(t)
	require.NoError(t, f.c.OnBasemapLoaded())

	rng := rand.New(rand.NewSource(3))
	ctl := viewport.NewController(viewport.Initial, viewport.DefaultLimits)
	ctl.SetSize(40, 30)
	for i := 0; i < 200; i++ {
		ctl.Rotate(rng.Float64()*90-45, rng.Float64()*20-10)
		ctl.ZoomBy(rng.Float64()*2 - 1)
		require.NoError(t, f.c.Render(ctl.Viewport()))
		require.Equal(t, 0, f.c.depth)
		require.True(t, f.ov.Context().GetTransform().IsIdentity(), "state leaked out of the bracket")
	}
}

func TestBracketErrors(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.c.BeginFrame(), ErrContextNotReady)
	require.NoError(t, f.ov.Init())

	assert.ErrorIs(t, f.c.EndFrame(), ErrUnbalancedBracket)
	require.NoError(t, f.c.BeginFrame())
	assert.ErrorIs(t, f.c.BeginFrame(), ErrUnbalancedBracket)
	require.NoError(t, f.c.EndFrame())
	assert.ErrorIs(t, f.c.EndFrame(), ErrUnbalancedBracket)
	assert.Equal(t, 0, f.c.depth)
}

func TestFrameGuard(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ov.Init())
	dc := f.ov.Context()

	err := f.c.Frame(func() error {
		dc.Translate(5, 5)
		panic("layer exploded")
	})
	assert.ErrorContains(t, err, "layer exploded")
	assert.Equal(t, 0, f.c.depth)
	assert.True(t, dc.GetTransform().IsIdentity())

	err = f.c.Frame(func() error { return errors.New("draw failed") })
	assert.EqualError(t, err, "draw failed")
	assert.Equal(t, 0, f.c.depth)

	err = f.c.Frame(func() error { return f.c.BeginFrame() })
	assert.ErrorIs(t, err, ErrUnbalancedBracket)
	assert.Equal(t, 0, f.c.depth)
}

type panickyLayer struct{ id string }

func (l panickyLayer) Props() layers.Props { return layers.Props{ID: l.id} }

func (l panickyLayer) Draw(dc *gg.Context, _ *viewport.Viewport) error {
	dc.Translate(3, 3)
	panic("bad tile")
}

func (l panickyLayer) Pick(*viewport.Viewport, float64, float64) (layers.PickInfo, bool) {
	return layers.PickInfo{}, false
}

func TestPanickingLayerKeepsBracket(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ov.SetLayers([]layers.Layer{
		recordingLayer{id: layers.ScatterplotID, c: &f.c, log: &f.log},
		panickyLayer{id: layers.TileLayerID},
	}))
	f.mount(t)
	require.NoError(t, f.c.OnBasemapLoaded())

	err := f.c.Render(f.vp)
	assert.ErrorContains(t, err, "bad tile")
	assert.Equal(t, 0, f.c.depth)
	assert.True(t, f.ov.Context().GetTransform().IsIdentity())
	assert.Equal(t, []string{"style:background", "style:water", layers.ScatterplotID, "style:waterway_other", "style:labels"}, f.log,
		"layers after the panicking one still draw")
}

func TestStyleLayerSharingDelegatedID(t *testing.T) {
	f := newFixture(t)
	f.bm.order = []string{"background", layers.TileLayerID, "waterway_other"}
	f.mount(t)
	require.NoError(t, f.c.OnBasemapLoaded())

	assert.True(t, f.c.Registered(layers.ScatterplotID))
	assert.False(t, f.c.Registered(layers.TileLayerID))
	require.NoError(t, f.c.Render(f.vp))
	assert.Equal(t, []string{
		"style:background", "style:" + layers.TileLayerID,
		layers.ScatterplotID, "style:waterway_other",
		layers.TileLayerID,
	}, f.log, "the overlay still paints a layer the basemap refused")
}

func TestDelegatedLayerMissingFromOverlay(t *testing.T) {
	ov := overlay.New(overlay.Options{Width: 8, Height: 8})
	var log []string
	var c *Compositor
	c = New(ov, Options{Delegations: []Delegation{{LayerID: "typo-layer", BeforeID: "waterway_other"}}})
	require.NoError(t, ov.SetLayers([]layers.Layer{recordingLayer{id: layers.ScatterplotID, c: &c, log: &log}}))
	require.NoError(t, ov.Init())
	bm := newFakeBasemap(&log)
	require.NoError(t, c.Mount(func(Shared) (Basemap, error) { return bm, nil }))
	require.NoError(t, c.OnBasemapLoaded())

	require.NoError(t, c.Render(viewport.New(viewport.Initial, 8, 8)))
	assert.Equal(t, []string{"style:background", "style:water", "style:waterway_other", "style:labels", layers.ScatterplotID}, log)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	f.mount(t)
	require.NoError(t, f.c.OnBasemapLoaded())

	require.NoError(t, f.c.Close())
	require.NoError(t, f.c.Close())
	assert.True(t, f.bm.closed)
	assert.Nil(t, f.ov.Context())
	assert.Equal(t, Uninitialized, f.c.State())
	assert.ErrorIs(t, f.c.Render(f.vp), ErrClosed)
	assert.ErrorIs(t, f.c.OnContextReady(gg.NewContext(1, 1)), ErrClosed)
}

func TestCheckDelegations(t *testing.T) {
	style := newFakeBasemap(new([]string))
	ids := layers.IDs(layers.Build(layers.Input{}))

	require.NoError(t, CheckDelegations(ids, style, DefaultDelegations))

	err := CheckDelegations(ids, style, []Delegation{{LayerID: "my-scaterplot", BeforeID: "waterway_other"}})
	assert.ErrorIs(t, err, ErrUnknownDelegation)

	err = CheckDelegations(ids, style, []Delegation{{LayerID: layers.TileLayerID, BeforeID: "waterway"}})
	assert.ErrorIs(t, err, ErrMissingInsertionPoint)

	err = CheckDelegations(ids, style, []Delegation{
		{LayerID: layers.TileLayerID, BeforeID: "labels"},
		{LayerID: layers.TileLayerID, BeforeID: "labels"},
	})
	assert.ErrorIs(t, err, ErrDuplicateDelegation)

	err = CheckDelegations([]string{"a", "a"}, style, []Delegation{{LayerID: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateDelegation)
}
