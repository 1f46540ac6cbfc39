package overlay

import (
	"errors"
	"testing"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodeck/internal/layers"
	"geodeck/internal/viewport"
)

type stubLayer struct {
	id    string
	drawn *[]string
	err   error
	panic bool
}

func (s stubLayer) Props() layers.Props { return layers.Props{ID: s.id} }

func (s stubLayer) Draw(*gg.Context, *viewport.Viewport) error {
	if s.panic {
		panic("boom")
	}
	*s.drawn = append(*s.drawn, s.id)
	return s.err
}

func (s stubLayer) Pick(*viewport.Viewport, float64, float64) (layers.PickInfo, bool) {
	return layers.PickInfo{LayerID: s.id}, true
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r := New(Options{Width: 32, Height: 16})
	require.NoError(t, r.Init())
	return r
}

func TestInitAnnouncesOnce(t *testing.T) {
	r := New(Options{Width: 10, Height: 5})
	var got []*gg.Context
	r.OnInitialized(func(dc *gg.Context) error {
		got = append(got, dc)
		return nil
	})
	assert.Nil(t, r.Context())

	require.NoError(t, r.Init())
	require.NoError(t, r.Init())
	require.Len(t, got, 1)
	assert.Same(t, r.Context(), got[0])
	assert.Equal(t, 10, got[0].Width())

	require.NoError(t, r.Resize(20, 8))
	assert.Same(t, got[0], r.Context())
	assert.Equal(t, 20, r.Context().Width())
}

func TestDrawBeforeInit(t *testing.T) {
	r := New(Options{Width: 10, Height: 10})
	var drawn []string
	require.NoError(t, r.SetLayers([]layers.Layer{stubLayer{id: "a", drawn: &drawn}}))
	err := r.DrawLayer("a", viewport.New(viewport.Initial, 10, 10))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDrawLayerAndSkip(t *testing.T) {
	r := newRenderer(t)
	vp := viewport.New(viewport.Initial, 32, 16)
	var drawn []string
	require.NoError(t, r.SetLayers([]layers.Layer{
		stubLayer{id: "a", drawn: &drawn},
		stubLayer{id: "b", drawn: &drawn},
		stubLayer{id: "c", drawn: &drawn},
	}))

	require.NoError(t, r.DrawLayer("b", vp))
	assert.ErrorIs(t, r.DrawLayer("zzz", vp), ErrUnknownLayer)
	require.NoError(t, r.DrawLayers(vp, func(id string) bool { return id == "b" }))
	assert.Equal(t, []string{"b", "a", "c"}, drawn)
	assert.True(t, r.HasLayer("c"))
	assert.False(t, r.HasLayer("zzz"))
}

func TestHookWrapsEveryPass(t *testing.T) {
	r := newRenderer(t)
	vp := viewport.New(viewport.Initial, 32, 16)
	var events, drawn []string
	r.SetRenderHook(func(draw func() error) error {
		events = append(events, "before")
		defer func() { events = append(events, "after") }()
		return draw()
	})
	require.NoError(t, r.SetLayers([]layers.Layer{
		stubLayer{id: "ok", drawn: &drawn},
		stubLayer{id: "bad", drawn: &drawn, err: errors.New("nope")},
		stubLayer{id: "panics", panic: true},
	}))

	require.NoError(t, r.DrawLayer("ok", vp))
	assert.ErrorContains(t, r.DrawLayer("bad", vp), "nope")
	assert.Panics(t, func() { _ = r.DrawLayer("panics", vp) })
	assert.Equal(t, []string{"before", "after", "before", "after", "before", "after"}, events)
}

func TestHookFailureSkipsPass(t *testing.T) {
	r := newRenderer(t)
	vp := viewport.New(viewport.Initial, 32, 16)
	var drawn []string
	r.SetRenderHook(func(func() error) error { return errors.New("no bracket") })
	require.NoError(t, r.SetLayers([]layers.Layer{stubLayer{id: "a", drawn: &drawn}}))
	assert.EqualError(t, r.DrawLayers(vp, nil), "no bracket")
	assert.Empty(t, drawn)
}

func TestPickTopmost(t *testing.T) {
	r := newRenderer(t)
	var drawn []string
	require.NoError(t, r.SetLayers([]layers.Layer{
		stubLayer{id: "bottom", drawn: &drawn},
		stubLayer{id: "top", drawn: &drawn},
	}))
	info, ok := r.Pick(viewport.New(viewport.Initial, 32, 16), 1, 1)
	require.True(t, ok)
	assert.Equal(t, "top", info.LayerID)
}

func TestSetLayersRejectsDuplicates(t *testing.T) {
	r := New(Options{})
	var drawn []string
	a := stubLayer{id: "a", drawn: &drawn}
	assert.ErrorIs(t, r.SetLayers([]layers.Layer{a, a}), layers.ErrDuplicateID)
}

func TestClose(t *testing.T) {
	r := newRenderer(t)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Nil(t, r.Context())
	assert.ErrorIs(t, r.Init(), ErrClosed)
	assert.ErrorIs(t, r.DrawLayers(viewport.New(viewport.Initial, 1, 1), nil), ErrClosed)
}
