package basemap

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/eak1mov/go-libtiles/tile"
	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodeck/internal/compositor"
	"geodeck/internal/layers"
	"geodeck/internal/overlay"
	"geodeck/internal/tiles"
	"geodeck/internal/viewport"
)

const redStyle = `{
  "version": 8,
  "name": "red",
  "sources": {"box": {"type": "geojson", "data": "box.geojson"}},
  "layers": [
    {"id": "background", "type": "background", "paint": {"background-color": "#ff0000"}},
    {"id": "box", "type": "fill", "source": "box", "paint": {"fill-color": "#00ff00"}},
    {"id": "waterway_other", "type": "line", "source": "box", "paint": {"line-color": "#0000ff"}}
  ]
}`

const boxGeoJSON = `{"type": "Polygon", "coordinates": [[[10, 10], [11, 10], [11, 11], [10, 11], [10, 10]]]}`

var testFS = fstest.MapFS{"box.geojson": {Data: []byte(boxGeoJSON)}}

type namedLayer struct {
	id    string
	calls *int
}

func (l namedLayer) ID() string { return l.id }

func (l namedLayer) Render(*gg.Context, *viewport.Viewport) error {
	*l.calls++
	return nil
}

type stack struct {
	ov *overlay.Renderer
	c  *compositor.Compositor
	m  *Map
}

func mount(t *testing.T, style *Style, w, h int) *stack {
	t.Helper()
	s := &stack{ov: overlay.New(overlay.Options{Width: w, Height: h})}
	s.c = compositor.New(s.ov, compositor.Options{})
	require.NoError(t, s.ov.Init())
	require.NoError(t, s.c.Mount(func(sh compositor.Shared) (compositor.Basemap, error) {
		m, err := New(sh, style, Options{})
		s.m = m
		return m, err
	}))
	return s
}

func TestDefaultStyle(t *testing.T) {
	s, err := DefaultStyle()
	require.NoError(t, err)
	assert.Equal(t, 8, s.Version)
	assert.True(t, s.HasLayer("waterway_other"))
	assert.Equal(t, "background", s.LayerIDs()[0])
	assert.NotEmpty(t, s.Sources["streams"].Geo().Lines)
	assert.NotEmpty(t, s.Sources["park"].Geo().Polygons)
	assert.Len(t, s.Sources["places"].Geo().Points, 3)
}

func TestParseStyleErrors(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{`,
		"version":        `{"version": 7, "layers": []}`,
		"unknown type":   `{"version": 8, "layers": [{"id": "a", "type": "raster"}]}`,
		"unknown source": `{"version": 8, "layers": [{"id": "a", "type": "line", "source": "nope"}]}`,
		"duplicate":      `{"version": 8, "layers": [{"id": "a", "type": "background"}, {"id": "a", "type": "background"}]}`,
		"no id":          `{"version": 8, "layers": [{"type": "background"}]}`,
		"source type":    `{"version": 8, "sources": {"s": {"type": "vector"}}, "layers": []}`,
		"missing file":   `{"version": 8, "sources": {"s": {"type": "geojson", "data": "gone.geojson"}}, "layers": []}`,
	}
	for name, in := range cases {
		_, err := ParseStyle([]byte(in), testFS)
		assert.ErrorIs(t, err, ErrInvalidStyle, name)
	}
}

func TestLoadStyleFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.json"), []byte(redStyle), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "box.geojson"), []byte(boxGeoJSON), 0o644))

	s, err := LoadStyle(filepath.Join(dir, "style.json"))
	require.NoError(t, err)
	assert.Equal(t, "red", s.Name)
	assert.Len(t, s.Sources["box"].Geo().Polygons, 1)
}

func TestAddLayer(t *testing.T) {
	style, err := ParseStyle([]byte(redStyle), testFS)
	require.NoError(t, err)
	m := mount(t, style, 8, 8).m

	var calls int
	require.NoError(t, m.AddLayer(namedLayer{"a", &calls}, "waterway_other"))
	require.NoError(t, m.AddLayer(namedLayer{"b", &calls}, "waterway_other"))
	require.NoError(t, m.AddLayer(namedLayer{"top", &calls}, ""))
	assert.Equal(t, []string{"background", "box", "a", "b", "waterway_other", "top"}, m.LayerIDs())

	assert.True(t, m.HasCustomLayer("a"))
	assert.False(t, m.HasCustomLayer("box"), "style layers are not custom")
	assert.ErrorIs(t, m.AddLayer(namedLayer{"a", &calls}, ""), ErrDuplicateLayer)
	assert.ErrorIs(t, m.AddLayer(namedLayer{"c", &calls}, "nope"), ErrUnknownLayer)

	vp := viewport.New(viewport.ViewState{Longitude: 10.5, Latitude: 10.5, Zoom: 6}, 8, 8)
	require.NoError(t, m.Render(vp))
	assert.Zero(t, calls, "nothing is drawn before load")
	require.NoError(t, m.Load())
	require.NoError(t, m.Render(vp))
	assert.Equal(t, 3, calls)
}

func TestSetStyleReloads(t *testing.T) {
	style, err := ParseStyle([]byte(redStyle), testFS)
	require.NoError(t, err)
	m := mount(t, style, 8, 8).m

	loads := 0
	m.OnLoad(func() { loads++ })
	require.NoError(t, m.Load())
	var calls int
	require.NoError(t, m.AddLayer(namedLayer{"a", &calls}, "waterway_other"))

	require.NoError(t, m.SetStyle(style))
	assert.Equal(t, 2, loads)
	assert.False(t, m.HasLayer("a"))
	assert.True(t, m.Loaded())

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.SetStyle(style), ErrClosed)
	assert.ErrorIs(t, m.Render(viewport.New(viewport.Initial, 8, 8)), ErrClosed)
}

func TestRenderStyle(t *testing.T) {
	style, err := ParseStyle([]byte(redStyle), testFS)
	require.NoError(t, err)
	s := mount(t, style, 64, 64)
	require.NoError(t, s.m.Load())

	vp := viewport.New(viewport.ViewState{Longitude: 10.5, Latitude: 10.5, Zoom: 5}, 64, 64)
	require.NoError(t, s.m.Render(vp))
	pm := s.ov.Context().ResizeTarget()

	center := pm.GetPixel(32, 32)
	assert.InDelta(t, 1.0, center.G, 0.01)
	assert.InDelta(t, 0.0, center.R, 0.01)
	corner := pm.GetPixel(1, 1)
	assert.InDelta(t, 1.0, corner.R, 0.01)
	assert.True(t, s.ov.Context().GetTransform().IsIdentity())
}

type noTiles struct{}

func (noTiles) Tile(id tile.ID) (tiles.Descriptor, bool) { return tiles.NewDescriptor(id), false }

func TestCompositedFrame(t *testing.T) {
	style, err := DefaultStyle()
	require.NoError(t, err)
	const w, h = 120, 90
	s := mount(t, style, w, h)
	s.m.OnLoad(func() { require.NoError(t, s.c.OnBasemapLoaded()) })

	set := layers.Build(layers.Input{Tiles: noTiles{}})
	require.NoError(t, s.ov.SetLayers(set))
	require.NoError(t, compositor.CheckDelegations(layers.IDs(set), style, s.c.Delegations()))

	require.NoError(t, s.m.Load())
	assert.Equal(t, compositor.BasemapLoaded, s.c.State())
	ids := s.m.LayerIDs()
	assert.Equal(t, []string{layers.ScatterplotID, layers.TileLayerID, "waterway_other"}, ids[3:6])

	vp := viewport.New(viewport.Initial, w, h)
	require.NoError(t, s.c.Render(vp))
	x, y := vp.LngLatToScreen(layers.DefaultPoints[0].Position.Lon(), layers.DefaultPoints[0].Position.Lat())
	px := s.ov.Context().ResizeTarget().GetPixel(int(x), int(y))
	assert.InDelta(t, 1.0, px.B, 0.01)
	assert.InDelta(t, 0.0, px.R, 0.01)

	require.NoError(t, s.m.SetStyle(style))
	assert.Equal(t, ids, s.m.LayerIDs(), "reload restores delegated layers")
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "style.json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "box.geojson"), []byte(boxGeoJSON), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(redStyle), 0o644))

	w, err := Watch(path, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 8, "name": "edited", "layers": []}`), 0o644))
	select {
	case s := <-w.Styles():
		assert.Equal(t, "edited", s.Name)
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2}`), 0o644))
	select {
	case <-w.Styles():
		t.Fatal("invalid style delivered")
	case err := <-w.Errors():
		assert.ErrorIs(t, err, ErrInvalidStyle)
	case <-time.After(5 * time.Second):
		t.Fatal("no error")
	}
}
