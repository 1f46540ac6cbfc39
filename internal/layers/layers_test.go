package layers

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/eak1mov/go-libtiles/tile"
	"github.com/gogpu/gg"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodeck/internal/geom"
	"geodeck/internal/tiles"
	"geodeck/internal/viewport"
)

type solidTiles struct{ c color.Color }

func (s solidTiles) Tile(id tile.ID) (tiles.Descriptor, bool) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(img, img.Bounds(), image.NewUniform(s.c), image.Point{}, draw.Src)
	d := tiles.NewDescriptor(id)
	d.Image = img
	return d, true
}

func surface(vp *viewport.Viewport) *gg.Context {
	dc := gg.NewContext(vp.Width, vp.Height)
	dc.SetTransform(vp.Matrix())
	return dc
}

func TestBuildOrderAndIdentity(t *testing.T) {
	set := Build(Input{})
	require.NoError(t, Validate(set))
	assert.Equal(t, []string{ScatterplotID, TileLayerID}, IDs(set))

	tl := set[1].(*TileLayer)
	assert.Equal(t, 0, tl.MinZoom)
	assert.Equal(t, 19, tl.MaxZoom)
	assert.True(t, tl.Props().Pickable)
	assert.True(t, tl.Props().AutoHighlight)
	assert.Equal(t, Color{60, 60, 60, 40}, tl.Props().HighlightColor)

	assert.False(t, set[0].Props().Pickable)
	assert.False(t, set[0].Props().AutoHighlight)
}

func TestScatterplotSinglePoint(t *testing.T) {
	vp := viewport.New(viewport.Initial, 800, 600)
	scatter := Build(Input{})[0].(*ScatterplotLayer[geom.Point])

	got := scatter.Primitives(vp)
	require.Len(t, got, 1)
	x, y := vp.Project(-112.152317, 36.0723292)
	want := Circle{
		Index:       0,
		Position:    orb.Point{-112.152317, 36.0723292},
		Radius:      100,
		PixelRadius: 100 / vp.MetersPerPixel(36.0723292),
		X:           x,
		Y:           y,
		Color:       Color{0, 0, 255, 255},
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("circle mismatch (-want +got):\n%s", diff)
	}

	dc := surface(vp)
	require.NoError(t, scatter.Draw(dc, vp))
	sx, sy := vp.LngLatToScreen(-112.152317, 36.0723292)
	px := dc.ResizeTarget().GetPixel(int(sx), int(sy))
	assert.InDelta(t, 1.0, px.B, 0.01)
	assert.InDelta(t, 0.0, px.R, 0.01)
}

func TestScatterplotPick(t *testing.T) {
	s := viewport.Initial
	s.Bearing = 40
	s.Pitch = 30
	vp := viewport.New(s, 200, 150)
	sx, sy := vp.LngLatToScreen(-112.152317, 36.0723292)
	_, ok := Build(Input{})[0].Pick(vp, sx, sy)
	assert.False(t, ok)

	scatter := Build(Input{PickablePoints: true})[0]
	info, ok := scatter.Pick(vp, sx, sy)
	require.True(t, ok)
	assert.Equal(t, ScatterplotID, info.LayerID)
	assert.Equal(t, 0, info.Index)
	assert.Equal(t, DefaultPoints[0], info.Object)

	_, ok = scatter.Pick(vp, sx+60, sy+60)
	assert.False(t, ok)
}

func TestTileLayerAllZooms(t *testing.T) {
	for z := 0; z <= 19; z++ {
		for _, provider := range []TileProvider{nil, solidTiles{color.White}} {
			s := viewport.Initial
			s.Zoom = float64(z)
			s.Bearing = 25
			s.Pitch = 45
			vp := viewport.New(s, 96, 64)
			tl := Build(Input{Tiles: provider})[1]
			assert.NoError(t, tl.Draw(surface(vp), vp), "zoom %d", z)
		}
	}
}

func TestTileLayerZoomRange(t *testing.T) {
	tl := &TileLayer{Base: Props{ID: TileLayerID}, MinZoom: 3, MaxZoom: 5}
	for zoom, want := range map[float64]bool{2.4: false, 2.5: true, 5.49: true, 5.5: false, 7: false} {
		s := viewport.Initial
		s.Zoom = zoom
		vp := viewport.New(s, 64, 64)
		_, ok := tl.Zoom(vp)
		assert.Equal(t, want, ok, "zoom %v", zoom)
		if !want {
			assert.Empty(t, tl.Visible(vp))
			assert.NoError(t, tl.Draw(surface(vp), vp))
		}
	}
}

func TestTileSubLayerBounds(t *testing.T) {
	id := tile.ID{X: 838, Y: 1604, Z: 12}
	center := tiles.Bound(id).Center()
	vp := viewport.New(viewport.ViewState{Longitude: center.Lon(), Latitude: center.Lat(), Zoom: 12}, 64, 64)

	tl := Build(Input{})[1].(*TileLayer)
	subs := tl.SubLayers(vp)
	require.Len(t, subs, 1)

	bm := subs[0].(*BitmapLayer)
	assert.Equal(t, "tile-layer-12/838/1604", bm.Props().ID)
	want := maptile.New(838, 1604, 12).Bound()
	assert.True(t, bm.Bounds.Equal(want), "bounds = %v, want %v", bm.Bounds, want)
	assert.Nil(t, bm.Image)
}

func TestBitmapNilImageDrawsNothing(t *testing.T) {
	vp := viewport.New(viewport.ViewState{Zoom: 0}, 32, 32)
	dc := surface(vp)
	bm := &BitmapLayer{Base: Props{ID: "b"}, Bounds: tiles.Bound(tile.ID{})}
	require.NoError(t, bm.Draw(dc, vp))
	for _, v := range dc.ResizeTarget().Data() {
		require.Zero(t, v)
	}
}

func TestBitmapCoversBounds(t *testing.T) {
	vp := viewport.New(viewport.ViewState{Zoom: 0}, 512, 512)
	dc := surface(vp)
	d, _ := solidTiles{color.NRGBA{R: 255, A: 255}}.Tile(tile.ID{})
	bm := DefaultRenderSubLayers(TileProps{ID: "t", Tile: d, Base: Props{ID: "t"}})
	require.NoError(t, bm.Draw(dc, vp))

	px := dc.ResizeTarget().GetPixel(256, 256)
	assert.InDelta(t, 1.0, px.R, 0.01)
	assert.InDelta(t, 1.0, px.A, 0.01)
}

func TestTilePickAndHighlight(t *testing.T) {
	vp := viewport.New(viewport.Initial, 80, 60)
	tl := Build(Input{})[1]

	info, ok := tl.Pick(vp, 40, 30)
	require.True(t, ok)
	assert.Equal(t, TileLayerID, info.LayerID)
	want := maptile.At(orb.Point{viewport.Initial.Longitude, viewport.Initial.Latitude}, 12)
	assert.Equal(t, tile.ID{X: want.X, Y: want.Y, Z: 12}, info.Tile)
	assert.Empty(t, info.URL)

	addressed, ok := Build(Input{Template: tiles.MustParseTemplate(tiles.DefaultURL)})[1].Pick(vp, 40, 30)
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("https://c.tile.openstreetmap.org/12/%d/%d.png", want.X, want.Y), addressed.URL)

	plain := surface(vp)
	require.NoError(t, tl.Draw(plain, vp))
	assert.Zero(t, plain.ResizeTarget().GetPixel(40, 30).A)

	lit := surface(vp)
	require.NoError(t, Build(Input{Hover: info})[1].Draw(lit, vp))
	assert.Greater(t, lit.ResizeTarget().GetPixel(40, 30).A, 0.0)
}

func TestValidate(t *testing.T) {
	a := &BitmapLayer{Base: Props{ID: "a"}}
	assert.NoError(t, Validate([]Layer{a}))
	assert.ErrorIs(t, Validate([]Layer{a, a}), ErrDuplicateID)
	assert.ErrorIs(t, Validate([]Layer{&BitmapLayer{}}), ErrEmptyID)

	l, ok := Find(Build(Input{}), TileLayerID)
	require.True(t, ok)
	assert.Equal(t, TileLayerID, l.Props().ID)
}
