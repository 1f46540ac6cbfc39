package layers

import (
	"errors"
	"fmt"
	"math"

	"github.com/eak1mov/go-libtiles/tile"
	"github.com/gogpu/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"geodeck/internal/tiles"
	"geodeck/internal/viewport"
)

// TileProvider hands out tile descriptors without blocking. A descriptor
// that has not settled yet simply has no image.
type TileProvider interface {
	Tile(id tile.ID) (tiles.Descriptor, bool)
}

// TileProps is what RenderSubLayers receives for each visible tile.
type TileProps struct {
	ID   string
	Tile tiles.Descriptor
	Base Props
}

// TileLayer draws the raster tiles covering the view at z = round(zoom).
type TileLayer struct {
	Base Props

	// Template addresses the tiles; it may be zero for local sources.
	Template        tiles.Template
	MinZoom         int
	MaxZoom         int
	Tiles           TileProvider
	RenderSubLayers func(TileProps) Layer
}

func (l *TileLayer) Props() Props { return l.Base }

// DefaultRenderSubLayers wraps the tile image into a bitmap over the tile's
// bounds. The image may be nil.
func DefaultRenderSubLayers(p TileProps) Layer {
	return &BitmapLayer{
		Base:   p.Base,
		Bounds: p.Tile.Bounds,
		Image:  p.Tile.Image,
	}
}

// Zoom returns the tile zoom for vp and whether it is inside the layer's
// range.
func (l *TileLayer) Zoom(vp *viewport.Viewport) (uint32, bool) {
	z := math.Round(vp.Zoom)
	if math.IsNaN(z) || z < float64(l.MinZoom) || z > float64(l.MaxZoom) || z < 0 {
		return 0, false
	}
	return uint32(z), true
}

// Visible lists the tiles covering vp. Outside the zoom range there are none.
func (l *TileLayer) Visible(vp *viewport.Viewport) []tile.ID {
	z, ok := l.Zoom(vp)
	if !ok {
		return nil
	}
	return tiles.Covering(vp.Bounds(), z)
}

// SubLayers renders every visible tile into its own layer.
func (l *TileLayer) SubLayers(vp *viewport.Viewport) []Layer {
	render := l.RenderSubLayers
	if render == nil {
		render = DefaultRenderSubLayers
	}
	ids := l.Visible(vp)
	out := make([]Layer, 0, len(ids))
	for _, id := range ids {
		d := tiles.NewDescriptor(id)
		if l.Tiles != nil {
			d, _ = l.Tiles.Tile(id)
		}
		props := l.Base
		props.ID = fmt.Sprintf("%s-%s", l.Base.ID, tiles.Key(id))
		if sub := render(TileProps{ID: props.ID, Tile: d, Base: props}); sub != nil {
			out = append(out, sub)
		}
	}
	return out
}

func (l *TileLayer) Draw(dc *gg.Context, vp *viewport.Viewport) error {
	if l.Base.Hidden {
		return nil
	}
	var errs []error
	for _, sub := range l.SubLayers(vp) {
		if err := sub.Draw(dc, vp); err != nil {
			errs = append(errs, err)
		}
	}
	if l.Base.hovered() {
		if z, ok := l.Zoom(vp); ok && l.Base.Hover.Tile.Z == z {
			errs = append(errs, fillBound(dc, vp, tiles.Bound(l.Base.Hover.Tile), l.Base.HighlightColor))
		}
	}
	return errors.Join(errs...)
}

// Pick reports the tile under the cursor.
func (l *TileLayer) Pick(vp *viewport.Viewport, x, y float64) (PickInfo, bool) {
	if !l.Base.Pickable || l.Base.Hidden {
		return PickInfo{}, false
	}
	z, ok := l.Zoom(vp)
	if !ok {
		return PickInfo{}, false
	}
	lon, lat := vp.ScreenToLngLat(x, y)
	if lon < -180 || lon >= 180 || math.Abs(lat) >= viewport.MaxLatitude {
		return PickInfo{}, false
	}
	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(z))
	id := tile.ID{X: t.X, Y: t.Y, Z: z}
	d := tiles.NewDescriptor(id)
	if l.Tiles != nil {
		d, _ = l.Tiles.Tile(id)
	}
	info := PickInfo{LayerID: l.Base.ID, Tile: id, Object: d, Lon: lon, Lat: lat}
	if l.Template.String() != "" {
		info.URL = l.Template.URL(id)
	}
	return info, true
}

func fillBound(dc *gg.Context, vp *viewport.Viewport, b orb.Bound, c Color) error {
	corners := []orb.Point{
		{b.Min.Lon(), b.Max.Lat()},
		{b.Max.Lon(), b.Max.Lat()},
		{b.Max.Lon(), b.Min.Lat()},
		{b.Min.Lon(), b.Min.Lat()},
	}
	for i, p := range corners {
		x, y := vp.Project(p.Lon(), p.Lat())
		if i == 0 {
			dc.MoveTo(x, y)
			continue
		}
		dc.LineTo(x, y)
	}
	dc.ClosePath()
	dc.SetColor(c.RGBA().Color())
	return dc.Fill()
}
