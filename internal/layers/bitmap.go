package layers

import (
	"image"
	"image/color"

	"github.com/gogpu/gg"
	"github.com/paulmach/orb"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"geodeck/internal/viewport"
)

// BitmapLayer stretches an image over a geographic box.
type BitmapLayer struct {
	Base Props

	// Bounds is the [west, south, east, north] box the image covers.
	Bounds orb.Bound
	Image  image.Image
}

func (l *BitmapLayer) Props() Props { return l.Base }

// Draw warps the image through the surface transform. A nil image draws
// nothing.
func (l *BitmapLayer) Draw(dc *gg.Context, vp *viewport.Viewport) error {
	if l.Base.Hidden || l.Image == nil {
		return nil
	}
	src := l.Image.Bounds()
	if src.Empty() {
		return nil
	}
	x0, y0 := vp.Project(l.Bounds.Min.Lon(), l.Bounds.Max.Lat())
	x1, y1 := vp.Project(l.Bounds.Max.Lon(), l.Bounds.Min.Lat())

	place := gg.Translate(x0, y0).
		Multiply(gg.Scale((x1-x0)/float64(src.Dx()), (y1-y0)/float64(src.Dy()))).
		Multiply(gg.Translate(-float64(src.Min.X), -float64(src.Min.Y)))
	m := dc.GetTransform().Multiply(place)

	s2d := f64.Aff3{m.A, m.B, m.C, m.D, m.E, m.F}
	draw.ApproxBiLinear.Transform(Target(dc), s2d, l.Image, src, draw.Over, nil)
	return nil
}

// Pick reports the geographic point under the cursor when it falls inside
// the bitmap.
func (l *BitmapLayer) Pick(vp *viewport.Viewport, x, y float64) (PickInfo, bool) {
	if !l.Base.Pickable || l.Base.Hidden {
		return PickInfo{}, false
	}
	lon, lat := vp.ScreenToLngLat(x, y)
	if !l.Bounds.Contains(orb.Point{lon, lat}) {
		return PickInfo{}, false
	}
	return PickInfo{LayerID: l.Base.ID, Object: l.Image, Lon: lon, Lat: lat}, true
}

// Target exposes the pixels of dc as a draw.Image so x/image/draw can
// composite into the shared surface.
func Target(dc *gg.Context) draw.Image {
	return pixmapImage{dc.ResizeTarget()}
}

type pixmapImage struct {
	*gg.Pixmap
}

func (p pixmapImage) Set(x, y int, c color.Color) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	p.SetPixel(x, y, gg.RGBA{
		R: float64(n.R) / 255,
		G: float64(n.G) / 255,
		B: float64(n.B) / 255,
		A: float64(n.A) / 255,
	})
}
