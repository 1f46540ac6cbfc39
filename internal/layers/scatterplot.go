package layers

import (
	"math"

	"github.com/gogpu/gg"
	"github.com/paulmach/orb"

	"geodeck/internal/viewport"
)

// Circle is one drawn scatterplot point.
type Circle struct {
	Index    int
	Position orb.Point
	// Radius is in meters; PixelRadius is the same radius on screen.
	Radius      float64
	PixelRadius float64
	X, Y        float64
	Color       Color
}

// ScatterplotLayer draws one filled circle per data item, sized in meters.
type ScatterplotLayer[T any] struct {
	Base Props

	Data        []T
	GetPosition func(T) orb.Point
	GetRadius   func(T) float64
	FillColor   Color
	// RadiusMinPixels keeps tiny circles visible at low zoom.
	RadiusMinPixels float64
}

func (l *ScatterplotLayer[T]) Props() Props { return l.Base }

// Primitives maps every datum to a circle in the unrotated drawing space.
func (l *ScatterplotLayer[T]) Primitives(vp *viewport.Viewport) []Circle {
	out := make([]Circle, 0, len(l.Data))
	for i, d := range l.Data {
		pos := l.GetPosition(d)
		r := 1.0
		if l.GetRadius != nil {
			r = l.GetRadius(d)
		}
		x, y := vp.Project(pos.Lon(), pos.Lat())
		px := r / vp.MetersPerPixel(pos.Lat())
		if math.IsNaN(px) || math.IsInf(px, 0) {
			px = 0
		}
		out = append(out, Circle{
			Index:       i,
			Position:    pos,
			Radius:      r,
			PixelRadius: math.Max(px, l.RadiusMinPixels),
			X:           x,
			Y:           y,
			Color:       l.FillColor,
		})
	}
	return out
}

func (l *ScatterplotLayer[T]) Draw(dc *gg.Context, vp *viewport.Viewport) error {
	if l.Base.Hidden || len(l.Data) == 0 {
		return nil
	}
	circles := l.Primitives(vp)
	for _, c := range circles {
		dc.DrawCircle(c.X, c.Y, c.PixelRadius)
	}
	dc.SetColor(l.FillColor.RGBA().Color())
	if err := dc.Fill(); err != nil {
		return err
	}

	if l.Base.hovered() && l.Base.Hover.Index < len(circles) {
		c := circles[l.Base.Hover.Index]
		dc.DrawCircle(c.X, c.Y, c.PixelRadius)
		dc.SetColor(l.Base.HighlightColor.RGBA().Color())
		return dc.Fill()
	}
	return nil
}

// Pick returns the topmost circle under the screen point. Circles smaller
// than a couple of pixels are hit within that tolerance.
func (l *ScatterplotLayer[T]) Pick(vp *viewport.Viewport, x, y float64) (PickInfo, bool) {
	if !l.Base.Pickable || l.Base.Hidden {
		return PickInfo{}, false
	}
	lx, ly := vp.ScreenToLocal(x, y)
	circles := l.Primitives(vp)
	for i := len(circles) - 1; i >= 0; i-- {
		c := circles[i]
		if math.Hypot(lx-c.X, ly-c.Y) <= math.Max(c.PixelRadius, 2) {
			lon, lat := vp.ScreenToLngLat(x, y)
			return PickInfo{
				LayerID: l.Base.ID,
				Index:   c.Index,
				Object:  l.Data[c.Index],
				Lon:     lon,
				Lat:     lat,
			}, true
		}
	}
	return PickInfo{}, false
}
