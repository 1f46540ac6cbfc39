// Package viewport holds the camera state of the map and the Web Mercator
// projection used by both renderers.
package viewport

import (
	"math"

	"github.com/gogpu/gg"
	"github.com/paulmach/orb"
)

const (
	// TileSize is the world size in surface pixels at zoom 0.
	TileSize = 512

	// MaxLatitude is the Web Mercator latitude cutoff.
	MaxLatitude = 85.051129

	// MinZoom and MaxZoom bound every view regardless of Limits.
	MinZoom = 0
	MaxZoom = 19

	earthRadius = 6378137.0
)

// ViewState is the camera: where the map is centered and how it is oriented.
type ViewState struct {
	Longitude float64 `yaml:"longitude"`
	Latitude  float64 `yaml:"latitude"`
	Zoom      float64 `yaml:"zoom"`
	Pitch     float64 `yaml:"pitch"`
	Bearing   float64 `yaml:"bearing"`
}

// Initial is the view the component starts with.
var Initial = ViewState{
	Longitude: -112.1861,
	Latitude:  36.1284,
	Zoom:      12.1,
	Pitch:     0,
	Bearing:   0,
}

// Viewport is a ViewState bound to a surface size for one frame.
type Viewport struct {
	ViewState
	Width  int
	Height int

	worldSize float64
	centerX   float64
	centerY   float64
}

func New(s ViewState, width, height int) *Viewport {
	v := &Viewport{ViewState: s, Width: width, Height: height}
	v.worldSize = WorldSize(s.Zoom)
	v.centerX, v.centerY = LngLatToWorld(s.Longitude, s.Latitude, v.worldSize)
	return v
}

// WorldSize returns the size of the whole Mercator square in pixels at zoom.
func WorldSize(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}

// LngLatToWorld projects lon/lat into world pixels for the given world size.
func LngLatToWorld(lon, lat, worldSize float64) (float64, float64) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	siny := math.Sin(lat * math.Pi / 180)
	x := (lon/360 + 0.5) * worldSize
	y := (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)) * worldSize
	return x, y
}

// WorldToLngLat is the inverse of LngLatToWorld.
func WorldToLngLat(x, y, worldSize float64) (float64, float64) {
	lon := x/worldSize*360 - 180
	n := math.Pi * (1 - 2*y/worldSize)
	lat := math.Atan(math.Sinh(n)) * 180 / math.Pi
	return lon, lat
}

// WorldSize returns the world size of this viewport's zoom.
func (v *Viewport) WorldSize() float64 { return v.worldSize }

// Project maps lon/lat into screen space before bearing and pitch are applied.
// Layers draw in this space with Matrix installed on the surface.
func (v *Viewport) Project(lon, lat float64) (float64, float64) {
	x, y := LngLatToWorld(lon, lat, v.worldSize)
	return x - v.centerX + float64(v.Width)/2, y - v.centerY + float64(v.Height)/2
}

// Unproject is the inverse of Project.
func (v *Viewport) Unproject(x, y float64) (float64, float64) {
	wx := x - float64(v.Width)/2 + v.centerX
	wy := y - float64(v.Height)/2 + v.centerY
	return WorldToLngLat(wx, wy, v.worldSize)
}

// Matrix rotates by bearing and foreshortens by pitch around the screen center.
func (v *Viewport) Matrix() gg.Matrix {
	cx, cy := float64(v.Width)/2, float64(v.Height)/2
	return gg.Translate(cx, cy).
		Multiply(gg.Scale(1, math.Cos(v.Pitch*math.Pi/180))).
		Multiply(gg.Rotate(-v.Bearing * math.Pi / 180)).
		Multiply(gg.Translate(-cx, -cy))
}

// LngLatToScreen projects lon/lat to final screen pixels.
func (v *Viewport) LngLatToScreen(lon, lat float64) (float64, float64) {
	x, y := v.Project(lon, lat)
	p := v.Matrix().TransformPoint(gg.Pt(x, y))
	return p.X, p.Y
}

// ScreenToLngLat maps a final screen pixel back to lon/lat.
func (v *Viewport) ScreenToLngLat(sx, sy float64) (float64, float64) {
	p := v.Matrix().Invert().TransformPoint(gg.Pt(sx, sy))
	return v.Unproject(p.X, p.Y)
}

// ScreenToLocal maps a final screen pixel into the unrotated drawing space.
func (v *Viewport) ScreenToLocal(sx, sy float64) (float64, float64) {
	p := v.Matrix().Invert().TransformPoint(gg.Pt(sx, sy))
	return p.X, p.Y
}

// Bounds returns the lon/lat box covering every visible screen pixel.
func (v *Viewport) Bounds() orb.Bound {
	w, h := float64(v.Width), float64(v.Height)
	corners := [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}
	var b orb.Bound
	for i, c := range corners {
		lon, lat := v.ScreenToLngLat(c[0], c[1])
		p := orb.Point{lon, math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))}
		if i == 0 {
			b = orb.Bound{Min: p, Max: p}
			continue
		}
		b = b.Extend(p)
	}
	return b
}

// MetersPerPixel returns the ground resolution at the given latitude.
func (v *Viewport) MetersPerPixel(lat float64) float64 {
	return 2 * math.Pi * earthRadius * math.Cos(lat*math.Pi/180) / v.worldSize
}
