package viewport

import (
	"math"

	"github.com/gogpu/gg"
)

// Limits bounds the camera. Values outside are clamped, never rejected.
type Limits struct {
	MinZoom  float64 `yaml:"min_zoom"`
	MaxZoom  float64 `yaml:"max_zoom"`
	MinPitch float64 `yaml:"min_pitch"`
	MaxPitch float64 `yaml:"max_pitch"`
}

// DefaultLimits matches the zoom range of the OSM raster tile servers.
var DefaultLimits = Limits{MinZoom: 0, MaxZoom: 19, MinPitch: 0, MaxPitch: 60}

// Clamp brings s inside the limits. Zoom never leaves [MinZoom, MaxZoom]
// even when the limits are wider. Longitude wraps into [-180, 180) and
// bearing into (-180, 180].
func (l Limits) Clamp(s ViewState) ViewState {
	s.Longitude = wrapLongitude(s.Longitude)
	s.Latitude = clamp(s.Latitude, -MaxLatitude, MaxLatitude)
	s.Zoom = clamp(clamp(s.Zoom, l.MinZoom, l.MaxZoom), MinZoom, MaxZoom)
	s.Pitch = clamp(s.Pitch, l.MinPitch, l.MaxPitch)
	s.Bearing = normalizeBearing(s.Bearing)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapLongitude(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0
	}
	x := math.Mod(lon+180, 360)
	if x < 0 {
		x += 360
	}
	if x >= 360 {
		x = 0
	}
	return x - 180
}

func normalizeBearing(b float64) float64 {
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return 0
	}
	b = math.Mod(b, 360)
	if b <= -180 {
		b += 360
	}
	if b > 180 {
		b -= 360
	}
	return b
}

// Controller owns the ViewState and applies user interaction to it.
type Controller struct {
	state  ViewState
	limits Limits
	width  int
	height int

	// OnChange is called after every mutation with the clamped state.
	OnChange func(ViewState)
}

func NewController(initial ViewState, limits Limits) *Controller {
	return &Controller{state: limits.Clamp(initial), limits: limits, width: 1, height: 1}
}

func (c *Controller) State() ViewState { return c.state }

func (c *Controller) Limits() Limits { return c.limits }

// SetSize records the surface size used to interpret screen-space gestures.
func (c *Controller) SetSize(width, height int) {
	c.width = max(1, width)
	c.height = max(1, height)
}

// Viewport returns the projection for the current state and size.
func (c *Controller) Viewport() *Viewport {
	return New(c.state, c.width, c.height)
}

func (c *Controller) Set(s ViewState) {
	c.state = c.limits.Clamp(s)
	c.changed()
}

// Pan drags the map content by dx, dy screen pixels.
func (c *Controller) Pan(dx, dy float64) {
	vp := c.Viewport()
	d := vp.Matrix().Invert().TransformVector(gg.Pt(dx, dy))
	wx, wy := LngLatToWorld(c.state.Longitude, c.state.Latitude, vp.WorldSize())
	lon, lat := WorldToLngLat(wx-d.X, wy-d.Y, vp.WorldSize())
	c.state.Longitude, c.state.Latitude = lon, lat
	c.state = c.limits.Clamp(c.state)
	c.changed()
}

// ZoomBy changes zoom around the screen center.
func (c *Controller) ZoomBy(delta float64) {
	c.state.Zoom += delta
	c.state = c.limits.Clamp(c.state)
	c.changed()
}

// ZoomAround changes zoom while keeping the location under (x, y) fixed.
func (c *Controller) ZoomAround(delta, x, y float64) {
	lon, lat := c.Viewport().ScreenToLngLat(x, y)
	c.state.Zoom += delta
	c.state = c.limits.Clamp(c.state)
	sx, sy := c.Viewport().LngLatToScreen(lon, lat)
	c.Pan(x-sx, y-sy)
}

// Rotate adds to bearing and pitch, both in degrees.
func (c *Controller) Rotate(dBearing, dPitch float64) {
	c.state.Bearing += dBearing
	c.state.Pitch += dPitch
	c.state = c.limits.Clamp(c.state)
	c.changed()
}

func (c *Controller) ResetNorth() {
	c.state.Bearing = 0
	c.state.Pitch = 0
	c.state = c.limits.Clamp(c.state)
	c.changed()
}

func (c *Controller) changed() {
	if c.OnChange != nil {
		c.OnChange(c.state)
	}
}
