// Package layers holds the declarative layer set drawn by the overlay
// renderer. Layers are plain values rebuilt for every render pass.
package layers

import (
	"errors"
	"fmt"

	"github.com/eak1mov/go-libtiles/tile"
	"github.com/gogpu/gg"

	"geodeck/internal/viewport"
)

// Identities shared with the basemap delegation table.
const (
	ScatterplotID = "my-scatterplot"
	TileLayerID   = "tile-layer"
)

var (
	ErrEmptyID     = errors.New("layers: empty layer id")
	ErrDuplicateID = errors.New("layers: duplicate layer id")
)

// Color is 8-bit RGBA.
type Color [4]uint8

func RGB(r, g, b uint8) Color { return Color{r, g, b, 255} }

func (c Color) RGBA() gg.RGBA {
	return gg.RGBA{
		R: float64(c[0]) / 255,
		G: float64(c[1]) / 255,
		B: float64(c[2]) / 255,
		A: float64(c[3]) / 255,
	}
}

// Props are the attributes every layer carries.
type Props struct {
	ID             string
	Hidden         bool
	Pickable       bool
	AutoHighlight  bool
	HighlightColor Color
	// Hover is the last pick result. A layer highlights the hovered object
	// when AutoHighlight is set and Hover names this layer.
	Hover PickInfo
}

func (p Props) hovered() bool {
	return p.AutoHighlight && p.Hover.LayerID != "" && p.Hover.LayerID == p.ID
}

// PickInfo describes the object under the cursor.
type PickInfo struct {
	LayerID string
	Index   int
	Tile    tile.ID
	// URL is where a picked tile is fetched from, when the layer has a
	// template.
	URL    string
	Object any
	Lon    float64
	Lat    float64
}

// Layer is one entry of the layer set. Draw is called with the viewport
// matrix already installed on dc.
type Layer interface {
	Props() Props
	Draw(dc *gg.Context, vp *viewport.Viewport) error
	Pick(vp *viewport.Viewport, x, y float64) (PickInfo, bool)
}

// Validate checks that layer identities are present and unique.
func Validate(set []Layer) error {
	seen := make(map[string]bool, len(set))
	for i, l := range set {
		id := l.Props().ID
		if id == "" {
			return fmt.Errorf("%w at index %d", ErrEmptyID, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		seen[id] = true
	}
	return nil
}

// IDs lists the identities of set in order.
func IDs(set []Layer) []string {
	ids := make([]string, len(set))
	for i, l := range set {
		ids[i] = l.Props().ID
	}
	return ids
}

// Find returns the layer with the given id.
func Find(set []Layer, id string) (Layer, bool) {
	for _, l := range set {
		if l.Props().ID == id {
			return l, true
		}
	}
	return nil, false
}
