package layers

import (
	"github.com/paulmach/orb"

	"geodeck/internal/geom"
	"geodeck/internal/tiles"
)

// DefaultPoints is the single marker shown when no point data is loaded.
var DefaultPoints = []geom.Point{
	{Position: orb.Point{-112.152317, 36.0723292}, Size: 100},
}

var (
	ScatterColor   = RGB(0, 0, 255)
	HighlightColor = Color{60, 60, 60, 40}
)

// Input is everything a render pass needs to rebuild the layer set.
type Input struct {
	Points   []geom.Point
	Template tiles.Template
	Tiles    TileProvider
	Hover    PickInfo
	MinZoom  int
	MaxZoom  int
	// Hidden names layers built with Props.Hidden set.
	Hidden map[string]bool
	// PickablePoints makes the scatterplot pickable and highlighted on
	// hover. Only the tile layer is by default.
	PickablePoints bool
}

// Build returns the scatterplot then the tile layer. Nil points fall back
// to DefaultPoints; a zero zoom range becomes 0..19.
func Build(in Input) []Layer {
	points := in.Points
	if points == nil {
		points = DefaultPoints
	}
	maxZoom := in.MaxZoom
	if in.MinZoom == 0 && maxZoom == 0 {
		maxZoom = 19
	}

	scatter := &ScatterplotLayer[geom.Point]{
		Base: Props{
			ID:             ScatterplotID,
			Hidden:         in.Hidden[ScatterplotID],
			Pickable:       in.PickablePoints,
			AutoHighlight:  in.PickablePoints,
			HighlightColor: HighlightColor,
			Hover:          in.Hover,
		},
		Data:            points,
		GetPosition:     func(p geom.Point) orb.Point { return p.Position },
		GetRadius:       func(p geom.Point) float64 { return p.Size },
		FillColor:       ScatterColor,
		RadiusMinPixels: 1,
	}
	tileLayer := &TileLayer{
		Base: Props{
			ID:             TileLayerID,
			Hidden:         in.Hidden[TileLayerID],
			Pickable:       true,
			AutoHighlight:  true,
			HighlightColor: HighlightColor,
			Hover:          in.Hover,
		},
		Template:        in.Template,
		MinZoom:         in.MinZoom,
		MaxZoom:         maxZoom,
		Tiles:           in.Tiles,
		RenderSubLayers: DefaultRenderSubLayers,
	}
	return []Layer{scatter, tileLayer}
}
