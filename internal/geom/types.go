package geom

import "github.com/paulmach/orb"

// Data is a minimal geometry container for rendering
type Data struct {
	Points   []orb.Point
	Lines    []orb.LineString
	Polygons []orb.Polygon // first ring outer, following rings holes
	BBox     orb.Bound

	// PointProps holds the feature properties of each entry in Points.
	PointProps []map[string]any
}

// Empty reports whether no geometry was collected.
func (d Data) Empty() bool {
	return len(d.Points) == 0 && len(d.Lines) == 0 && len(d.Polygons) == 0
}

// Point is a sample for point overlays: a position and a size in meters.
type Point struct {
	Position orb.Point
	Size     float64
}

func (d *Data) extend(b orb.Bound) {
	if d.Empty() {
		d.BBox = b
		return
	}
	d.BBox = d.BBox.Union(b)
}

func boundOf(points []Point) orb.Bound {
	var mp orb.MultiPoint
	for _, p := range points {
		mp = append(mp, p.Position)
	}
	return mp.Bound()
}
