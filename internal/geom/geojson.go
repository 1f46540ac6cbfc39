package geom

import (
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadGeo reads a GeoJSON file and returns Data (points, lines, polygons)
func LoadGeo(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, err
	}
	return ParseGeoJSON(raw)
}

// ParseGeoJSON accepts a FeatureCollection, a Feature or a bare geometry.
func ParseGeoJSON(raw []byte) (Data, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Data{}, fmt.Errorf("geojson: %w", err)
	}
	var d Data
	switch head.Type {
	case "":
		return Data{}, errors.New("invalid geojson: missing type")
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return Data{}, fmt.Errorf("geojson: %w", err)
		}
		for _, f := range fc.Features {
			d.add(f.Geometry, f.Properties)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return Data{}, fmt.Errorf("geojson: %w", err)
		}
		d.add(f.Geometry, f.Properties)
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return Data{}, fmt.Errorf("geojson: %w", err)
		}
		d.add(g.Geometry(), nil)
	}
	if d.Empty() {
		return Data{}, errors.New("no geometries found")
	}
	return d, nil
}

func (d *Data) add(g orb.Geometry, props map[string]any) {
	if g == nil {
		return
	}
	switch g := g.(type) {
	case orb.Point:
		d.extend(g.Bound())
		d.Points = append(d.Points, g)
		d.PointProps = append(d.PointProps, props)
	case orb.MultiPoint:
		for _, p := range g {
			d.add(p, props)
		}
	case orb.LineString:
		if len(g) < 2 {
			return
		}
		d.extend(g.Bound())
		d.Lines = append(d.Lines, g)
	case orb.MultiLineString:
		for _, ls := range g {
			d.add(ls, props)
		}
	case orb.Ring:
		d.add(orb.Polygon{g}, props)
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) < 3 {
			return
		}
		d.extend(g.Bound())
		d.Polygons = append(d.Polygons, g)
	case orb.MultiPolygon:
		for _, p := range g {
			d.add(p, props)
		}
	case orb.Collection:
		for _, c := range g {
			d.add(c, props)
		}
	}
}

// GeoPoints extracts point samples from GeoJSON, reading the size from a
// "size" or "radius" property.
func GeoPoints(d Data) []Point {
	out := make([]Point, 0, len(d.Points))
	for i, p := range d.Points {
		var props geojson.Properties
		if i < len(d.PointProps) {
			props = d.PointProps[i]
		}
		size := props.MustFloat64("size", props.MustFloat64("radius", 0))
		out = append(out, Point{Position: p, Size: size})
	}
	return out
}
