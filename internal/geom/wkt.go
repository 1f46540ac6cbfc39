package geom

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// LoadWKT reads a file of WKT geometries, one per line, and keeps their
// points. POINT, MULTIPOINT and collections of them are accepted.
func LoadWKT(path string) ([]Point, orb.Bound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, orb.Bound{}, err
	}
	defer f.Close()
	return ReadWKT(f)
}

func ReadWKT(r io.Reader) ([]Point, orb.Bound, error) {
	var pts []Point
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := wkt.Unmarshal(line)
		if err != nil {
			return nil, orb.Bound{}, fmt.Errorf("wkt line %d: %w", n, err)
		}
		got, ok := wktPoints(g)
		if !ok {
			return nil, orb.Bound{}, fmt.Errorf("wkt line %d: %s has no points", n, g.GeoJSONType())
		}
		pts = append(pts, got...)
	}
	if err := sc.Err(); err != nil {
		return nil, orb.Bound{}, fmt.Errorf("wkt: %w", err)
	}
	if len(pts) == 0 {
		return nil, orb.Bound{}, fmt.Errorf("wkt: no points")
	}
	return pts, boundOf(pts), nil
}

func wktPoints(g orb.Geometry) ([]Point, bool) {
	switch g := g.(type) {
	case orb.Point:
		return []Point{{Position: g}}, true
	case orb.MultiPoint:
		out := make([]Point, len(g))
		for i, p := range g {
			out[i] = Point{Position: p}
		}
		return out, len(out) > 0
	case orb.Collection:
		var out []Point
		for _, c := range g {
			pts, ok := wktPoints(c)
			if !ok {
				return nil, false
			}
			out = append(out, pts...)
		}
		return out, len(out) > 0
	}
	return nil, false
}
