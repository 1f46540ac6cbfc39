package geom

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// LoadCSV reads a CSV with latitude/longitude columns and returns points.
// Column detection: lat|latitude|y and lon|lng|long|longitude|x, plus an
// optional size|radius column (case-insensitive).
func LoadCSV(path string) ([]Point, orb.Bound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, orb.Bound{}, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) ([]Point, orb.Bound, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, orb.Bound{}, fmt.Errorf("csv: %w", err)
	}
	if len(recs) == 0 {
		return nil, orb.Bound{}, errors.New("empty csv")
	}
	idxLat, idxLon, idxSize := -1, -1, -1
	for i, h := range recs[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "lat", "latitude", "y":
			if idxLat == -1 {
				idxLat = i
			}
		case "lon", "lng", "long", "longitude", "x":
			if idxLon == -1 {
				idxLon = i
			}
		case "size", "radius":
			if idxSize == -1 {
				idxSize = i
			}
		}
	}
	if idxLat == -1 || idxLon == -1 {
		return nil, orb.Bound{}, errors.New("csv: latitude/longitude columns not found")
	}
	var points []Point
	for _, row := range recs[1:] {
		if idxLon >= len(row) || idxLat >= len(row) {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(row[idxLon]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(row[idxLat]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		p := Point{Position: orb.Point{lon, lat}}
		if idxSize >= 0 && idxSize < len(row) {
			p.Size, _ = strconv.ParseFloat(strings.TrimSpace(row[idxSize]), 64)
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, orb.Bound{}, errors.New("csv: no valid points parsed")
	}
	return points, boundOf(points), nil
}
