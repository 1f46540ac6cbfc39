package geom

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LoadPoints loads point samples from a .csv, .kml, .wkt, .geojson or .json file.
func LoadPoints(path string) ([]Point, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		pts, _, err := LoadCSV(path)
		return pts, err
	case ".kml":
		pts, _, err := LoadKML(path)
		return pts, err
	case ".wkt":
		pts, _, err := LoadWKT(path)
		return pts, err
	case ".geojson", ".json":
		d, err := LoadGeo(path)
		if err != nil {
			return nil, err
		}
		pts := GeoPoints(d)
		if len(pts) == 0 {
			return nil, fmt.Errorf("%s: no point features", filepath.Base(path))
		}
		return pts, nil
	default:
		return nil, fmt.Errorf("unsupported file: %s", ext)
	}
}
