package geom

import (
	"encoding/xml"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

type kmlDoc struct {
	Placemarks []struct {
		Point *struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"Point"`
	} `xml:"Document>Placemark"`
	Loose []struct {
		Point *struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"Point"`
	} `xml:"Placemark"`
}

// LoadKML extracts Placemark points from a KML file. KML coordinates are
// "lon,lat[,alt]"; altitude is ignored and sizes are left at zero.
func LoadKML(path string) ([]Point, orb.Bound, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, orb.Bound{}, err
	}
	var doc kmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, orb.Bound{}, err
	}
	var coords []string
	for _, pm := range doc.Placemarks {
		if pm.Point != nil {
			coords = append(coords, strings.Fields(pm.Point.Coordinates)...)
		}
	}
	for _, pm := range doc.Loose {
		if pm.Point != nil {
			coords = append(coords, strings.Fields(pm.Point.Coordinates)...)
		}
	}
	var points []Point
	for _, tuple := range coords {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		points = append(points, Point{Position: orb.Point{lon, lat}})
	}
	if len(points) == 0 {
		return nil, orb.Bound{}, errors.New("kml: no points found")
	}
	return points, boundOf(points), nil
}
