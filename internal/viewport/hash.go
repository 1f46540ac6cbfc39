package viewport

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidHash = errors.New("viewport: invalid location hash")

// Hash encodes the view as "zoom/lat/lon[/bearing[/pitch]]", the form map
// pages keep in their URL fragment. Coordinate precision grows with zoom.
func (s ViewState) Hash() string {
	precision := int(math.Ceil((s.Zoom*math.Ln2 + math.Log(512/360.0/0.5)) / math.Ln10))
	precision = max(0, precision)
	m := math.Pow(10, float64(precision))
	parts := []string{
		formatNum(math.Round(s.Zoom*100) / 100),
		formatNum(math.Round(s.Latitude*m) / m),
		formatNum(math.Round(s.Longitude*m) / m),
	}
	if s.Bearing != 0 || s.Pitch != 0 {
		parts = append(parts, formatNum(math.Round(s.Bearing*10)/10))
	}
	if s.Pitch != 0 {
		parts = append(parts, formatNum(math.Round(s.Pitch)))
	}
	return strings.Join(parts, "/")
}

func formatNum(v float64) string {
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseHash decodes a Hash string, with or without the leading '#'.
// Missing bearing and pitch default to zero.
func ParseHash(hash string) (ViewState, error) {
	hash = strings.TrimPrefix(strings.TrimSpace(hash), "#")
	parts := strings.Split(hash, "/")
	if len(parts) < 3 || len(parts) > 5 {
		return ViewState{}, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	vals := make([]float64, 5)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return ViewState{}, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
		}
		vals[i] = v
	}
	return ViewState{
		Zoom:      vals[0],
		Latitude:  vals[1],
		Longitude: vals[2],
		Bearing:   vals[3],
		Pitch:     vals[4],
	}, nil
}
