package tiles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eak1mov/go-libtiles/tile"
)

// DefaultURL is the raster source the tile layer uses unless configured.
const DefaultURL = "https://c.tile.openstreetmap.org/{z}/{x}/{y}.png"

var ErrInvalidTemplate = errors.New("tiles: invalid url template")

// Template is a tile URL with {z}, {x} and {y} placeholders and an optional
// {s} subdomain placeholder.
type Template struct {
	raw        string
	subdomains []string
}

func ParseTemplate(raw string) (Template, error) {
	if strings.TrimSpace(raw) == "" {
		return Template{}, fmt.Errorf("%w: empty", ErrInvalidTemplate)
	}
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(raw, p) {
			return Template{}, fmt.Errorf("%w: placeholder %v not found", ErrInvalidTemplate, p)
		}
	}
	t := Template{raw: raw}
	if strings.Contains(raw, "{s}") {
		t.subdomains = []string{"a", "b", "c"}
	}
	return t, nil
}

// MustParseTemplate is ParseTemplate for constants.
func MustParseTemplate(raw string) Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Template) String() string { return t.raw }

// URL fills the placeholders for id. Subdomains rotate on x+y so that
// neighbouring tiles spread across hosts.
func (t Template) URL(id tile.ID) string {
	r := strings.NewReplacer(
		"{x}", strconv.FormatUint(uint64(id.X), 10),
		"{y}", strconv.FormatUint(uint64(id.Y), 10),
		"{z}", strconv.FormatUint(uint64(id.Z), 10),
	)
	out := r.Replace(t.raw)
	if len(t.subdomains) > 0 {
		out = strings.ReplaceAll(out, "{s}", t.subdomains[int(id.X+id.Y)%len(t.subdomains)])
	}
	return out
}
