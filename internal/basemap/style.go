package basemap

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"geodeck/internal/geom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed styles
var embedded embed.FS

// DefaultStyleName is the embedded style used when none is configured.
const DefaultStyleName = "default.json"

var ErrInvalidStyle = errors.New("basemap: invalid style")

// Layer types understood by the renderer.
const (
	TypeBackground = "background"
	TypeFill       = "fill"
	TypeLine       = "line"
	TypeCircle     = "circle"
	TypeGraticule  = "graticule"
)

// Style is a basemap style document.
type Style struct {
	Version int                `json:"version"`
	Name    string             `json:"name"`
	Sources map[string]*Source `json:"sources"`
	Layers  []*StyleLayer      `json:"layers"`
}

// Source is a geojson source. Data is either an inline GeoJSON object or a
// path relative to the style file.
type Source struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`

	geo geom.Data
}

// Geo returns the decoded source data.
func (s *Source) Geo() geom.Data { return s.geo }

type StyleLayer struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Source  string  `json:"source,omitempty"`
	MinZoom float64 `json:"minzoom,omitempty"`
	MaxZoom float64 `json:"maxzoom,omitempty"`
	Layout  Layout  `json:"layout"`
	Paint   Paint   `json:"paint"`
}

type Layout struct {
	Visibility string `json:"visibility,omitempty"`
}

type Paint struct {
	BackgroundColor string   `json:"background-color,omitempty"`
	FillColor       string   `json:"fill-color,omitempty"`
	FillOpacity     *float64 `json:"fill-opacity,omitempty"`
	LineColor       string   `json:"line-color,omitempty"`
	LineWidth       float64  `json:"line-width,omitempty"`
	LineOpacity     *float64 `json:"line-opacity,omitempty"`
	CircleColor     string   `json:"circle-color,omitempty"`
	CircleRadius    float64  `json:"circle-radius,omitempty"`
	CircleOpacity   *float64 `json:"circle-opacity,omitempty"`
}

// visibleAt applies the layer's zoom range and visibility.
func (l *StyleLayer) visibleAt(zoom float64) bool {
	if l.Layout.Visibility == "none" {
		return false
	}
	if zoom < l.MinZoom {
		return false
	}
	return l.MaxZoom == 0 || zoom < l.MaxZoom
}

// DefaultStyle loads the embedded style.
func DefaultStyle() (*Style, error) {
	dir, err := fs.Sub(embedded, "styles")
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(dir, DefaultStyleName)
	if err != nil {
		return nil, err
	}
	return ParseStyle(data, dir)
}

// LoadStyle reads a style file; its sources resolve next to it.
func LoadStyle(path string) (*Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseStyle(data, os.DirFS(filepath.Dir(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseStyle decodes and validates a style, resolving source data from dir.
func ParseStyle(data []byte, dir fs.FS) (*Style, error) {
	var s Style
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStyle, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	for name, src := range s.Sources {
		geo, err := src.load(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: source %q: %w", ErrInvalidStyle, name, err)
		}
		src.geo = geo
	}
	return &s, nil
}

func (src *Source) load(dir fs.FS) (geom.Data, error) {
	raw := bytes.TrimSpace(src.Data)
	if len(raw) > 0 && raw[0] == '"' {
		var path string
		if err := json.Unmarshal(raw, &path); err != nil {
			return geom.Data{}, err
		}
		if dir == nil {
			return geom.Data{}, fmt.Errorf("no directory to resolve %q", path)
		}
		b, err := fs.ReadFile(dir, path)
		if err != nil {
			return geom.Data{}, err
		}
		raw = b
	}
	return geom.ParseGeoJSON(raw)
}

// Validate checks version, layer ids, types and source references.
func (s *Style) Validate() error {
	if s.Version != 8 {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidStyle, s.Version)
	}
	for name, src := range s.Sources {
		if src == nil || src.Type != "geojson" {
			return fmt.Errorf("%w: source %q: only geojson sources are supported", ErrInvalidStyle, name)
		}
	}
	seen := make(map[string]bool, len(s.Layers))
	for i, l := range s.Layers {
		if l == nil || l.ID == "" {
			return fmt.Errorf("%w: layer %d has no id", ErrInvalidStyle, i)
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: duplicate layer %q", ErrInvalidStyle, l.ID)
		}
		seen[l.ID] = true

		switch l.Type {
		case TypeBackground, TypeGraticule:
		case TypeFill, TypeLine, TypeCircle:
			if _, ok := s.Sources[l.Source]; !ok {
				return fmt.Errorf("%w: layer %q references unknown source %q", ErrInvalidStyle, l.ID, l.Source)
			}
		default:
			return fmt.Errorf("%w: layer %q has unknown type %q", ErrInvalidStyle, l.ID, l.Type)
		}
	}
	return nil
}

// HasLayer reports whether the style defines a layer with id.
func (s *Style) HasLayer(id string) bool {
	for _, l := range s.Layers {
		if l.ID == id {
			return true
		}
	}
	return false
}

// LayerIDs lists the style's layer ids in draw order.
func (s *Style) LayerIDs() []string {
	ids := make([]string, len(s.Layers))
	for i, l := range s.Layers {
		ids[i] = l.ID
	}
	return ids
}
