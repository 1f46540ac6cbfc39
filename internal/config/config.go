// Package config loads the geodeck YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"geodeck/internal/compositor"
	"geodeck/internal/logging"
	"geodeck/internal/tiles"
	"geodeck/internal/viewport"
)

var ErrInvalid = errors.New("config: invalid")

type Tiles struct {
	URL         string        `yaml:"url"`
	CacheDir    string        `yaml:"cache_dir"`
	CacheSize   int           `yaml:"cache_size"`
	Concurrency int           `yaml:"concurrency"`
	Retries     uint64        `yaml:"retries"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	MinZoom     int           `yaml:"min_zoom"`
	MaxZoom     int           `yaml:"max_zoom"`
}

type Basemap struct {
	// Style is a style document path. Empty uses the embedded default.
	Style string `yaml:"style"`
	Watch bool   `yaml:"watch"`
	// Background fills the surface before the basemap has loaded.
	Background string `yaml:"background"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Tiles       Tiles                   `yaml:"tiles"`
	Basemap     Basemap                 `yaml:"basemap"`
	Points      string                  `yaml:"points"`
	PickPoints  bool                    `yaml:"pick_points"`
	Delegations []compositor.Delegation `yaml:"delegations"`
	View        viewport.ViewState      `yaml:"view"`
	Limits      viewport.Limits         `yaml:"limits"`
	Log         logging.Config          `yaml:"log"`
	Metrics     Metrics                 `yaml:"metrics"`
}

func Default() Config {
	return Config{
		Tiles: Tiles{
			URL:         tiles.DefaultURL,
			CacheSize:   256,
			Concurrency: 4,
			Retries:     3,
			Timeout:     15 * time.Second,
			MinZoom:     0,
			MaxZoom:     19,
		},
		Basemap:     Basemap{Background: "#000000"},
		Delegations: append([]compositor.Delegation(nil), compositor.DefaultDelegations...),
		View:        viewport.Initial,
		Limits:      viewport.DefaultLimits,
	}
}

// Load reads path over Default and validates the result. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the tile source and ranges, then clamps the view into the
// limits.
func (c *Config) Validate() error {
	var errs []error
	if err := checkTileURL(c.Tiles.URL); err != nil {
		errs = append(errs, err)
	}
	if c.Tiles.MinZoom < viewport.MinZoom || c.Tiles.MaxZoom > viewport.MaxZoom || c.Tiles.MinZoom > c.Tiles.MaxZoom {
		errs = append(errs, fmt.Errorf("%w: tile zoom range %d..%d", ErrInvalid, c.Tiles.MinZoom, c.Tiles.MaxZoom))
	}
	if c.Limits.MinZoom < viewport.MinZoom || c.Limits.MaxZoom > viewport.MaxZoom {
		errs = append(errs, fmt.Errorf("%w: zoom limits %v..%v outside %d..%d", ErrInvalid,
			c.Limits.MinZoom, c.Limits.MaxZoom, viewport.MinZoom, viewport.MaxZoom))
	}
	if c.Limits.MinZoom > c.Limits.MaxZoom || c.Limits.MinPitch > c.Limits.MaxPitch {
		errs = append(errs, fmt.Errorf("%w: limits %+v", ErrInvalid, c.Limits))
	}
	if c.Limits.MinPitch < 0 || c.Limits.MaxPitch > 85 {
		errs = append(errs, fmt.Errorf("%w: pitch limits %v..%v", ErrInvalid, c.Limits.MinPitch, c.Limits.MaxPitch))
	}
	for _, d := range c.Delegations {
		if d.LayerID == "" {
			errs = append(errs, fmt.Errorf("%w: delegation without a layer", ErrInvalid))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	c.View = c.Limits.Clamp(c.View)
	return nil
}

func checkTileURL(raw string) error {
	switch {
	case strings.HasPrefix(raw, "mbtiles://"):
		if strings.TrimPrefix(raw, "mbtiles://") == "" {
			return fmt.Errorf("%w: empty mbtiles path", ErrInvalid)
		}
		return nil
	case strings.HasPrefix(raw, "file://"):
		raw = strings.TrimPrefix(raw, "file://")
	case !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://"):
		return fmt.Errorf("%w: tiles.url: unsupported scheme in %q", ErrInvalid, raw)
	}
	if _, err := tiles.ParseTemplate(raw); err != nil {
		return fmt.Errorf("%w: tiles.url: %v", ErrInvalid, err)
	}
	return nil
}

func (t Tiles) SourceOptions() tiles.SourceOptions {
	return tiles.SourceOptions{UserAgent: t.UserAgent, Retries: t.Retries, Timeout: t.Timeout}
}
