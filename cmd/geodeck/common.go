package main

import (
	"flag"

	"geodeck/internal/config"
	"geodeck/internal/viewport"
)

// commonFlags are shared by every command that builds a map.
type commonFlags struct {
	configPath string
	at         string
	style      string
	tiles      string
}

func (c *commonFlags) register(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "YAML config file")
	f.StringVar(&c.at, "at", "", "Initial view as zoom/lat/lon[/bearing[/pitch]]")
	f.StringVar(&c.style, "style", "", "Basemap style document (overrides config)")
	f.StringVar(&c.tiles, "tiles", "", "Tile source URL template, mbtiles:// or file:// (overrides config)")
}

// load reads the config file, if any, and applies flag overrides.
func (c *commonFlags) load() (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return cfg, err
		}
	}
	if c.style != "" {
		cfg.Basemap.Style = c.style
	}
	if c.tiles != "" {
		cfg.Tiles.URL = c.tiles
	}
	if c.at != "" {
		v, err := viewport.ParseHash(c.at)
		if err != nil {
			return cfg, err
		}
		cfg.View = v
	}
	return cfg, cfg.Validate()
}
