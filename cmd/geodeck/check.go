package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"geodeck/internal/basemap"
	"geodeck/internal/compositor"
	"geodeck/internal/layers"
	"geodeck/internal/tiles"
)

type checkCmd struct {
	commonFlags
}

func (c *checkCmd) Name() string     { return "check" }
func (c *checkCmd) Synopsis() string { return "verify the config, style and delegation table" }
func (c *checkCmd) Usage() string {
	return "geodeck check [-config <file>] [-style <file>] [-tiles <url>]\n"
}
func (c *checkCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *checkCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	var style *basemap.Style
	if cfg.Basemap.Style != "" {
		style, err = basemap.LoadStyle(cfg.Basemap.Style)
	} else {
		style, err = basemap.DefaultStyle()
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	src, err := tiles.NewSource(cfg.Tiles.URL, cfg.Tiles.SourceOptions())
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if mbt, ok := src.(*tiles.MBTilesSource); ok {
		md, err := mbt.Metadata()
		if err != nil {
			src.Close()
			log.Println(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("mbtiles %q: format %s, zoom %s..%s\n", md["name"], md["format"], md["minzoom"], md["maxzoom"])
	}
	src.Close()

	ids := layers.IDs(layers.Build(layers.Input{}))
	if err := compositor.CheckDelegations(ids, style, cfg.Delegations); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("style %q: %d layers\n", style.Name, len(style.Layers))
	for _, d := range cfg.Delegations {
		fmt.Printf("  %s before %s\n", d.LayerID, d.BeforeID)
	}
	fmt.Println("ok")
	return subcommands.ExitSuccess
}
