package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/google/subcommands"

	"geodeck/internal/logging"
	"geodeck/internal/scene"
	"geodeck/internal/viewport"
)

type renderCmd struct {
	commonFlags
	output  string
	width   int
	height  int
	timeout time.Duration
}

func (c *renderCmd) Name() string     { return "render" }
func (c *renderCmd) Synopsis() string { return "render one frame to a PNG file" }
func (c *renderCmd) Usage() string {
	return "geodeck render -o <file.png> [-width <px>] [-height <px>] [-config <file>] [-at <hash>]\n"
}
func (c *renderCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.output, "o", "", "Output PNG path")
	f.IntVar(&c.width, "width", 1024, "Frame width in pixels")
	f.IntVar(&c.height, "height", 768, "Frame height in pixels")
	f.DurationVar(&c.timeout, "timeout", time.Minute, "Time allowed for fetching tiles")
}

func (c *renderCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.output == "" || c.width <= 0 || c.height <= 0 {
		log.Print(c.Usage())
		return subcommands.ExitUsageError
	}
	cfg, err := c.load()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()

	s, err := scene.New(scene.Options{Config: cfg, Width: c.width, Height: c.height, Logger: logger})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	vp := viewport.New(cfg.View, c.width, c.height)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := s.Prefetch(ctx, vp); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if err := s.Render(vp); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	f, err := os.Create(c.output)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if err := png.Encode(f, s.Surface()); err != nil {
		f.Close()
		log.Println(err)
		return subcommands.ExitFailure
	}
	if err := f.Close(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s  %dx%d  #%s\n", c.output, c.width, c.height, cfg.View.Hash())
	return subcommands.ExitSuccess
}
