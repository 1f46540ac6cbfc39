package main

import (
	"context"
	"flag"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/subcommands"
	"go.uber.org/zap"

	"geodeck/internal/basemap"
	"geodeck/internal/logging"
	"geodeck/internal/metrics"
	"geodeck/internal/scene"
	"geodeck/internal/tui"
	"geodeck/internal/viewport"
)

type viewCmd struct {
	commonFlags
	watch bool
}

func (c *viewCmd) Name() string     { return "view" }
func (c *viewCmd) Synopsis() string { return "browse the map in the terminal" }
func (c *viewCmd) Usage() string {
	return "geodeck view [-config <file>] [-at <hash>] [-style <file>] [-tiles <url>] [-watch]\n"
}
func (c *viewCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.BoolVar(&c.watch, "watch", false, "Reload the style file when it changes")
}

func (c *viewCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, m, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	s, err := scene.New(scene.Options{Config: cfg, Width: 80, Height: 48, Logger: logger, Metrics: m})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	var w *basemap.Watcher
	if (c.watch || cfg.Basemap.Watch) && cfg.Basemap.Style != "" {
		if w, err = basemap.Watch(cfg.Basemap.Style, logger); err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		defer w.Close()
	}

	model := tui.New(tui.Options{
		Scene:      s,
		Controller: viewport.NewController(cfg.View, cfg.Limits),
		Watcher:    w,
		Logger:     logger,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion()).Run(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
