package tui

import (
	"os"

	help "github.com/charmbracelet/bubbles/help"
	list "github.com/charmbracelet/bubbles/list"
	table "github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"geodeck/internal/basemap"
	"geodeck/internal/scene"
	"geodeck/internal/viewport"
)

// cell modes: how many surface pixels one terminal cell covers.
type cellMode int

const (
	halfBlock cellMode = iota // 1x2, two colors per cell
	braille                   // 2x4, one color per cell
)

func (c cellMode) scale() (int, int) {
	if c == braille {
		return 2, 4
	}
	return 1, 2
}

type Options struct {
	Scene      *scene.Scene
	Controller *viewport.Controller
	// Watcher, when set, delivers edited styles.
	Watcher *basemap.Watcher
	Logger  *zap.Logger
}

type Model struct {
	width  int
	height int

	scene   *scene.Scene
	ctl     *viewport.Controller
	home    viewport.ViewState
	watcher *basemap.Watcher
	logger  *zap.Logger

	keys keyMap
	help help.Model

	mode        cellMode
	showSidebar bool
	showLayers  bool

	status string

	// point file explorer
	cwd   string
	l     list.Model
	items []list.Item

	// layer table
	tbl table.Model

	// mouse state, in terminal cells
	dragging  bool
	rotating  bool
	lastX     int
	lastY     int
	hovering  bool
	hoverLon  float64
	hoverLat  float64
	hoverInfo string

	// surface size backing the last frame
	surfW int
	surfH int
}

func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := Model{
		scene:   opts.Scene,
		ctl:     opts.Controller,
		home:    opts.Controller.State(),
		watcher: opts.Watcher,
		logger:  opts.Logger.Named("tui"),
		keys:    defaultKeys(),
		help:    help.New(),
		status:  "geodeck ready",
	}
	m.cwd, _ = os.Getwd()
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	m.l = list.New(nil, d, 0, 0)
	m.l.Title = "Points"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(true)
	m.tbl = table.New(table.WithColumns(layerColumns), table.WithFocused(true), table.WithHeight(12))
	m.refreshDir()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForTile(m.scene), waitForStyle(m.watcher), tea.SetWindowTitle("geodeck"))
}
