package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	list "github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"geodeck/internal/basemap"
	"geodeck/internal/geom"
	"geodeck/internal/layers"
	"geodeck/internal/scene"
	"geodeck/internal/tiles"
)

type tileMsg tiles.Descriptor

type styleMsg struct{ style *basemap.Style }

type styleErrMsg struct{ err error }

func waitForTile(s *scene.Scene) tea.Cmd {
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		d, ok := <-s.TileEvents()
		if !ok {
			return nil
		}
		return tileMsg(d)
	}
}

func waitForStyle(w *basemap.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case s := <-w.Styles():
			return styleMsg{s}
		case err := <-w.Errors():
			return styleErrMsg{err}
		}
	}
}

const (
	sidebarWidth = 28
	headerHeight = 1
	footerHeight = 2
)

type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// mapRect is the map area in terminal cells. View lays out to match.
func (m Model) mapRect() rect {
	side := 0
	if m.showSidebar {
		side = sidebarWidth + 1
	}
	return rect{
		x: side,
		y: headerHeight,
		w: max(10, m.width-side),
		h: max(4, m.height-headerHeight-footerHeight),
	}
}

// resize fits the surface and the controller to the map area.
func (m *Model) resize() {
	r := m.mapRect()
	sx, sy := m.mode.scale()
	m.surfW, m.surfH = r.w*sx, r.h*sy
	if err := m.scene.Resize(m.surfW, m.surfH); err != nil {
		m.status = "resize: " + err.Error()
	}
	m.ctl.SetSize(m.surfW, m.surfH)
	if m.showSidebar {
		m.l.SetSize(sidebarWidth-2, r.h-2)
	}
}

// surfacePoint maps a terminal cell to the surface pixel at its center.
func (m Model) surfacePoint(cx, cy int) (float64, float64) {
	r := m.mapRect()
	sx, sy := m.mode.scale()
	return float64((cx-r.x)*sx) + float64(sx)/2, float64((cy-r.y)*sy) + float64(sy)/2
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tileMsg:
		if msg.Err != nil && !errors.Is(msg.Err, tiles.ErrNoTile) {
			m.status = fmt.Sprintf("tile %s: %v", tiles.Key(msg.ID), msg.Err)
		}
		return m, waitForTile(m.scene)

	case styleMsg:
		if err := m.scene.SetStyle(msg.style); err != nil {
			m.status = "style: " + err.Error()
		} else {
			m.status = "style reloaded: " + msg.style.Name
		}
		if m.showLayers {
			m.refreshLayers()
		}
		return m, waitForStyle(m.watcher)

	case styleErrMsg:
		m.status = "style: " + msg.err.Error()
		return m, waitForStyle(m.watcher)

	case tea.KeyMsg:
		// the file filter owns the keyboard while it is open
		if m.showSidebar && m.l.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.l, cmd = m.l.Update(msg)
			return m, cmd
		}
		if cmd, done := m.handleKey(msg); done {
			return m, cmd
		}

	case tea.MouseMsg:
		m.handleMouse(msg)
	}

	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey applies a key binding. done means the key was consumed.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	k := m.keys
	stepX, stepY := float64(m.surfW)/8, float64(m.surfH)/8

	switch {
	case key.Matches(msg, k.Quit):
		return tea.Quit, true
	case key.Matches(msg, k.Layers):
		m.showLayers = !m.showLayers
		if m.showLayers {
			m.refreshLayers()
		}
		return nil, true
	case m.showLayers:
		if msg.String() == "esc" {
			m.showLayers = false
			return nil, true
		}
		var cmd tea.Cmd
		m.tbl, cmd = m.tbl.Update(msg)
		return cmd, true
	case key.Matches(msg, k.Sidebar):
		m.showSidebar = !m.showSidebar
		if m.showSidebar {
			m.refreshDir()
		}
		m.resize()
		return nil, true
	case m.showSidebar && key.Matches(msg, k.Open):
		if it, ok := m.l.SelectedItem().(fileItem); ok {
			m.loadPath(it.path)
		}
		return nil, true
	case m.showSidebar && (key.Matches(msg, k.Up) || key.Matches(msg, k.Down)):
		// list navigation
		return nil, false
	case key.Matches(msg, k.Up):
		m.ctl.Pan(0, stepY)
	case key.Matches(msg, k.Down):
		m.ctl.Pan(0, -stepY)
	case key.Matches(msg, k.Left):
		m.ctl.Pan(stepX, 0)
	case key.Matches(msg, k.Right):
		m.ctl.Pan(-stepX, 0)
	case key.Matches(msg, k.ZoomIn):
		m.ctl.ZoomBy(0.5)
	case key.Matches(msg, k.ZoomOut):
		m.ctl.ZoomBy(-0.5)
	case key.Matches(msg, k.RotateLeft):
		m.ctl.Rotate(-15, 0)
	case key.Matches(msg, k.RotateRight):
		m.ctl.Rotate(15, 0)
	case key.Matches(msg, k.PitchUp):
		m.ctl.Rotate(0, 10)
	case key.Matches(msg, k.PitchDown):
		m.ctl.Rotate(0, -10)
	case key.Matches(msg, k.North):
		m.ctl.ResetNorth()
	case key.Matches(msg, k.Home):
		m.ctl.Set(m.home)
	case key.Matches(msg, k.Scatter):
		m.toggleLayer(layers.ScatterplotID)
	case key.Matches(msg, k.Tiles):
		m.toggleLayer(layers.TileLayerID)
	case key.Matches(msg, k.Cells):
		if m.mode == halfBlock {
			m.mode = braille
			m.status = "cells: braille"
		} else {
			m.mode = halfBlock
			m.status = "cells: half blocks"
		}
		m.resize()
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) toggleLayer(id string) {
	hidden := !m.scene.Hidden(id)
	m.scene.SetHidden(id, hidden)
	m.status = fmt.Sprintf("%s: visible=%v", id, !hidden)
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	r := m.mapRect()
	if !r.contains(msg.X, msg.Y) && !m.dragging && !m.rotating {
		m.hovering = false
		return
	}
	px, py := m.surfacePoint(msg.X, msg.Y)
	sx, sy := m.mode.scale()

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.ctl.ZoomAround(0.25, px, py)
		case tea.MouseButtonWheelDown:
			m.ctl.ZoomAround(-0.25, px, py)
		case tea.MouseButtonLeft:
			m.dragging = true
		case tea.MouseButtonRight:
			m.rotating = true
		}
	case tea.MouseActionMotion:
		dx, dy := msg.X-m.lastX, msg.Y-m.lastY
		switch {
		case m.dragging:
			m.ctl.Pan(float64(dx*sx), float64(dy*sy))
		case m.rotating:
			m.ctl.Rotate(float64(dx)*3, -float64(dy)*5)
		}
	case tea.MouseActionRelease:
		m.dragging = false
		m.rotating = false
	}
	m.lastX, m.lastY = msg.X, msg.Y

	vp := m.ctl.Viewport()
	m.hovering = true
	m.hoverLon, m.hoverLat = vp.ScreenToLngLat(px, py)
	info, ok := m.scene.Pick(vp, px, py)
	if !ok {
		info = layers.PickInfo{}
	}
	m.scene.SetHover(info)
	m.hoverInfo = describePick(info, ok)
}

func describePick(info layers.PickInfo, ok bool) string {
	if !ok {
		return ""
	}
	switch info.LayerID {
	case layers.TileLayerID:
		s := "tile " + tiles.Key(info.Tile)
		if info.URL != "" {
			s = info.URL
		}
		if d, ok := info.Object.(tiles.Descriptor); ok && d.Err != nil && !errors.Is(d.Err, tiles.ErrNoTile) {
			s += " (failed)"
		}
		return s
	case layers.ScatterplotID:
		if p, ok := info.Object.(geom.Point); ok {
			return fmt.Sprintf("point #%d %.0fm", info.Index, p.Size)
		}
		return fmt.Sprintf("point #%d", info.Index)
	}
	return info.LayerID
}

// logFrameError keeps render failures out of the terminal.
func (m Model) logFrameError(err error) {
	m.logger.Warn("render failed", zap.Error(err))
}
