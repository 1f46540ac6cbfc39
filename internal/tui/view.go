package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	r := m.mapRect()
	contentWidth := max(10, m.width)

	// Header
	header := titleStyle.Render(" geodeck ─ " + m.scene.Style().Name + " ")
	header = lipgloss.NewStyle().Width(contentWidth).Render(header)

	var mapView string
	if m.showLayers {
		tw := 0
		for _, c := range m.tbl.Columns() {
			tw += c.Width + 2
		}
		m.tbl.SetWidth(tw)
		m.tbl.SetHeight(min(r.h-2, len(m.tbl.Rows())+1))
		box := boxStyle.Width(min(r.w, tw+4)).Render(m.tbl.View())
		mapView = lipgloss.Place(r.w, r.h, lipgloss.Center, lipgloss.Center, box)
	} else {
		mapView = m.renderMap(r.w, r.h)
	}

	body := mapView
	if m.showSidebar {
		sidebar := lipgloss.NewStyle().Width(sidebarWidth).Height(r.h).Render(m.l.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	}

	// Footer: status and hover on the left, view hash on the right
	s := m.ctl.State()
	left := dimStyle.Render(" " + m.status + " ")
	if m.hovering {
		left += dimStyle.Render(fmt.Sprintf(" lon=%.5f lat=%.5f ", m.hoverLon, m.hoverLat))
		if room := contentWidth - lipgloss.Width(left) - 12; m.hoverInfo != "" && room > 2 {
			left += hoverStyle.MaxWidth(room).Render(" " + m.hoverInfo + " ")
		}
	}
	right := dimStyle.Render(fmt.Sprintf(" #%s ", s.Hash()))
	gap := max(0, contentWidth-lipgloss.Width(left)-lipgloss.Width(right))
	statusLine := left + strings.Repeat(" ", gap) + right
	m.help.Width = contentWidth
	footer := lipgloss.JoinVertical(lipgloss.Left, statusLine, m.help.View(m.keys))

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).MaxHeight(m.height).Render(ui)
}
