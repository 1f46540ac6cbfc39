package tui

import (
	"strconv"

	table "github.com/charmbracelet/bubbles/table"
)

var layerColumns = []table.Column{
	{Title: "#", Width: 3},
	{Title: "layer", Width: 18},
	{Title: "kind", Width: 11},
	{Title: "painter", Width: 9},
	{Title: "on", Width: 3},
}

// refreshLayers fills the table with the paint order, bottom first.
func (m *Model) refreshLayers() {
	rows := m.scene.LayerRows()
	trows := make([]table.Row, 0, len(rows))
	for i, r := range rows {
		on := "no"
		if r.Visible {
			on = "yes"
		}
		trows = append(trows, table.Row{strconv.Itoa(i + 1), r.ID, r.Kind, r.Painter, on})
	}
	m.tbl.SetRows(trows)
}
