package scene

import (
	"geodeck/internal/layers"
)

// LayerRow is one line of the paint order as the compositor sees it.
type LayerRow struct {
	ID      string
	Kind    string
	Painter string
	Visible bool
}

// LayerRows lists the full paint order: the basemap's layers with delegated
// overlay layers in place, then overlay layers drawn on top.
func (s *Scene) LayerRows() []LayerRow {
	var rows []LayerRow
	seen := make(map[string]bool)
	for _, id := range s.bm.LayerIDs() {
		seen[id] = true
		if l, ok := layers.Find(s.ov.Layers(), id); ok && s.comp.Registered(id) {
			rows = append(rows, LayerRow{ID: id, Kind: kind(l), Painter: "delegated", Visible: !l.Props().Hidden})
			continue
		}
		row := LayerRow{ID: id, Kind: "custom", Painter: "basemap", Visible: true}
		for _, sl := range s.bm.Style().Layers {
			if sl.ID == id {
				row.Kind = sl.Type
				row.Visible = sl.Layout.Visibility != "none"
			}
		}
		rows = append(rows, row)
	}
	for _, l := range s.ov.Layers() {
		if id := l.Props().ID; !seen[id] {
			rows = append(rows, LayerRow{ID: id, Kind: kind(l), Painter: "overlay", Visible: !l.Props().Hidden})
		}
	}
	return rows
}

func kind(l layers.Layer) string {
	switch l.(type) {
	case *layers.TileLayer:
		return "tile"
	case *layers.BitmapLayer:
		return "bitmap"
	}
	return "scatterplot"
}
