package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	list "github.com/charmbracelet/bubbles/list"
	"github.com/paulmach/orb"

	"geodeck/internal/geom"
)

type fileItem struct {
	title, desc string
	path        string
}

func (f fileItem) Title() string       { return f.title }
func (f fileItem) Description() string { return f.desc }
func (f fileItem) FilterValue() string { return f.title }

var pointExts = map[string]bool{".geojson": true, ".json": true, ".csv": true, ".kml": true, ".wkt": true}

func (m *Model) refreshDir() {
	entries, err := os.ReadDir(m.cwd)
	if err != nil {
		m.status = "read dir error: " + err.Error()
		return
	}
	var items []list.Item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if pointExts[ext] {
			items = append(items, fileItem{title: name, desc: ext, path: filepath.Join(m.cwd, name)})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].(fileItem).Title() < items[j].(fileItem).Title() })
	m.items = items
	m.l.SetItems(items)
	if len(items) == 0 {
		m.status = "no point files in current directory"
	}
}

// loadPath replaces the scatterplot data and centers the view on it.
func (m *Model) loadPath(p string) {
	pts, err := geom.LoadPoints(p)
	if err != nil {
		m.status = "load error: " + err.Error()
		return
	}
	m.scene.SetPoints(pts)

	var mp orb.MultiPoint
	for _, pt := range pts {
		mp = append(mp, pt.Position)
	}
	c := mp.Bound().Center()
	s := m.ctl.State()
	s.Longitude, s.Latitude = c.Lon(), c.Lat()
	m.ctl.Set(s)
	m.status = "loaded: " + filepath.Base(p) + fmt.Sprintf("  points=%d", len(pts))
}
