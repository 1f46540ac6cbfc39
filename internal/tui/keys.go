package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down, Left, Right key.Binding
	ZoomIn, ZoomOut       key.Binding
	RotateLeft            key.Binding
	RotateRight           key.Binding
	PitchUp, PitchDown    key.Binding
	North                 key.Binding
	Home                  key.Binding
	Scatter, Tiles        key.Binding
	Cells                 key.Binding
	Sidebar, Open         key.Binding
	Layers                key.Binding
	Help, Quit            key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "pan up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "pan down")),
		Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "pan left")),
		Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "pan right")),
		ZoomIn:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:     key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		RotateLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "rotate left")),
		RotateRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "rotate right")),
		PitchUp:     key.NewBinding(key.WithKeys("pgup", "}"), key.WithHelp("pgup", "tilt")),
		PitchDown:   key.NewBinding(key.WithKeys("pgdown", "{"), key.WithHelp("pgdn", "untilt")),
		North:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "north up")),
		Home:        key.NewBinding(key.WithKeys("0", "home"), key.WithHelp("0", "initial view")),
		Scatter:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "points")),
		Tiles:       key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "tiles")),
		Cells:       key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "braille")),
		Sidebar:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "files")),
		Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Layers:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "layers")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ZoomIn, k.ZoomOut, k.RotateLeft, k.Layers, k.Sidebar, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.ZoomIn, k.ZoomOut, k.Home},
		{k.RotateLeft, k.RotateRight, k.PitchUp, k.PitchDown, k.North},
		{k.Scatter, k.Tiles, k.Cells, k.Layers},
		{k.Sidebar, k.Open, k.Help, k.Quit},
	}
}
