package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderMap composites a frame for the current view and converts it to
// terminal cells.
func (m Model) renderMap(w, h int) string {
	if err := m.scene.Render(m.ctl.Viewport()); err != nil {
		m.logFrameError(err)
	}
	img := m.scene.Surface()
	if m.mode == braille {
		return strings.Join(brailleFromImage(img, w, h).toLines(), "\n")
	}
	return halfBlocks(img, w, h)
}

// halfBlocks draws two surface rows per terminal row with an upper half
// block: foreground is the top pixel, background the bottom one. Runs of
// identical cells share one styled span.
func halfBlocks(img image.Image, cols, rows int) string {
	b := img.Bounds().Min
	lines := make([]string, rows)
	for y := 0; y < rows; y++ {
		var sb strings.Builder
		var run int
		var top, bot color.NRGBA
		flush := func() {
			if run == 0 {
				return
			}
			st := lipgloss.NewStyle().Foreground(hexColor(top)).Background(hexColor(bot))
			sb.WriteString(st.Render(strings.Repeat("▀", run)))
			run = 0
		}
		for x := 0; x < cols; x++ {
			t := toNRGBA(img.At(b.X+x, b.Y+2*y))
			u := toNRGBA(img.At(b.X+x, b.Y+2*y+1))
			if run > 0 && (t != top || u != bot) {
				flush()
			}
			top, bot = t, u
			run++
		}
		flush()
		lines[y] = sb.String()
	}
	return strings.Join(lines, "\n")
}

// toNRGBA flattens c onto black so that terminal colors are opaque.
func toNRGBA(c color.Color) color.NRGBA {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
}

func hexColor(c color.NRGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// luminance is Rec. 601 luma in [0, 1].
func luminance(c color.NRGBA) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}
