package tui

import (
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// brailleBuf is a grid of braille cells, each a 2x4 microgrid of dots with
// one dot color and one background color.
type brailleBuf struct {
	w, h int       // in cells
	m    [][]uint8 // per-cell 8-bit mask
	fg   [][]color.NRGBA
	bg   [][]color.NRGBA
}

func newBrailleBuf(w, h int) *brailleBuf {
	b := &brailleBuf{w: w, h: h}
	b.m = make([][]uint8, h)
	b.fg = make([][]color.NRGBA, h)
	b.bg = make([][]color.NRGBA, h)
	for i := range b.m {
		b.m[i] = make([]uint8, w)
		b.fg[i] = make([]color.NRGBA, w)
		b.bg[i] = make([]color.NRGBA, w)
	}
	return b
}

var dotBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// setPixel sets a micro-pixel at micro coords (2x4 per cell)
func (b *brailleBuf) setPixel(mx, my int) {
	if mx < 0 || my < 0 {
		return
	}
	cx, rx := mx/2, mx%2
	cy, ry := my/4, my%4
	if cy >= b.h || cx >= b.w {
		return
	}
	b.m[cy][cx] |= dotBits[rx][ry]
}

// minContrast is the luminance spread below which a cell is drawn as a
// flat background.
const minContrast = 0.06

// brailleFromImage thresholds each cell at its mean luminance: pixels darker than
// the mean become dots, and the two groups give the cell its colors.
func brailleFromImage(img image.Image, cols, rows int) *brailleBuf {
	b := newBrailleBuf(cols, rows)
	origin := img.Bounds().Min
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			var px [2][4]color.NRGBA
			var lum [2][4]float64
			lo, hi, mean := 1.0, 0.0, 0.0
			for rx := 0; rx < 2; rx++ {
				for ry := 0; ry < 4; ry++ {
					c := toNRGBA(img.At(origin.X+cx*2+rx, origin.Y+cy*4+ry))
					px[rx][ry] = c
					l := luminance(c)
					lum[rx][ry] = l
					lo, hi = minf(lo, l), maxf(hi, l)
					mean += l / 8
				}
			}
			var dark, light avg
			for rx := 0; rx < 2; rx++ {
				for ry := 0; ry < 4; ry++ {
					if hi-lo >= minContrast && lum[rx][ry] < mean {
						b.setPixel(cx*2+rx, cy*4+ry)
						dark.add(px[rx][ry])
						continue
					}
					light.add(px[rx][ry])
				}
			}
			b.fg[cy][cx] = dark.color()
			b.bg[cy][cx] = light.color()
		}
	}
	return b
}

func (b *brailleBuf) toLines() []string {
	out := make([]string, b.h)
	for y := 0; y < b.h; y++ {
		var sb strings.Builder
		for x := 0; x < b.w; x++ {
			st := lipgloss.NewStyle().Background(hexColor(b.bg[y][x]))
			mask := b.m[y][x]
			if mask == 0 {
				sb.WriteString(st.Render(" "))
				continue
			}
			sb.WriteString(st.Foreground(hexColor(b.fg[y][x])).Render(string(rune(0x2800 + int(mask)))))
		}
		out[y] = sb.String()
	}
	return out
}

type avg struct {
	r, g, b, n int
}

func (a *avg) add(c color.NRGBA) {
	a.r += int(c.R)
	a.g += int(c.G)
	a.b += int(c.B)
	a.n++
}

func (a avg) color() color.NRGBA {
	if a.n == 0 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: uint8(a.r / a.n), G: uint8(a.g / a.n), B: uint8(a.b / a.n), A: 255}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
