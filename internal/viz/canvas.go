package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a grid of braille cells. Each cell also carries the colour of
// the dots drawn into it, blended by how many were drawn.
type Canvas struct {
	Width, Height int
	Grid          [][]rune

	colors [][]colorful.Color
	hits   [][]int
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		colors: make([][]colorful.Color, h),
		hits:   make([][]int, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		c.colors[i] = make([]colorful.Color, w)
		c.hits[i] = make([]int, w)
	}
	c.Clear()
	return c
}

// SubWidth and SubHeight are the canvas size in dots.
func (c *Canvas) SubWidth() int  { return c.Width * 2 }
func (c *Canvas) SubHeight() int { return c.Height * 4 }

func (c *Canvas) cell(x, y int) (row, col int, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row = x/2, y/4
	if col >= c.Width || row >= c.Height {
		return 0, 0, false
	}
	return row, col, true
}

// Set sets a dot at (x, y) in dot coordinates without touching the colour.
func (c *Canvas) Set(x, y int) {
	row, col, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// SetColor sets a dot and mixes col into the cell colour.
func (c *Canvas) SetColor(x, y int, clr colorful.Color) {
	row, col, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
	n := c.hits[row][col]
	if n == 0 {
		c.colors[row][col] = clr
	} else {
		c.colors[row][col] = c.colors[row][col].BlendRgb(clr, 1/float64(n+1))
	}
	c.hits[row][col] = n + 1
}

// Color returns the cell colour and whether anything coloured was drawn there.
func (c *Canvas) Color(row, col int) (colorful.Color, bool) {
	if row < 0 || col < 0 || row >= c.Height || col >= c.Width {
		return colorful.Color{}, false
	}
	return c.colors[row][col], c.hits[row][col] > 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
			c.colors[i][j] = colorful.Color{}
			c.hits[i][j] = 0
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int, clr colorful.Color) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.SetColor(x0, y0, clr)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// String renders the dots without colour.
func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Render renders the dots with each cell in its colour. Cells that only
// received uncoloured dots use fallback.
func (c *Canvas) Render(fallback lipgloss.Color) string {
	var b strings.Builder
	plain := lipgloss.NewStyle().Foreground(fallback)
	for i, row := range c.Grid {
		for j, r := range row {
			switch {
			case r == blank:
				b.WriteRune(r)
			case c.hits[i][j] > 0:
				style := lipgloss.NewStyle().Foreground(lipgloss.Color(c.colors[i][j].Clamped().Hex()))
				b.WriteString(style.Render(string(r)))
			default:
				b.WriteString(plain.Render(string(r)))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
