package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/snapshot"
	"github.com/san-kum/swarmlab/internal/viz"
)

// Braille dot-to-bit mapping
var pixelMap = [4][2]int{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

func header(sb *strings.Builder, width, height float64, bg colorful.Color) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, bg.Hex())
}

// CanvasToSVG converts a braille canvas to SVG, one circle per dot in the
// colour of its cell.
func CanvasToSVG(canvas *viz.Canvas, scale float64, bg, fallback colorful.Color) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.SubWidth()) * scale
	height := float64(canvas.SubHeight()) * scale

	var sb strings.Builder
	header(&sb, width, height, bg)

	dotRadius := scale * 0.4
	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			r := canvas.Grid[row][col]
			if r <= 0x2800 {
				continue
			}
			pattern := int(r - 0x2800)
			fill, ok := canvas.Color(row, col)
			if !ok {
				fill = fallback
			}

			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] == 0 {
						continue
					}
					cx := baseX + float64(dx)*scale + scale/2
					cy := baseY + float64(dy)*scale + scale/2
					fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\" fill=\"%s\"/>\n",
						cx, cy, dotRadius, fill.Clamped().Hex())
				}
			}
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SnapshotOptions control SnapshotToSVG.
type SnapshotOptions struct {
	Width, Height int
	Background    colorful.Color
	// DotScale converts entity size to a radius in pixels. Defaults to 1.5.
	DotScale float64
}

// SnapshotToSVG draws every entity as a circle in its own colour and alpha,
// far to near, seen through cam. Food is drawn first and the cull sphere, if
// any, as an outline.
func SnapshotToSVG(snap *snapshot.Snapshot, cam *viz.Camera, opts SnapshotOptions) string {
	if snap == nil || cam == nil {
		return ""
	}
	if opts.DotScale <= 0 {
		opts.DotScale = 1.5
	}
	w, h := opts.Width, opts.Height

	var sb strings.Builder
	header(&sb, float64(w), float64(h), opts.Background)

	type circle struct {
		x, y  int
		r     float64
		depth float64
		fill  string
		alpha float64
	}
	place := func(d snapshot.Drawable, scale float64) (circle, bool) {
		x, y, depth, ok := cam.Project(d.Position, w, h)
		if !ok {
			return circle{}, false
		}
		return circle{
			x:     x,
			y:     y,
			depth: depth,
			r:     max(0.5, d.Size*scale),
			fill:  d.Color.Clamped().Hex(),
			alpha: d.Alpha,
		}, true
	}
	write := func(c circle) {
		fmt.Fprintf(&sb, "<circle cx=\"%d\" cy=\"%d\" r=\"%.1f\" fill=\"%s\" fill-opacity=\"%.2f\"/>\n",
			c.x, c.y, c.r, c.fill, c.alpha)
	}

	for _, f := range snap.Food {
		if c, ok := place(f, opts.DotScale*0.3); ok {
			c.alpha = 0.6
			write(c)
		}
	}

	circles := make([]circle, 0, len(snap.Entities))
	for _, d := range snap.Entities {
		if c, ok := place(d, opts.DotScale); ok {
			circles = append(circles, c)
		}
	}
	sort.Slice(circles, func(i, j int) bool { return circles[i].depth < circles[j].depth })
	for _, c := range circles {
		write(c)
	}

	if s := snap.Cull; s != nil {
		cx, cy, _, ok := cam.Project(s.Center, w, h)
		ex, _, _, _ := cam.Project(r3.Add(s.Center, r3.Vec{X: s.Radius}), w, h)
		if ok {
			fmt.Fprintf(&sb, "<circle cx=\"%d\" cy=\"%d\" r=\"%d\" fill=\"none\" stroke=\"#ff4444\"/>\n",
				cx, cy, max(1, absInt(ex-cx)))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

type Point struct{ X, Y float64 }

// SeriesToSVG plots a line through points, padded by a tenth of the range.
func SeriesToSVG(points []Point, width, height int, bg colorful.Color, stroke colorful.Color) string {
	if len(points) < 2 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	header(&sb, float64(width), float64(height), bg)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, stroke.Hex())

	for i, p := range points {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
