package viz

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/colorspace"
	"github.com/san-kum/swarmlab/internal/snapshot"
)

// View picks what the canvas shows.
type View int

const (
	ViewWorld View = iota
	ViewRGB
	ViewHSV
	numViews
)

func (v View) String() string {
	switch v {
	case ViewRGB:
		return "rgb"
	case ViewHSV:
		return "hsv"
	default:
		return "world"
	}
}

func (v View) Next() View { return (v + 1) % numViews }

// headingLimit caps how many agents get a heading tick before the view
// falls back to plain dots.
const headingLimit = 600

// Scene holds the drawing choices that do not change per frame.
type Scene struct {
	Background  colorful.Color
	Frame       colorful.Color
	Cull        colorful.Color
	BoundRadius float64
	Headings    bool
}

type placed struct {
	x, y, hx, hy int
	depth        float64
	color        colorful.Color
	heading      bool
}

// Draw renders one snapshot into c.
func Draw(c *Canvas, snap *snapshot.Snapshot, cam *Camera, view View, sc Scene) {
	c.Clear()
	if snap == nil {
		return
	}
	switch view {
	case ViewRGB:
		drawPalette(c, snap, cam, colorspace.SpaceRGB, sc)
	case ViewHSV:
		drawPalette(c, snap, cam, colorspace.SpaceHSV, sc)
	default:
		drawWorld(c, snap, cam, sc)
	}
}

func drawWorld(c *Canvas, snap *snapshot.Snapshot, cam *Camera, sc Scene) {
	cw, ch := c.SubWidth(), c.SubHeight()

	frame := NewWireframe()
	if sc.BoundRadius > 0 {
		frame.AddSphere(r3.Vec{}, sc.BoundRadius, 32, sc.Frame)
	}
	if snap.Cull != nil {
		frame.AddSphere(snap.Cull.Center, snap.Cull.Radius, 16, sc.Cull)
	}
	Render3D(c, frame, cam)

	for _, f := range snap.Food {
		if x, y, _, ok := cam.Project(f.Position, cw, ch); ok {
			c.SetColor(x, y, sc.Background.BlendRgb(f.Color, 0.6))
		}
	}

	headings := sc.Headings && len(snap.Entities) <= headingLimit
	tick := 0.04 * cam.Extent
	pts := make([]placed, 0, len(snap.Entities))
	for _, d := range snap.Entities {
		x, y, depth, ok := cam.Project(d.Position, cw, ch)
		if !ok {
			continue
		}
		p := placed{x: x, y: y, depth: depth, color: sc.Background.BlendRgb(d.Color, d.Alpha)}
		if headings {
			p.hx, p.hy, _, _ = cam.Project(r3.Add(d.Position, r3.Scale(tick, d.Forward)), cw, ch)
			p.heading = true
		}
		pts = append(pts, p)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].depth < pts[j].depth })
	for _, p := range pts {
		if p.heading {
			c.DrawLine(p.x, p.y, p.hx, p.hy, p.color)
		} else {
			c.SetColor(p.x, p.y, p.color)
		}
	}
}

// drawPalette plots every entity colour as a point in the colour space,
// scaled to fill the same view as the world.
func drawPalette(c *Canvas, snap *snapshot.Snapshot, cam *Camera, space colorspace.Space, sc Scene) {
	cw, ch := c.SubWidth(), c.SubHeight()
	scale := cam.Extent / 0.6

	palette := make([]colorful.Color, len(snap.Entities))
	for i, d := range snap.Entities {
		palette[i] = d.Color
	}

	frame := NewWireframe()
	edge := sc.Frame
	if space == colorspace.SpaceRGB {
		addCube(frame, 0.5*scale, edge)
	} else {
		frame.AddSphere(r3.Vec{}, 0.5*scale, 24, edge)
	}
	Render3D(c, frame, cam)

	for i, p := range colorspace.Project(space, palette) {
		if x, y, _, ok := cam.Project(r3.Scale(scale, p), cw, ch); ok {
			c.SetColor(x, y, palette[i])
		}
	}
}

func addCube(w *Wireframe, s float64, clr colorful.Color) {
	v := []r3.Vec{
		{X: -s, Y: -s, Z: -s}, {X: s, Y: -s, Z: -s}, {X: s, Y: s, Z: -s}, {X: -s, Y: s, Z: -s},
		{X: -s, Y: -s, Z: s}, {X: s, Y: -s, Z: s}, {X: s, Y: s, Z: s}, {X: -s, Y: s, Z: s},
	}
	ei := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}
	for _, e := range ei {
		w.AddEdge(v[e[0]], v[e[1]], clr)
	}
}
