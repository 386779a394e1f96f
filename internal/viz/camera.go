package viz

import (
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
)

// Camera projects world positions onto the canvas. Extent is the world
// radius that fills half of the smaller screen side at zoom 1.
type Camera struct {
	Distance   float64
	RotX, RotY float64
	Zoom       float64
	Extent     float64
}

func NewCamera(extent float64) *Camera {
	if extent <= 0 {
		extent = 1
	}
	return &Camera{Distance: 4 * extent, Zoom: 1, Extent: extent}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// Reset restores the default view, keeping the extent.
func (c *Camera) Reset() {
	c.RotX, c.RotY, c.Zoom = 0, 0, 1
}

// RotatePoint applies the camera's yaw then pitch.
func (c *Camera) RotatePoint(p r3.Vec) r3.Vec {
	p = r3.Rotate(p, c.RotY, axisY)
	return r3.Rotate(p, c.RotX, axisX)
}

// Project converts a world position to dot coordinates on a sw x sh screen.
// Returns x, y, depth (larger is nearer) and visibility.
func (c *Camera) Project(p r3.Vec, sw, sh int) (int, int, float64, bool) {
	rot := c.RotatePoint(p)
	dist := c.Distance
	if rot.Z >= dist-1e-3 {
		return 0, 0, 0, false
	}
	persp := dist / (dist - rot.Z)
	half := float64(min(sw, sh)) / 2
	scale := half / c.Extent * c.Zoom * persp
	sx := int(math.Round(rot.X*scale)) + sw/2
	sy := int(math.Round(-rot.Y*scale)) + sh/2
	return sx, sy, rot.Z, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End r3.Vec
	Color      colorful.Color
}

type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe                             { return &Wireframe{} }
func (w *Wireframe) AddEdge(s, e r3.Vec, c colorful.Color) { w.Edges = append(w.Edges, Edge{s, e, c}) }
func (w *Wireframe) Clear()                                { w.Edges = w.Edges[:0] }

// AddSphere adds three great circles of the sphere at center.
func (w *Wireframe) AddSphere(center r3.Vec, radius float64, segments int, c colorful.Color) {
	if segments < 3 {
		segments = 3
	}
	ring := func(at func(a float64) r3.Vec) {
		prev := at(0)
		for i := 1; i <= segments; i++ {
			next := at(2 * math.Pi * float64(i) / float64(segments))
			w.AddEdge(r3.Add(center, prev), r3.Add(center, next), c)
			prev = next
		}
	}
	ring(func(a float64) r3.Vec { return r3.Vec{X: radius * math.Cos(a), Y: radius * math.Sin(a)} })
	ring(func(a float64) r3.Vec { return r3.Vec{X: radius * math.Cos(a), Z: radius * math.Sin(a)} })
	ring(func(a float64) r3.Vec { return r3.Vec{Y: radius * math.Cos(a), Z: radius * math.Sin(a)} })
}

type projectedEdge struct {
	x1, y1, x2, y2 int
	depth          float64
	color          colorful.Color
}

// Render3D draws the wireframe far to near so nearer edges win the cell colour.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	cw, ch := c.SubWidth(), c.SubHeight()
	proj := make([]projectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, cw, ch)
		x2, y2, d2, v2 := cam.Project(e.End, cw, ch)
		if v1 || v2 {
			proj = append(proj, projectedEdge{x1, y1, x2, y2, (d1 + d2) / 2, e.Color})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth < proj[j].depth })
	for _, e := range proj {
		c.DrawLine(e.x1, e.y1, e.x2, e.y2, e.color)
	}
}
