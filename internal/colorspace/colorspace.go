// Package colorspace maps colours to points so a palette can be plotted
// as a point cloud in RGB or HSV space.
package colorspace

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"
)

// RGBCube centres the unit cube on the origin.
func RGBCube(c colorful.Color) r3.Vec {
	c = c.Clamped()
	return r3.Vec{X: c.R - 0.5, Y: c.G - 0.5, Z: c.B - 0.5}
}

// Hue returns the hue in degrees [0, 360). Greys have no hue and report 0.
func Hue(c colorful.Color) float64 {
	h, _, _ := c.Clamped().Hsv()
	return h
}

// HSVCylinder places a colour in a cylinder: hue is the angle around Y,
// saturation the radius and value the height, centred on the origin.
func HSVCylinder(c colorful.Color) r3.Vec {
	h, s, v := c.Clamped().Hsv()
	h *= math.Pi / 180
	return r3.Vec{
		X: s * math.Cos(h) * 0.5,
		Y: v - 0.5,
		Z: s * math.Sin(h) * 0.5,
	}
}

// Space names a projection.
type Space string

const (
	SpaceRGB Space = "rgb"
	SpaceHSV Space = "hsv"
)

// Project maps every colour in the palette into the chosen space.
func Project(space Space, palette []colorful.Color) []r3.Vec {
	fn := RGBCube
	if space == SpaceHSV {
		fn = HSVCylinder
	}
	out := make([]r3.Vec, len(palette))
	for i, c := range palette {
		out[i] = fn(c)
	}
	return out
}

// Wheel returns n fully saturated colours spaced evenly around the hue circle.
func Wheel(n int) []colorful.Color {
	out := make([]colorful.Color, n)
	for i := range out {
		out[i] = colorful.Hsv(360*float64(i)/float64(n), 1, 1)
	}
	return out
}
