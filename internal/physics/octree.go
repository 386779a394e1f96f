package physics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/pose"
)

// maxDepth stops splitting; bodies that still share a cell stay together.
const maxDepth = 32

var errNonFinite = errors.New("non-finite body position")

// octree is a Barnes-Hut tree over a slice of bodies whose cell centres
// are mass weighted.
type octree struct {
	bodies []body
	root   *octant
}

type octant struct {
	bounds  r3.Box
	kids    [8]*octant
	members []int
	center  r3.Vec
	mass    float64
}

func (t *octree) build(bodies []body) error {
	t.bodies = bodies
	lo, hi := bodies[0].pos, bodies[0].pos
	for _, b := range bodies {
		if !pose.IsFinite(b.pos) {
			return errNonFinite
		}
		lo = r3.Vec{X: math.Min(lo.X, b.pos.X), Y: math.Min(lo.Y, b.pos.Y), Z: math.Min(lo.Z, b.pos.Z)}
		hi = r3.Vec{X: math.Max(hi.X, b.pos.X), Y: math.Max(hi.Y, b.pos.Y), Z: math.Max(hi.Z, b.pos.Z)}
	}
	side := math.Max(hi.X-lo.X, math.Max(hi.Y-lo.Y, hi.Z-lo.Z))
	if side == 0 {
		side = 1
	}
	t.root = &octant{bounds: r3.Box{Min: lo, Max: r3.Add(lo, r3.Vec{X: side, Y: side, Z: side})}}
	for i := range bodies {
		t.root.insert(bodies, i, 0)
	}
	t.root.summarize(bodies)
	return nil
}

// forceOn sums the force on body i, skipping i itself.
func (t *octree) forceOn(i int, theta float64, f barneshut.Force3) r3.Vec {
	return t.root.forceOn(t.bodies, i, theta, f)
}

func (o *octant) leaf() bool { return o.kids == [8]*octant{} }

func (o *octant) insert(bodies []body, i, depth int) {
	if o.leaf() {
		if len(o.members) == 0 || depth >= maxDepth {
			o.members = append(o.members, i)
			return
		}
		held := o.members
		o.members = nil
		for _, j := range held {
			o.child(bodies[j].pos).insert(bodies, j, depth+1)
		}
	}
	o.child(bodies[i].pos).insert(bodies, i, depth+1)
}

func (o *octant) child(p r3.Vec) *octant {
	mid := r3.Scale(0.5, r3.Add(o.bounds.Min, o.bounds.Max))
	box := o.bounds
	k := 0
	if p.X >= mid.X {
		k |= 1
		box.Min.X = mid.X
	} else {
		box.Max.X = mid.X
	}
	if p.Y >= mid.Y {
		k |= 2
		box.Min.Y = mid.Y
	} else {
		box.Max.Y = mid.Y
	}
	if p.Z >= mid.Z {
		k |= 4
		box.Min.Z = mid.Z
	} else {
		box.Max.Z = mid.Z
	}
	if o.kids[k] == nil {
		o.kids[k] = &octant{bounds: box}
	}
	return o.kids[k]
}

func (o *octant) summarize(bodies []body) {
	var c r3.Vec
	m := 0.0
	for _, j := range o.members {
		c = r3.Add(c, r3.Scale(bodies[j].mass, bodies[j].pos))
		m += bodies[j].mass
	}
	for _, k := range o.kids {
		if k == nil {
			continue
		}
		k.summarize(bodies)
		c = r3.Add(c, r3.Scale(k.mass, k.center))
		m += k.mass
	}
	o.mass = m
	if m > 0 {
		c = r3.Scale(1/m, c)
	}
	o.center = c
}

func (o *octant) forceOn(bodies []body, i int, theta float64, f barneshut.Force3) r3.Vec {
	p := &bodies[i]
	var v r3.Vec
	if o.leaf() {
		for _, j := range o.members {
			if j != i {
				v = r3.Add(v, f(p, &bodies[j], p.mass, bodies[j].mass, r3.Sub(bodies[j].pos, p.pos)))
			}
		}
		return v
	}

	// a cell holding p is always opened so p never attracts itself
	side := o.bounds.Max.X - o.bounds.Min.X
	dist := r3.Norm(r3.Sub(o.center, p.pos))
	if !o.contains(p.pos) && side < theta*dist {
		return f(p, nil, p.mass, o.mass, r3.Sub(o.center, p.pos))
	}
	for _, k := range o.kids {
		if k != nil {
			v = r3.Add(v, k.forceOn(bodies, i, theta, f))
		}
	}
	return v
}

func (o *octant) contains(p r3.Vec) bool {
	b := o.bounds
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

