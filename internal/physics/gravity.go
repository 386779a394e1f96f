package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/neighbor"
)

// coincident separations have no direction and contribute nothing
const coincident = 1e-12

// Gravity is exact pairwise attraction over unordered pairs i<j with
// Plummer softening of length eps = Params.MinDistance:
//
//	F = G*m_i*m_j*(r_j-r_i)/(|r_j-r_i|^2 + eps^2)^(3/2)
//
// F is added to i and F*Symmetry subtracted from j. With Symmetry 1 the
// pair forces cancel and total momentum is conserved. The force falls to
// zero at contact instead of diverging.
type Gravity struct{}

func NewGravity() *Gravity { return &Gravity{} }

func (g *Gravity) Name() string { return "gravity" }

func (g *Gravity) Accumulate(s *entity.Store, _ neighbor.Finder, p dynamo.Params) error {
	eps2 := p.MinDistance * p.MinDistance
	n := s.Len()
	for i := 0; i < n; i++ {
		if !s.Alive[i] {
			continue
		}
		pi, mi := s.Pos[i], s.Mass[i]

		for j := i + 1; j < n; j++ {
			if !s.Alive[j] {
				continue
			}
			d := r3.Sub(s.Pos[j], pi)
			f := pairForce(p.G, mi, s.Mass[j], d, eps2)

			s.Acc[i] = r3.Add(s.Acc[i], f)
			s.Acc[j] = r3.Sub(s.Acc[j], r3.Scale(p.Symmetry, f))
		}
	}
	return nil
}

func pairForce(g, m1, m2 float64, d r3.Vec, eps2 float64) r3.Vec {
	d2 := r3.Dot(d, d)
	if d2 < coincident*coincident {
		return r3.Vec{}
	}
	r2 := d2 + eps2
	return r3.Scale(g*m1*m2/(r2*math.Sqrt(r2)), d)
}

type body struct {
	pos  r3.Vec
	mass float64
}

func (b *body) Coord3() r3.Vec { return b.pos }
func (b *body) Mass() float64  { return b.mass }

// BarnesHut approximates gravity with an octree. Distant cells whose side
// over distance is below Params.Theta act as a single mass at their centre
// of mass; Theta 0 is exact. It does not apply Symmetry and conserves
// momentum only approximately.
//
// gonum's barneshut.Volume divides leaf centres by their mass when it
// summarises the tree, which is only right for unit masses, so the tree is
// built here and only its Particle3 and Force3 contracts are reused.
type BarnesHut struct {
	bodies []body
	owner  []int
	tree   octree
}

func NewBarnesHut() *BarnesHut { return &BarnesHut{} }

func (b *BarnesHut) Name() string { return "barneshut" }

func (b *BarnesHut) Accumulate(s *entity.Store, _ neighbor.Finder, p dynamo.Params) error {
	b.bodies = b.bodies[:0]
	b.owner = b.owner[:0]
	for i := range s.Pos {
		if s.Alive[i] {
			b.bodies = append(b.bodies, body{pos: s.Pos[i], mass: s.Mass[i]})
			b.owner = append(b.owner, i)
		}
	}
	if len(b.bodies) < 2 {
		return nil
	}

	if err := b.tree.build(b.bodies); err != nil {
		return fmt.Errorf("build octree: %w", err)
	}
	force := softGravity(p.G, p.MinDistance)
	for k, i := range b.owner {
		f := b.tree.forceOn(k, p.Theta, force)
		s.Acc[i] = r3.Add(s.Acc[i], f)
	}
	return nil
}

// softGravity is barneshut.Gravity3 scaled by G with Plummer softening.
func softGravity(g, eps float64) barneshut.Force3 {
	eps2 := eps * eps
	return func(_, _ barneshut.Particle3, m1, m2 float64, v r3.Vec) r3.Vec {
		return pairForce(g, m1, m2, v, eps2)
	}
}
