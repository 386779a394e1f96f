package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/neighbor"
	"github.com/san-kum/swarmlab/internal/pose"
)

// ForceModel adds its contribution to the store's accumulators. The
// accumulator holds force; the integrator divides by mass.
type ForceModel interface {
	Name() string
	Accumulate(s *entity.Store, f neighbor.Finder, p dynamo.Params) error
}

// PostPass applies drag and then the acceleration clamp to every live entity.
// Both act on the accumulator after all pairwise forces are in.
func PostPass(s *entity.Store, p dynamo.Params) {
	for i := range s.Acc {
		if !s.Alive[i] {
			continue
		}
		a := s.Acc[i]
		if p.DragFactor > 0 {
			a = r3.Sub(a, r3.Scale(p.DragFactor, s.Vel[i]))
		}
		s.Acc[i] = pose.ClampNorm(a, p.MaxAccel)
	}
}

// Momentum is the total linear momentum of live entities.
func Momentum(s *entity.Store) r3.Vec {
	var m r3.Vec
	for i := range s.Vel {
		if s.Alive[i] {
			m = r3.Add(m, r3.Scale(s.Mass[i], s.Vel[i]))
		}
	}
	return m
}

func KineticEnergy(s *entity.Store) float64 {
	ke := 0.0
	for i := range s.Vel {
		if s.Alive[i] {
			ke += 0.5 * s.Mass[i] * r3.Norm2(s.Vel[i])
		}
	}
	return ke
}

// PotentialEnergy is the pairwise gravitational energy with the same
// softening length the force uses.
func PotentialEnergy(s *entity.Store, g, eps float64) float64 {
	eps2 := eps * eps
	pe := 0.0
	for i := range s.Pos {
		if !s.Alive[i] {
			continue
		}
		for j := i + 1; j < len(s.Pos); j++ {
			if !s.Alive[j] {
				continue
			}
			d := r3.Sub(s.Pos[j], s.Pos[i])
			pe -= g * s.Mass[i] * s.Mass[j] / math.Sqrt(r3.Dot(d, d)+eps2)
		}
	}
	return pe
}

// AngularMomentum about the origin.
func AngularMomentum(s *entity.Store) r3.Vec {
	var l r3.Vec
	for i := range s.Pos {
		if s.Alive[i] {
			l = r3.Add(l, r3.Scale(s.Mass[i], r3.Cross(s.Pos[i], s.Vel[i])))
		}
	}
	return l
}

// MaxAccel is the largest accumulator magnitude among live entities.
func MaxAccel(s *entity.Store) float64 {
	m := 0.0
	for i, a := range s.Acc {
		if s.Alive[i] {
			m = math.Max(m, r3.Norm(a))
		}
	}
	return m
}
