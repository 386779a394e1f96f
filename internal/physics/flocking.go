package physics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/neighbor"
	"github.com/san-kum/swarmlab/internal/pose"
)

// Flocking applies the three boids rules.
//
// The neighbour scan reads an unmutated snapshot: separation writes only the
// accumulator, and the alignment and cohesion targets are staged. Once every
// entity has been scanned the staged targets are applied, turning each entity
// toward the average heading and moving it toward the neighbour centroid.
// An entity with no neighbours beyond the separation distance is left as is.
type Flocking struct {
	// Evolve reads per-agent move and turn rates and random flocking bias
	// from the entity traits instead of using the global rates alone.
	Evolve bool

	nb      []int
	heading []r3.Vec
	center  []r3.Vec
	staged  []bool
}

func NewFlocking(evolve bool) *Flocking {
	return &Flocking{Evolve: evolve}
}

func (fl *Flocking) Name() string { return "flocking" }

func (fl *Flocking) Accumulate(s *entity.Store, f neighbor.Finder, p dynamo.Params) error {
	n := s.Len()
	fl.resize(n)

	for i := 0; i < n; i++ {
		fl.staged[i] = false
		if !s.Alive[i] {
			continue
		}

		fl.nb = f.Query(fl.nb, i, p.LocalRadius)
		fl.nb = neighbor.KeepNearest(fl.nb, s.Pos, s.Pos[i], p.NeighborLimit)
		s.Traits[i].FlockCount = len(fl.nb)

		turn := fl.turnRate(s, i, p)
		var sumHeading, sumPos r3.Vec
		count := 0

		for _, j := range fl.nb {
			away := r3.Sub(s.Pos[i], s.Pos[j])
			if r3.Norm(away) < p.SeparationDistance {
				if u, ok := pose.SafeUnit(away); ok {
					s.Acc[i] = r3.Add(s.Acc[i], r3.Scale(turn*s.Mass[i], u))
				}
				continue
			}

			h := pose.Forward(s.Orient[j])
			if fl.Evolve {
				h = r3.Add(h, s.Traits[j].RandomFlocking)
			}
			sumHeading = r3.Add(sumHeading, h)
			sumPos = r3.Add(sumPos, s.Pos[j])
			count++
		}

		if count == 0 {
			continue
		}
		inv := 1 / float64(count)
		fl.heading[i] = r3.Scale(inv, sumHeading)
		fl.center[i] = r3.Scale(inv, sumPos)
		fl.staged[i] = true
		s.Traits[i].Heading = fl.heading[i]
		s.Traits[i].Center = fl.center[i]
	}

	for i := 0; i < n; i++ {
		if s.Alive[i] && fl.staged[i] {
			s.Orient[i] = pose.FaceDirection(s.Orient[i], fl.heading[i], fl.turnRate(s, i, p))
			s.Pos[i] = pose.Lerp(s.Pos[i], fl.center[i], fl.moveRate(s, i, p))
		}
		if s.Alive[i] && p.CruiseSpeed > 0 {
			// steer velocity toward forward * cruise speed
			want := r3.Scale(p.CruiseSpeed, pose.Forward(s.Orient[i]))
			s.Acc[i] = r3.Add(s.Acc[i], r3.Scale(s.Mass[i], r3.Sub(want, s.Vel[i])))
		}
	}
	return nil
}

func (fl *Flocking) turnRate(s *entity.Store, i int, p dynamo.Params) float64 {
	t := p.TurnRate
	if fl.Evolve {
		t *= r3.Norm(s.Traits[i].TurnRate)
	}
	return pose.Clamp(t, 0, 1)
}

func (fl *Flocking) moveRate(s *entity.Store, i int, p dynamo.Params) float64 {
	m := p.MoveRate * p.Rate
	if fl.Evolve {
		m = r3.Norm(s.Traits[i].MoveRate) * p.Rate
	}
	return pose.Clamp(m, 0, 1)
}

func (fl *Flocking) resize(n int) {
	if cap(fl.staged) < n {
		fl.heading = make([]r3.Vec, n)
		fl.center = make([]r3.Vec, n)
		fl.staged = make([]bool, n)
		return
	}
	fl.heading = fl.heading[:n]
	fl.center = fl.center[:n]
	fl.staged = fl.staged[:n]
}
