package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/entity"
)

// SemiImplicitEuler updates velocity from the accumulated force first and
// then moves position with the new velocity. Accumulators are zeroed afterwards.
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (e *SemiImplicitEuler) Name() string { return "symplectic" }

func (e *SemiImplicitEuler) Step(s *entity.Store, dt float64) error {
	if err := checkMasses(s); err != nil {
		return err
	}
	for i := range s.Pos {
		if !s.Alive[i] {
			continue
		}
		a := r3.Scale(1/s.Mass[i], s.Acc[i])
		s.Vel[i] = r3.Add(s.Vel[i], r3.Scale(dt, a))
		s.Pos[i] = r3.Add(s.Pos[i], r3.Scale(dt, s.Vel[i]))
	}
	s.ClearAcc()
	return nil
}

// Euler is the explicit scheme: position moves with the old velocity. Kept
// for comparison runs; it gains energy on orbits.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(s *entity.Store, dt float64) error {
	if err := checkMasses(s); err != nil {
		return err
	}
	for i := range s.Pos {
		if !s.Alive[i] {
			continue
		}
		a := r3.Scale(1/s.Mass[i], s.Acc[i])
		s.Pos[i] = r3.Add(s.Pos[i], r3.Scale(dt, s.Vel[i]))
		s.Vel[i] = r3.Add(s.Vel[i], r3.Scale(dt, a))
	}
	s.ClearAcc()
	return nil
}

// checkMasses runs before any state is touched so a bad mass never reaches a division.
func checkMasses(s *entity.Store) error {
	for i, m := range s.Mass {
		if s.Alive[i] && !(m > 0) {
			return &dynamo.SimulationError{Index: i, Wrapped: dynamo.ErrNonPositiveMass}
		}
	}
	return nil
}
