// Package metrics observes a running population once per sampled step and
// reduces the observations to a single value per run.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/physics"
)

// series keeps every observation so the summary can be taken at the end.
type series struct {
	values []float64
}

func (s *series) add(v float64) { s.values = append(s.values, v) }
func (s *series) reset()        { s.values = s.values[:0] }

func (s *series) mean() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return stat.Mean(s.values, nil)
}

// Summary describes a series of observations.
type Summary struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	N      int
}

func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	return Summary{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
		N:      len(xs),
	}
}

// KineticEnergy is the mean total kinetic energy.
type KineticEnergy struct {
	series
}

func NewKineticEnergy() *KineticEnergy { return &KineticEnergy{} }

func (k *KineticEnergy) Name() string { return "kinetic_energy" }

func (k *KineticEnergy) Observe(s *entity.Store, _ uint64) {
	k.add(physics.KineticEnergy(s))
}

func (k *KineticEnergy) Value() float64 { return k.mean() }
func (k *KineticEnergy) Reset()         { k.reset() }

// EnergyDrift is the largest relative change of kinetic plus gravitational
// energy from the first observation.
type EnergyDrift struct {
	g, minDist float64

	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(g, minDist float64) *EnergyDrift {
	return &EnergyDrift{g: g, minDist: minDist}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(s *entity.Store, _ uint64) {
	energy := physics.KineticEnergy(s) + physics.PotentialEnergy(s, e.g, e.minDist)
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}

// MomentumDrift is the largest distance of total momentum from its first
// observed value.
type MomentumDrift struct {
	initial  r3.Vec
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift { return &MomentumDrift{} }

func (m *MomentumDrift) Name() string { return "momentum_drift" }

func (m *MomentumDrift) Observe(s *entity.Store, _ uint64) {
	p := physics.Momentum(s)
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, r3.Norm(r3.Sub(p, m.initial)))
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = r3.Vec{}
	m.maxDrift = 0
	m.samples = 0
}

// Population is the mean live count.
type Population struct {
	series
}

func NewPopulation() *Population { return &Population{} }

func (p *Population) Name() string { return "population" }

func (p *Population) Observe(s *entity.Store, _ uint64) {
	p.add(float64(s.LiveCount()))
}

func (p *Population) Value() float64 { return p.mean() }
func (p *Population) Reset()         { p.reset() }

// Summary of the live count over the run.
func (p *Population) Summary() Summary { return Summarize(p.values) }

// MeanFitness averages the per-step mean fitness of live agents.
type MeanFitness struct {
	series
}

func NewMeanFitness() *MeanFitness { return &MeanFitness{} }

func (m *MeanFitness) Name() string { return "mean_fitness" }

func (m *MeanFitness) Observe(s *entity.Store, _ uint64) {
	m.add(FitnessOf(s))
}

func (m *MeanFitness) Value() float64 { return m.mean() }
func (m *MeanFitness) Reset()         { m.reset() }

// FitnessOf is the mean fitness of live agents, 0 when none are alive.
func FitnessOf(s *entity.Store) float64 {
	var fit []float64
	for i := range s.Traits {
		if s.Alive[i] {
			fit = append(fit, s.Traits[i].Fitness)
		}
	}
	if len(fit) == 0 {
		return 0
	}
	return stat.Mean(fit, nil)
}

// MaxSpeed is the fastest live entity seen over the run.
type MaxSpeed struct {
	max float64
}

func NewMaxSpeed() *MaxSpeed { return &MaxSpeed{} }

func (m *MaxSpeed) Name() string { return "max_speed" }

func (m *MaxSpeed) Observe(s *entity.Store, _ uint64) {
	for i, v := range s.Vel {
		if s.Alive[i] {
			m.max = math.Max(m.max, r3.Norm(v))
		}
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }
func (m *MaxSpeed) Reset()         { m.max = 0 }

// Cohesion is the mean mass-weighted RMS distance from the centre of mass.
// Lower values mean a tighter swarm.
type Cohesion struct {
	series
	xs, ws []float64
}

func NewCohesion() *Cohesion { return &Cohesion{} }

func (c *Cohesion) Name() string { return "cohesion" }

func (c *Cohesion) Observe(s *entity.Store, _ uint64) {
	com, total := r3.Vec{}, 0.0
	for i := range s.Pos {
		if s.Alive[i] {
			com = r3.Add(com, r3.Scale(s.Mass[i], s.Pos[i]))
			total += s.Mass[i]
		}
	}
	if total == 0 {
		return
	}
	com = r3.Scale(1/total, com)

	c.xs, c.ws = c.xs[:0], c.ws[:0]
	for i := range s.Pos {
		if s.Alive[i] {
			c.xs = append(c.xs, r3.Norm2(r3.Sub(s.Pos[i], com)))
			c.ws = append(c.ws, s.Mass[i])
		}
	}
	c.add(math.Sqrt(stat.Mean(c.xs, c.ws)))
}

func (c *Cohesion) Value() float64 { return c.mean() }
func (c *Cohesion) Reset()         { c.reset() }
