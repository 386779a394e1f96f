package entity

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/pose"
)

// UniformS draws from [-1, 1).
func UniformS(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

// RandomVec draws each component from [-scale, scale).
func RandomVec(rng *rand.Rand, scale float64) r3.Vec {
	return r3.Vec{X: UniformS(rng) * scale, Y: UniformS(rng) * scale, Z: UniformS(rng) * scale}
}

// RandomHue is a fully saturated colour with a uniformly drawn hue.
func RandomHue(rng *rand.Rand) colorful.Color {
	return colorful.Hsv(rng.Float64()*360, 1, 1)
}

// SizeForMass is the render size of a particle, growing with the cube root of mass.
func SizeForMass(m float64) float64 {
	return math.Cbrt(m)
}

// ClusterSpawner scatters particles through a cube with small random
// velocities. Masses follow a cubic falloff so a few bodies dominate.
type ClusterSpawner struct {
	Spread   float64
	Velocity float64
	MinMass  float64
	MaxMass  float64
}

func NewClusterSpawner() *ClusterSpawner {
	return &ClusterSpawner{Spread: 1, Velocity: 0.01, MinMass: 1, MaxMass: 100}
}

func (c *ClusterSpawner) Spawn(rng *rand.Rand, i int) Entity {
	u := rng.Float64()
	m := c.MinMass + (c.MaxMass-c.MinMass)*u*u*u
	return Entity{
		Pos:    RandomVec(rng, c.Spread),
		Vel:    RandomVec(rng, c.Velocity),
		Mass:   m,
		Orient: pose.Identity(),
		Color:  RandomHue(rng),
		Size:   SizeForMass(m),
	}
}

// OrbitSpawner places a heavy body at the origin and the rest on the x axis
// with the circular orbit speed about it under gravity softened by
// Softening.
type OrbitSpawner struct {
	G           float64
	Softening   float64
	CentralMass float64
	BodyMass    float64
	MinRadius   float64
	MaxRadius   float64
}

func NewOrbitSpawner(g float64) *OrbitSpawner {
	return &OrbitSpawner{G: g, CentralMass: 1000, BodyMass: 1, MinRadius: 0.1, MaxRadius: 1}
}

func (o *OrbitSpawner) Spawn(rng *rand.Rand, i int) Entity {
	if i == 0 {
		return Entity{
			Mass:   o.CentralMass,
			Orient: pose.Identity(),
			Color:  colorful.Hsv(50, 1, 1),
			Size:   SizeForMass(o.CentralMass),
		}
	}
	r := o.MinRadius + (o.MaxRadius-o.MinRadius)*rng.Float64()
	r2 := r*r + o.Softening*o.Softening
	v := r * math.Sqrt(o.G*o.CentralMass/(r2*math.Sqrt(r2)))
	return Entity{
		Pos:    r3.Vec{X: r},
		Vel:    r3.Vec{Y: v},
		Mass:   o.BodyMass,
		Orient: pose.Identity(),
		Color:  RandomHue(rng),
		Size:   SizeForMass(o.BodyMass),
	}
}

// AgentSpawner creates flocking agents with random heading and, when
// Evolve is set, the heritable traits and lifespan the lifecycle reads.
type AgentSpawner struct {
	Spread      float64
	MaxLifespan float64
	Evolve      bool
}

func NewAgentSpawner(evolve bool) *AgentSpawner {
	return &AgentSpawner{Spread: 1, MaxLifespan: 10, Evolve: evolve}
}

func (a *AgentSpawner) Spawn(rng *rand.Rand, i int) Entity {
	e := Entity{
		Pos:    RandomVec(rng, a.Spread),
		Mass:   1,
		Orient: pose.LookAlong(RandomVec(rng, 1)),
		Color:  RandomHue(rng),
		Size:   1,
	}
	if !a.Evolve {
		return e
	}
	e.Traits = Traits{
		RandomFlocking:       RandomVec(rng, 1),
		MoveRate:             RandomVec(rng, 1),
		TurnRate:             RandomVec(rng, 1),
		Lifespan:             rng.Float64() * a.MaxLifespan,
		StartCheckingFitness: UniformS(rng) * a.MaxLifespan,
	}
	return e
}

// Child builds the offspring of two parents: every heritable value is the
// parent average, perturbed independently by up to mutation. Heading and
// facing are heritable; position, velocity and mass are plain averages.
func Child(rng *rand.Rand, a, b Entity, mutation float64) Entity {
	avg := func(x, y r3.Vec) r3.Vec { return r3.Scale(0.5, r3.Add(x, y)) }
	jitter := func(v r3.Vec) r3.Vec { return r3.Add(v, RandomVec(rng, mutation)) }

	fwd := jitter(avg(pose.Forward(a.Orient), pose.Forward(b.Orient)))
	orient := pose.LookAlong(fwd)
	if _, ok := pose.SafeUnit(fwd); !ok {
		orient = a.Orient
	}

	lifespan := (a.Traits.Lifespan + b.Traits.Lifespan) / 2
	if lifespan < 0 {
		lifespan = 0
	}

	return Entity{
		Pos:    avg(a.Pos, b.Pos),
		Vel:    avg(a.Vel, b.Vel),
		Mass:   (a.Mass + b.Mass) / 2,
		Orient: orient,
		Color:  a.Color.BlendRgb(b.Color, 0.5).Clamped(),
		Size:   (a.Size + b.Size) / 2,
		Traits: Traits{
			MoveRate:             jitter(avg(a.Traits.MoveRate, b.Traits.MoveRate)),
			TurnRate:             jitter(avg(a.Traits.TurnRate, b.Traits.TurnRate)),
			RandomFlocking:       jitter(avg(a.Traits.RandomFlocking, b.Traits.RandomFlocking)),
			Heading:              jitter(avg(a.Traits.Heading, b.Traits.Heading)),
			Center:               avg(a.Traits.Center, b.Traits.Center),
			Lifespan:             lifespan,
			StartCheckingFitness: (a.Traits.StartCheckingFitness + b.Traits.StartCheckingFitness) / 2,
		},
	}
}
