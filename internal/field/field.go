// Package field holds the environment agents live in: drifting food
// particles and a damped flow grid that pushes agents around.
package field

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/entity"
)

type Food struct {
	Position r3.Vec
	Velocity r3.Vec
	Size     float64
	Color    colorful.Color
	Consumed bool
}

type Config struct {
	MinFood            int     `yaml:"min_food"`
	MaxFood            int     `yaml:"max_food"`
	MaxFoodSize        int     `yaml:"max_food_size"`
	ReplenishThreshold int     `yaml:"replenish_threshold"`
	ReplenishBatch     int     `yaml:"replenish_batch"`
	Spread             float64 `yaml:"spread"`
	Drift              float64 `yaml:"drift"`
	Bound              float64 `yaml:"bound"`
	FlowResolution     int     `yaml:"flow_resolution"`
}

func DefaultConfig() Config {
	return Config{
		MinFood:            100,
		MaxFood:            1000,
		MaxFoodSize:        10,
		ReplenishThreshold: 100,
		ReplenishBatch:     50,
		Spread:             1,
		Drift:              0.001,
		Bound:              1.1,
		FlowResolution:     8,
	}
}

type Field struct {
	cfg  Config
	Food []Food
	flow []r3.Vec
}

func New(cfg Config) *Field {
	if cfg.FlowResolution < 1 {
		cfg.FlowResolution = 1
	}
	if cfg.MaxFood < cfg.MinFood {
		cfg.MaxFood = cfg.MinFood
	}
	if cfg.MaxFoodSize < 1 {
		cfg.MaxFoodSize = 1
	}
	if cfg.Bound <= 0 {
		cfg.Bound = 1
	}
	n := cfg.FlowResolution
	return &Field{
		cfg:  cfg,
		flow: make([]r3.Vec, n*n*n),
	}
}

func (f *Field) Config() Config { return f.cfg }

// Reset scatters a random amount of food in [MinFood, MaxFood] and draws a
// fresh flow grid.
func (f *Field) Reset(rng *rand.Rand) {
	f.Food = f.Food[:0]
	n := f.cfg.MinFood
	if span := f.cfg.MaxFood - f.cfg.MinFood; span > 0 {
		n += rng.Intn(span + 1)
	}
	for i := 0; i < n; i++ {
		f.Food = append(f.Food, f.newFood(rng))
	}
	for i := range f.flow {
		f.flow[i] = entity.RandomVec(rng, 1)
	}
}

func (f *Field) newFood(rng *rand.Rand) Food {
	return Food{
		Position: f.insideBound(rng),
		Velocity: entity.RandomVec(rng, f.cfg.Drift),
		Size:     float64(1 + rng.Intn(f.cfg.MaxFoodSize)),
		Color:    entity.RandomHue(rng),
	}
}

// insideBound draws from the spawn cube, rejecting points outside the bound sphere.
func (f *Field) insideBound(rng *rand.Rand) r3.Vec {
	var p r3.Vec
	for try := 0; try < 16; try++ {
		p = entity.RandomVec(rng, f.cfg.Spread)
		if r3.Norm(p) <= f.cfg.Bound {
			return p
		}
	}
	return r3.Scale(0.99*f.cfg.Bound/r3.Norm(p), p)
}

// Move drifts every food particle; one that leaves the bound is replaced in place.
func (f *Field) Move(rng *rand.Rand) {
	for i := range f.Food {
		fd := &f.Food[i]
		fd.Position = r3.Add(fd.Position, fd.Velocity)
		if r3.Norm(fd.Position) > f.cfg.Bound {
			*fd = f.newFood(rng)
		}
	}
}

// Sweep removes consumed food, keeping the rest in order, and returns how
// many were removed.
func (f *Field) Sweep() int {
	w := 0
	for _, fd := range f.Food {
		if fd.Consumed {
			continue
		}
		f.Food[w] = fd
		w++
	}
	removed := len(f.Food) - w
	f.Food = f.Food[:w]
	return removed
}

// Replenish adds a batch of food when the count is under the threshold and
// returns how many were added.
func (f *Field) Replenish(rng *rand.Rand) int {
	if len(f.Food) >= f.cfg.ReplenishThreshold {
		return 0
	}
	for i := 0; i < f.cfg.ReplenishBatch; i++ {
		f.Food = append(f.Food, f.newFood(rng))
	}
	return f.cfg.ReplenishBatch
}

// FoodPositions fills dst with the current food positions.
func (f *Field) FoodPositions(dst []r3.Vec) []r3.Vec {
	dst = dst[:0]
	for _, fd := range f.Food {
		dst = append(dst, fd.Position)
	}
	return dst
}

// FlowAt returns the flow vector of the grid cell containing p. Points
// outside the grid use the nearest edge cell.
func (f *Field) FlowAt(p r3.Vec) r3.Vec {
	n := f.cfg.FlowResolution
	idx := func(v float64) int {
		c := int(math.Floor((v + f.cfg.Bound) / (2 * f.cfg.Bound) * float64(n)))
		if c < 0 || math.IsNaN(v) {
			return 0
		}
		if c >= n {
			return n - 1
		}
		return c
	}
	return f.flow[(idx(p.X)*n+idx(p.Y))*n+idx(p.Z)]
}

// ApplyFlow adds each live entity's flow cell, scaled by rate, to its
// accumulator as a force per unit mass.
func (f *Field) ApplyFlow(s *entity.Store, rate float64) {
	if rate == 0 {
		return
	}
	for i := range s.Pos {
		if s.Alive[i] {
			s.Acc[i] = r3.Add(s.Acc[i], r3.Scale(rate*s.Mass[i], f.FlowAt(s.Pos[i])))
		}
	}
}

// Damp scales the whole flow grid by factor.
func (f *Field) Damp(factor float64) {
	for i := range f.flow {
		f.flow[i] = r3.Scale(factor, f.flow[i])
	}
}

// FlowEnergy is the summed squared magnitude of the grid.
func (f *Field) FlowEnergy() float64 {
	e := 0.0
	for _, v := range f.flow {
		e += r3.Norm2(v)
	}
	return e
}
