package dynamo

import (
	"fmt"
	"math"
	"sort"
)

// Params holds every externally tunable value the step reads. Values are
// clamped once, where they enter the program, and trusted afterwards.
type Params struct {
	// Flocking
	Rate               float64 `yaml:"rate"`
	MoveRate           float64 `yaml:"move_rate"`
	TurnRate           float64 `yaml:"turn_rate"`
	LocalRadius        float64 `yaml:"local_radius"`
	SeparationDistance float64 `yaml:"separation_distance"`
	CruiseSpeed        float64 `yaml:"cruise_speed"`
	NeighborLimit      int     `yaml:"neighbor_limit"`

	// Integration
	DragFactor  float64 `yaml:"drag_factor"`
	MaxAccel    float64 `yaml:"max_accel"`
	TimeStep    float64 `yaml:"time_step"`
	BoundRadius float64 `yaml:"bound_radius"`

	// Gravity
	G           float64 `yaml:"g"`
	MinDistance float64 `yaml:"min_distance"`
	Symmetry    float64 `yaml:"symmetry"`
	Theta       float64 `yaml:"theta"`

	// Lifecycle
	ReproductionDistanceThreshold    float64 `yaml:"reproduction_distance_threshold"`
	FoodDistanceThreshold            float64 `yaml:"food_distance_threshold"`
	DecreaseLifespanAmount           float64 `yaml:"decrease_lifespan_amount"`
	ReproductionProbabilityThreshold float64 `yaml:"reproduction_probability_threshold"`
	FitnessCutoff                    float64 `yaml:"fitness_cutoff"`
	MutationScale                    float64 `yaml:"mutation_scale"`
	FoodLifespanGain                 float64 `yaml:"food_lifespan_gain"`
	CullMaxRadius                    float64 `yaml:"cull_max_radius"`
	CullMaxInterval                  int     `yaml:"cull_max_interval"`

	// Field
	FlowRate    float64 `yaml:"flow_rate"`
	FlowDamping float64 `yaml:"flow_damping"`
}

func DefaultParams() Params {
	return Params{
		Rate:               0.015,
		MoveRate:           0.35,
		TurnRate:           0.15,
		LocalRadius:        0.18,
		SeparationDistance: 0.03,
		CruiseSpeed:        0,
		NeighborLimit:      16,

		DragFactor:  0.01,
		MaxAccel:    30,
		TimeStep:    0.01,
		BoundRadius: 1.1,

		G:           0.002,
		MinDistance: 0.1,
		Symmetry:    1,
		Theta:       0.5,

		ReproductionDistanceThreshold:    0.1,
		FoodDistanceThreshold:            0.05,
		DecreaseLifespanAmount:           0.01,
		ReproductionProbabilityThreshold: 0.4,
		FitnessCutoff:                    10,
		MutationScale:                    0.05,
		FoodLifespanGain:                 1,
		CullMaxRadius:                    0.3,
		CullMaxInterval:                  1000,

		FlowRate:    0.05,
		FlowDamping: 0.99,
	}
}

// Bound is the closed interval a parameter is clamped into.
type Bound struct {
	Min, Max float64
}

func (b Bound) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return b.Min
	}
	return math.Max(b.Min, math.Min(b.Max, v))
}

// Bounds lists the accepted range of every float parameter by its yaml name.
var Bounds = map[string]Bound{
	"rate":                               {0.001, 1},
	"move_rate":                          {0, 2},
	"turn_rate":                          {0, 2},
	"local_radius":                       {0, 1},
	"separation_distance":                {0, 0.9},
	"cruise_speed":                       {0, 2},
	"drag_factor":                        {0, 0.99},
	"max_accel":                          {0, 100},
	"time_step":                          {0.001, 0.6},
	"bound_radius":                       {0.1, 100},
	"g":                                  {0, 10},
	"min_distance":                       {1e-6, 1},
	"symmetry":                           {0.1, 1},
	"theta":                              {0, 2},
	"reproduction_distance_threshold":    {0, 1},
	"food_distance_threshold":            {0, 1},
	"decrease_lifespan_amount":           {0, 1},
	"reproduction_probability_threshold": {0, 500},
	"fitness_cutoff":                     {-1000, 1000},
	"mutation_scale":                     {0, 1},
	"food_lifespan_gain":                 {0, 10},
	"cull_max_radius":                    {0, 2},
	"flow_rate":                          {0, 1},
	"flow_damping":                       {0, 1},
}

func (p *Params) fields() map[string]*float64 {
	return map[string]*float64{
		"rate":                               &p.Rate,
		"move_rate":                          &p.MoveRate,
		"turn_rate":                          &p.TurnRate,
		"local_radius":                       &p.LocalRadius,
		"separation_distance":                &p.SeparationDistance,
		"cruise_speed":                       &p.CruiseSpeed,
		"drag_factor":                        &p.DragFactor,
		"max_accel":                          &p.MaxAccel,
		"time_step":                          &p.TimeStep,
		"bound_radius":                       &p.BoundRadius,
		"g":                                  &p.G,
		"min_distance":                       &p.MinDistance,
		"symmetry":                           &p.Symmetry,
		"theta":                              &p.Theta,
		"reproduction_distance_threshold":    &p.ReproductionDistanceThreshold,
		"food_distance_threshold":            &p.FoodDistanceThreshold,
		"decrease_lifespan_amount":           &p.DecreaseLifespanAmount,
		"reproduction_probability_threshold": &p.ReproductionProbabilityThreshold,
		"fitness_cutoff":                     &p.FitnessCutoff,
		"mutation_scale":                     &p.MutationScale,
		"food_lifespan_gain":                 &p.FoodLifespanGain,
		"cull_max_radius":                    &p.CullMaxRadius,
		"flow_rate":                          &p.FlowRate,
		"flow_damping":                       &p.FlowDamping,
	}
}

// Clamp forces every parameter into its Bound and returns the names that
// had to change, sorted.
func (p *Params) Clamp() []string {
	var changed []string
	for name, ptr := range p.fields() {
		b := Bounds[name]
		v := b.Clamp(*ptr)
		if v != *ptr {
			changed = append(changed, name)
			*ptr = v
		}
	}
	if p.NeighborLimit < 0 {
		p.NeighborLimit = 0
		changed = append(changed, "neighbor_limit")
	}
	if p.CullMaxInterval < 1 {
		p.CullMaxInterval = 1
		changed = append(changed, "cull_max_interval")
	}
	sort.Strings(changed)
	return changed
}

// Configurable is satisfied by anything that exposes named float parameters.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

func (p *Params) GetParams() map[string]float64 {
	out := make(map[string]float64)
	for name, ptr := range p.fields() {
		out[name] = *ptr
	}
	return out
}

// SetParam assigns a single parameter by yaml name. Out of range values are
// clamped and reported with ErrParameterBounds after the clamped value is stored.
func (p *Params) SetParam(name string, value float64) error {
	ptr, ok := p.fields()[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	b := Bounds[name]
	*ptr = b.Clamp(value)
	if *ptr != value {
		return fmt.Errorf("%w: %s=%g clamped to %g", ErrParameterBounds, name, value, *ptr)
	}
	return nil
}

// ParamNames returns all settable parameter names in sorted order.
func ParamNames() []string {
	names := make([]string, 0, len(Bounds))
	for name := range Bounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxRadius is the largest interaction radius a step queries with.
func (p Params) MaxRadius() float64 {
	r := p.LocalRadius
	r = math.Max(r, p.ReproductionDistanceThreshold)
	r = math.Max(r, p.FoodDistanceThreshold)
	return r
}
