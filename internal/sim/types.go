package sim

import (
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/lifecycle"
)

type Integrator interface {
	Name() string
	Step(s *entity.Store, dt float64) error
}

type Metric interface {
	Name() string
	Observe(s *entity.Store, step uint64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(e *Engine)
}

type ObserverFunc func(e *Engine)

func (f ObserverFunc) OnStep(e *Engine) { f(e) }

type RunConfig struct {
	Steps       int
	SampleEvery int
}

type Result struct {
	StepsTaken int
	Population int
	Totals     lifecycle.Stats
	Metrics    map[string]float64
}
