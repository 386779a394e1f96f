package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/field"
	"github.com/san-kum/swarmlab/internal/lifecycle"
	"github.com/san-kum/swarmlab/internal/neighbor"
	"github.com/san-kum/swarmlab/internal/physics"
	"github.com/san-kum/swarmlab/internal/pose"
	"github.com/san-kum/swarmlab/internal/snapshot"
)

// cullVisible is how many steps a cull sphere stays in published snapshots.
const cullVisible = 30

type Options struct {
	Store      *entity.Store
	Finder     neighbor.Finder
	Forces     []physics.ForceModel
	Integrator Integrator

	// Lifecycle and Field are optional.
	Lifecycle *lifecycle.Manager
	Field     *field.Field

	Params    dynamo.Params
	Publisher *snapshot.Publisher
	Snapshot  snapshot.Options
	Logger    *slog.Logger
}

// Engine owns one simulation and advances it a fixed step at a time. It is
// not safe for concurrent use; readers on other goroutines use the
// Publisher.
type Engine struct {
	store  *entity.Store
	finder neighbor.Finder
	forces []physics.ForceModel
	integ  Integrator
	life   *lifecycle.Manager
	field  *field.Field
	params dynamo.Params

	pub    *snapshot.Publisher
	snap   snapshot.Options
	logger *slog.Logger

	step   uint64
	frozen bool
	last   lifecycle.Stats

	metrics   []Metric
	observers []Observer
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine needs a store")
	}
	if opts.Finder == nil {
		return nil, errors.New("engine needs a neighbor finder")
	}
	if opts.Integrator == nil {
		return nil, errors.New("engine needs an integrator")
	}
	if opts.Publisher == nil {
		opts.Publisher = snapshot.NewPublisher()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if changed := opts.Params.Clamp(); len(changed) > 0 {
		opts.Logger.Warn("clamped parameters", "params", changed)
	}

	return &Engine{
		store:  opts.Store,
		finder: opts.Finder,
		forces: opts.Forces,
		integ:  opts.Integrator,
		life:   opts.Lifecycle,
		field:  opts.Field,
		params: opts.Params,
		pub:    opts.Publisher,
		snap:   opts.Snapshot,
		logger: opts.Logger,
	}, nil
}

func (e *Engine) AddMetric(m Metric)     { e.metrics = append(e.metrics, m) }
func (e *Engine) AddObserver(o Observer) { e.observers = append(e.observers, o) }

func (e *Engine) Store() *entity.Store           { return e.store }
func (e *Engine) Field() *field.Field            { return e.field }
func (e *Engine) Publisher() *snapshot.Publisher { return e.pub }
func (e *Engine) Params() dynamo.Params          { return e.params }
func (e *Engine) Step() uint64                   { return e.step }
func (e *Engine) LastStats() lifecycle.Stats     { return e.last }
func (e *Engine) Frozen() bool                   { return e.frozen }
func (e *Engine) SetFrozen(frozen bool)          { e.frozen = frozen }
func (e *Engine) Integrator() Integrator         { return e.integ }
func (e *Engine) Forces() []physics.ForceModel   { return e.forces }
func (e *Engine) Lifecycle() *lifecycle.Manager  { return e.life }

// Totals are the lifecycle counts since the last reset; zero without a lifecycle.
func (e *Engine) Totals() lifecycle.Stats {
	if e.life == nil {
		return lifecycle.Stats{}
	}
	return e.life.Totals()
}

// SetParams clamps p and uses it from the next step on.
func (e *Engine) SetParams(p dynamo.Params) []string {
	changed := p.Clamp()
	e.params = p
	return changed
}

func (e *Engine) SetParam(name string, value float64) error {
	return e.params.SetParam(name, value)
}

// Reset repopulates the store from seed, clears the field and lifecycle and
// publishes the initial snapshot.
func (e *Engine) Reset(seed uint32) error {
	if err := e.store.Reset(seed); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	rng := e.store.Rand()
	if e.field != nil {
		e.field.Reset(rng)
	}
	if e.life != nil {
		e.life.Reset(rng, e.params)
	}
	e.step = 0
	e.last = lifecycle.Stats{}
	e.finder.Rebuild(e.store.Pos, e.store.Alive)
	e.publish()

	e.logger.Debug("reset", "seed", seed, "population", e.store.Len())
	return nil
}

// Advance runs one fixed step of Params.TimeStep. The wall-clock dt is
// ignored so a run depends only on the seed and the step count. A frozen
// engine does nothing.
func (e *Engine) Advance(_ float64) error {
	if e.frozen {
		return nil
	}
	s := e.store

	e.finder.Rebuild(s.Pos, s.Alive)
	for _, f := range e.forces {
		if err := f.Accumulate(s, e.finder, e.params); err != nil {
			return e.fail(fmt.Errorf("%s: %w", f.Name(), err))
		}
	}
	if e.field != nil {
		e.field.ApplyFlow(s, e.params.FlowRate)
	}
	physics.PostPass(s, e.params)

	if err := e.integ.Step(s, e.params.TimeStep); err != nil {
		return e.fail(err)
	}
	if i := firstInvalid(s); i >= 0 {
		return e.fail(&dynamo.SimulationError{Index: i, Wrapped: dynamo.ErrInvalidState})
	}
	e.respawnStrays()

	e.step++
	if e.life != nil {
		e.last = e.life.Step(s, e.finder, e.field, e.params)
	}
	if e.field != nil {
		rng := s.Rand()
		e.field.Move(rng)
		e.field.Replenish(rng)
		e.field.Damp(e.params.FlowDamping)
	}

	e.publish()
	return nil
}

// fail clears the accumulators so a retried step starts clean and stamps the
// current step on the error.
func (e *Engine) fail(err error) error {
	e.store.ClearAcc()
	var se *dynamo.SimulationError
	if errors.As(err, &se) {
		se.Step = e.step
		return err
	}
	return &dynamo.SimulationError{Step: e.step, Index: -1, Wrapped: err}
}

func (e *Engine) respawnStrays() {
	bound := e.params.BoundRadius
	if bound <= 0 {
		return
	}
	s := e.store
	for i := range s.Pos {
		if !s.Alive[i] || r3.Norm(s.Pos[i]) <= bound {
			continue
		}
		s.Respawn(i)
		// spawners fill a cube, which can poke out of the bound sphere
		if n := r3.Norm(s.Pos[i]); n > bound {
			s.Pos[i] = r3.Scale(0.99*bound/n, s.Pos[i])
		}
	}
}

func firstInvalid(s *entity.Store) int {
	for i := range s.Pos {
		if s.Alive[i] && !(pose.IsFinite(s.Pos[i]) && pose.IsFinite(s.Vel[i])) {
			return i
		}
	}
	return -1
}

func (e *Engine) publish() {
	snap := snapshot.Capture(e.step, e.store, e.field, e.snap)
	snap.Totals = e.Totals()
	if e.life != nil {
		if c, ok := e.life.LastCull(); ok && e.step-c.Step < cullVisible {
			snap.Cull = &snapshot.Sphere{Center: c.Center, Radius: c.Radius}
		}
	}
	e.pub.Publish(snap)
}

// Run advances cfg.Steps steps, sampling metrics and observers every
// cfg.SampleEvery steps and once more at the end. Cancellation is checked
// between steps.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := validateRunConfig(cfg); err != nil {
		return nil, err
	}
	for _, m := range e.metrics {
		m.Reset()
	}

	result := &Result{Metrics: make(map[string]float64)}
	e.sample()

	var runErr error
	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		if err := e.Advance(e.params.TimeStep); err != nil {
			runErr = err
			break
		}
		result.StepsTaken++

		if result.StepsTaken%cfg.SampleEvery == 0 {
			e.sample()
		}
	}
	if result.StepsTaken%cfg.SampleEvery != 0 {
		e.sample()
	}

	for _, m := range e.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Population = e.store.LiveCount()
	result.Totals = e.Totals()

	if runErr != nil {
		e.logger.Error("run stopped", "step", e.step, "err", runErr)
	}
	return result, runErr
}

func (e *Engine) sample() {
	for _, m := range e.metrics {
		m.Observe(e.store, e.step)
	}
	for _, o := range e.observers {
		o.OnStep(e)
	}
}

func validateRunConfig(cfg RunConfig) error {
	if cfg.Steps < 0 {
		return fmt.Errorf("steps must not be negative, got %d", cfg.Steps)
	}
	if cfg.SampleEvery < 1 {
		return fmt.Errorf("sample interval must be at least 1, got %d", cfg.SampleEvery)
	}
	return nil
}
