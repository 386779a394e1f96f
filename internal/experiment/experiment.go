// Package experiment turns a resolved config into a ready-to-run engine.
package experiment

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/swarmlab/internal/config"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/field"
	"github.com/san-kum/swarmlab/internal/lifecycle"
	"github.com/san-kum/swarmlab/internal/physics"
	"github.com/san-kum/swarmlab/internal/sim"
	"github.com/san-kum/swarmlab/internal/snapshot"
)

type Experiment struct {
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger
}

func New(cfg *config.Config, registry *Registry, logger *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Experiment{cfg: cfg, registry: registry, logger: logger}, nil
}

func (x *Experiment) Config() *config.Config { return x.cfg }

// Build assembles an engine for seed and resets it, so the first snapshot is
// already published.
func (x *Experiment) Build(seed uint32) (*sim.Engine, error) {
	cfg := x.cfg
	reg := x.registry

	spawner, err := reg.GetSpawner(cfg)
	if err != nil {
		return nil, err
	}
	store, err := entity.NewStore(cfg.Capacity, cfg.Count, spawner)
	if err != nil {
		return nil, err
	}
	finder, err := reg.GetFinder(cfg)
	if err != nil {
		return nil, err
	}
	force, err := reg.GetForce(cfg)
	if err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	logger := x.logger.With("mode", cfg.Mode, "seed", seed)
	opts := sim.Options{
		Store:      store,
		Finder:     finder,
		Forces:     []physics.ForceModel{force},
		Integrator: integ,
		Params:     cfg.Params,
		Logger:     logger,
		Snapshot:   snapshot.Options{LifespanAlpha: cfg.Lifecycle},
	}
	if cfg.Lifecycle {
		opts.Lifecycle = lifecycle.NewManager(logger)
	}
	if cfg.Food {
		opts.Field = field.New(cfg.Field)
	}

	eng, err := sim.New(opts)
	if err != nil {
		return nil, err
	}
	if err := eng.Reset(seed); err != nil {
		return nil, fmt.Errorf("seed %d: %w", seed, err)
	}
	return eng, nil
}

// Metrics returns a fresh metric set for one run.
func (x *Experiment) Metrics() []sim.Metric {
	return x.registry.DefaultMetrics(x.cfg)
}

// Ensemble runs the experiment over numRuns consecutive seeds.
func (x *Experiment) Ensemble(numRuns int) *sim.Ensemble {
	return sim.NewEnsemble(x.Build, numRuns, x.cfg.Seed).WithMetrics(x.Metrics)
}

func (x *Experiment) RunConfig() sim.RunConfig {
	return sim.RunConfig{Steps: x.cfg.Steps, SampleEvery: x.cfg.SampleEvery}
}
