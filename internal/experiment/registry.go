package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/swarmlab/internal/config"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/integrators"
	"github.com/san-kum/swarmlab/internal/metrics"
	"github.com/san-kum/swarmlab/internal/neighbor"
	"github.com/san-kum/swarmlab/internal/physics"
	"github.com/san-kum/swarmlab/internal/sim"
)

// minCellSize keeps the hash usable for modes that query with tiny radii.
const minCellSize = 0.05

type Registry struct {
	spawners    map[string]func(*config.Config) entity.Spawner
	finders     map[string]func(*config.Config) neighbor.Finder
	forces      map[string]func(*config.Config) physics.ForceModel
	integrators map[string]func() sim.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		spawners:    make(map[string]func(*config.Config) entity.Spawner),
		finders:     make(map[string]func(*config.Config) neighbor.Finder),
		forces:      make(map[string]func(*config.Config) physics.ForceModel),
		integrators: make(map[string]func() sim.Integrator),
	}

	r.spawners["cluster"] = func(*config.Config) entity.Spawner { return entity.NewClusterSpawner() }
	r.spawners["orbit"] = func(c *config.Config) entity.Spawner {
		o := entity.NewOrbitSpawner(c.Params.G)
		o.Softening = c.Params.MinDistance
		return o
	}
	r.spawners["agent"] = func(*config.Config) entity.Spawner { return entity.NewAgentSpawner(false) }
	r.spawners["evolving"] = func(*config.Config) entity.Spawner { return entity.NewAgentSpawner(true) }

	r.finders["brute"] = func(*config.Config) neighbor.Finder { return neighbor.NewBruteForce() }
	r.finders["hash"] = func(c *config.Config) neighbor.Finder {
		return neighbor.NewSpatialHash(max(c.Params.MaxRadius(), minCellSize))
	}

	r.forces["gravity"] = func(*config.Config) physics.ForceModel { return physics.NewGravity() }
	r.forces["barneshut"] = func(*config.Config) physics.ForceModel { return physics.NewBarnesHut() }
	r.forces["flocking"] = func(c *config.Config) physics.ForceModel {
		return physics.NewFlocking(c.Spawner == "evolving")
	}

	r.integrators["symplectic"] = func() sim.Integrator { return integrators.NewSemiImplicitEuler() }
	r.integrators["euler"] = func() sim.Integrator { return integrators.NewEuler() }

	return r
}

func (r *Registry) GetSpawner(cfg *config.Config) (entity.Spawner, error) {
	fn, ok := r.spawners[cfg.Spawner]
	if !ok {
		return nil, fmt.Errorf("unknown spawner: %s", cfg.Spawner)
	}
	return fn(cfg), nil
}

func (r *Registry) GetFinder(cfg *config.Config) (neighbor.Finder, error) {
	fn, ok := r.finders[cfg.Finder]
	if !ok {
		return nil, fmt.Errorf("unknown finder: %s", cfg.Finder)
	}
	return fn(cfg), nil
}

func (r *Registry) GetForce(cfg *config.Config) (physics.ForceModel, error) {
	fn, ok := r.forces[cfg.Force]
	if !ok {
		return nil, fmt.Errorf("unknown force: %s", cfg.Force)
	}
	return fn(cfg), nil
}

func (r *Registry) GetIntegrator(name string) (sim.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListSpawners() []string    { return keys(r.spawners) }
func (r *Registry) ListFinders() []string     { return keys(r.finders) }
func (r *Registry) ListForces() []string      { return keys(r.forces) }
func (r *Registry) ListIntegrators() []string { return keys(r.integrators) }

func keys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics picks the metrics that mean something for the mode.
func (r *Registry) DefaultMetrics(cfg *config.Config) []sim.Metric {
	ms := []sim.Metric{
		metrics.NewPopulation(),
		metrics.NewKineticEnergy(),
		metrics.NewMomentumDrift(),
		metrics.NewMaxSpeed(),
		metrics.NewCohesion(),
	}
	switch cfg.Force {
	case "gravity", "barneshut":
		ms = append(ms, metrics.NewEnergyDrift(cfg.Params.G, cfg.Params.MinDistance))
	}
	if cfg.Lifecycle {
		ms = append(ms, metrics.NewMeanFitness())
	}
	return ms
}
