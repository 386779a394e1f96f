package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/swarmlab/internal/dynamo"
)

// Builder makes a fresh engine, already reset to seed.
type Builder func(seed uint32) (*Engine, error)

// Ensemble runs independent engines with consecutive seeds. Runs execute in
// parallel; every engine stays on a single goroutine.
type Ensemble struct {
	build     Builder
	metrics   func() []Metric
	numRuns   int
	seedStart uint32
}

func NewEnsemble(build Builder, numRuns int, seedStart uint32) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, seedStart: seedStart}
}

// WithMetrics gives every run its own metric set.
func (e *Ensemble) WithMetrics(fn func() []Metric) *Ensemble {
	e.metrics = fn
	return e
}

// Seeds lists the seed of each run in result order.
func (e *Ensemble) Seeds() []uint32 {
	seeds := make([]uint32, e.numRuns)
	for i := range seeds {
		seeds[i] = e.seedStart + uint32(i)
	}
	return seeds
}

func (e *Ensemble) Run(ctx context.Context, cfg RunConfig) ([]*Result, error) {
	if e.numRuns < 1 {
		return nil, fmt.Errorf("ensemble needs at least one run, got %d", e.numRuns)
	}
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)
	seeds := e.Seeds()

	dynamo.ParallelFor(e.numRuns, 1, func(start, end int) {
		for idx := start; idx < end; idx++ {
			eng, err := e.build(seeds[idx])
			if err != nil {
				errs[idx] = fmt.Errorf("seed %d: %w", seeds[idx], err)
				continue
			}
			if e.metrics != nil {
				for _, m := range e.metrics() {
					eng.AddMetric(m)
				}
			}
			results[idx], errs[idx] = eng.Run(ctx, cfg)
			if errs[idx] != nil {
				errs[idx] = fmt.Errorf("seed %d: %w", seeds[idx], errs[idx])
			}
		}
	})

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
