// Package optim searches parameter grids for the setting that scores best
// on a run metric.
package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/swarmlab/internal/config"
	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/experiment"
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize flips the search to keep the largest metric value.
	Maximize bool
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search runs every grid point on a copy of base and returns the best
// parameters, their score and all trials in grid order. Points run in
// parallel, one engine per goroutine.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (map[string]float64, float64, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, nil, fmt.Errorf("%d params but %d ranges", len(g.paramNames), len(g.ranges))
	}
	for _, name := range g.paramNames {
		if _, ok := dynamo.Bounds[name]; !ok {
			return nil, 0, nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
		}
	}

	var points []map[string]float64
	g.collect(0, make(map[string]float64), &points)

	trials := make([]Trial, len(points))
	dynamo.ParallelFor(len(points), 1, func(start, end int) {
		for i := start; i < end; i++ {
			val, err := evaluate(ctx, base, points[i], metricName)
			trials[i] = Trial{Params: points[i], Value: val, Err: err}
		}
	})

	best := math.Inf(1)
	if g.Maximize {
		best = math.Inf(-1)
	}
	var bestParams map[string]float64
	for _, t := range trials {
		if t.Err != nil {
			continue
		}
		if (g.Maximize && t.Value > best) || (!g.Maximize && t.Value < best) {
			best = t.Value
			bestParams = t.Params
		}
	}
	if bestParams == nil {
		return nil, 0, trials, fmt.Errorf("no grid point finished")
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.collect(depth+1, newParams, out)
	}
}

func evaluate(ctx context.Context, base *config.Config, params map[string]float64, metricName string) (float64, error) {
	cfg := base.Clone()
	for name, v := range params {
		if err := cfg.Params.SetParam(name, v); err != nil {
			return 0, err
		}
	}
	exp, err := experiment.New(cfg, nil, nil)
	if err != nil {
		return 0, err
	}
	eng, err := exp.Build(cfg.Seed)
	if err != nil {
		return 0, err
	}
	for _, m := range exp.Metrics() {
		eng.AddMetric(m)
	}

	result, err := eng.Run(ctx, exp.RunConfig())
	if err != nil {
		return 0, err
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("metric %s not recorded for mode %s", metricName, cfg.Mode)
	}
	return val, nil
}
