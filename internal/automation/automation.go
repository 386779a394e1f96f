// Package automation runs scripted batches of simulations: scenario files
// and one-parameter sweeps.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/swarmlab/internal/config"
	"github.com/san-kum/swarmlab/internal/experiment"
	"github.com/san-kum/swarmlab/internal/sim"
	"github.com/san-kum/swarmlab/internal/storage"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run. Mode and Preset pick the starting config; the
// remaining fields override it when set.
type ScenarioStep struct {
	Mode   string             `yaml:"mode"`
	Preset string             `yaml:"preset"`
	Seed   uint32             `yaml:"seed"`
	Steps  int                `yaml:"steps"`
	Count  int                `yaml:"count"`
	Params map[string]float64 `yaml:"params"`
}

// StepResult pairs a finished run with the id it was stored under.
type StepResult struct {
	RunID  string
	Mode   string
	Result *sim.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &scenario, nil
}

// Config resolves a step to a validated config.
func (s ScenarioStep) Config() (*config.Config, error) {
	var cfg *config.Config
	if s.Preset != "" {
		cfg = config.GetPreset(s.Mode, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s/%s", s.Mode, s.Preset)
		}
	} else {
		c, err := config.ForMode(s.Mode)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	if s.Seed != 0 {
		cfg.Seed = s.Seed
	}
	if s.Steps > 0 {
		cfg.Steps = s.Steps
	}
	if s.Count > 0 {
		cfg.Count = s.Count
		cfg.Capacity = max(cfg.Capacity, s.Count)
	}
	for name, v := range s.Params {
		if err := cfg.Params.SetParam(name, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// RunScenario executes the steps in order, storing each run's telemetry.
// It stops at the first failing step.
func RunScenario(ctx context.Context, scenario *Scenario, st *storage.Store, logger *slog.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		logger.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "mode", step.Mode)

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		runID, result, err := runStored(ctx, cfg, st, logger)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, StepResult{RunID: runID, Mode: cfg.Mode, Result: result})
	}
	return results, nil
}

func runStored(ctx context.Context, cfg *config.Config, st *storage.Store, logger *slog.Logger) (string, *sim.Result, error) {
	exp, err := experiment.New(cfg, nil, logger)
	if err != nil {
		return "", nil, err
	}
	eng, err := exp.Build(cfg.Seed)
	if err != nil {
		return "", nil, err
	}
	for _, m := range exp.Metrics() {
		eng.AddMetric(m)
	}

	run, err := st.Begin(cfg)
	if err != nil {
		return "", nil, err
	}
	eng.AddObserver(run)

	result, runErr := eng.Run(ctx, exp.RunConfig())
	if result == nil {
		return run.ID(), nil, errors.Join(runErr, run.Finish(nil, 0, runErr))
	}
	if err := run.Finish(result.Metrics, result.Population, runErr); err != nil {
		return run.ID(), result, err
	}
	return run.ID(), result, runErr
}

// ParameterSweep runs one config across evenly spaced values of a parameter.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

type SweepResult struct {
	ParamValue float64
	Population int
	Metrics    map[string]float64
}

// RunSweep executes a parameter sweep. Every value reuses the base seed so
// the parameter is the only difference between runs.
func RunSweep(ctx context.Context, sweep *ParameterSweep, logger *slog.Logger) ([]SweepResult, error) {
	if sweep.NumSteps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 values, got %d", sweep.NumSteps)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)
	paramStep := (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep

		cfg := sweep.Base.Clone()
		if err := cfg.Params.SetParam(sweep.ParamName, paramVal); err != nil {
			return results, err
		}
		exp, err := experiment.New(cfg, nil, logger)
		if err != nil {
			return results, err
		}
		eng, err := exp.Build(cfg.Seed)
		if err != nil {
			return results, err
		}
		for _, m := range exp.Metrics() {
			eng.AddMetric(m)
		}

		result, err := eng.Run(ctx, exp.RunConfig())
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}
		results = append(results, SweepResult{
			ParamValue: paramVal,
			Population: result.Population,
			Metrics:    result.Metrics,
		})

		logger.Info("sweep", "param", sweep.ParamName, "value", paramVal, "done", i+1, "of", sweep.NumSteps)
	}
	return results, nil
}
