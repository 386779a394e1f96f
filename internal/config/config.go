package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/field"
)

const (
	ModeGravity   = "gravity"
	ModeOrbit     = "orbit"
	ModeFlocking  = "flocking"
	ModeEvolution = "evolution"
)

const (
	DefaultSeed        = 1
	DefaultSteps       = 1000
	DefaultCount       = 500
	DefaultCapacity    = 2000
	DefaultSampleEvery = 10
)

func Modes() []string {
	return []string{ModeGravity, ModeOrbit, ModeFlocking, ModeEvolution}
}

type Config struct {
	Mode        string        `yaml:"mode"`
	Spawner     string        `yaml:"spawner"`
	Force       string        `yaml:"force"`
	Finder      string        `yaml:"finder"`
	Integrator  string        `yaml:"integrator"`
	Seed        uint32        `yaml:"seed"`
	Steps       int           `yaml:"steps"`
	Count       int           `yaml:"count"`
	Capacity    int           `yaml:"capacity"`
	SampleEvery int           `yaml:"sample_every"`
	Lifecycle   bool          `yaml:"lifecycle"`
	Food        bool          `yaml:"food"`
	Params      dynamo.Params `yaml:"params"`
	Field       field.Config  `yaml:"field"`
}

// DefaultConfig returns the gravity setup.
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeGravity,
		Spawner:     "cluster",
		Force:       "gravity",
		Finder:      "hash",
		Integrator:  "symplectic",
		Seed:        DefaultSeed,
		Steps:       DefaultSteps,
		Count:       DefaultCount,
		Capacity:    DefaultCapacity,
		SampleEvery: DefaultSampleEvery,
		Params:      dynamo.DefaultParams(),
		Field:       field.DefaultConfig(),
	}
}

// ForMode returns the defaults for a simulation mode.
func ForMode(mode string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Mode = mode
	switch mode {
	case ModeGravity:
	case ModeOrbit:
		cfg.Spawner = "orbit"
		cfg.Count = 50
		cfg.Capacity = 50
		cfg.Params.DragFactor = 0
		cfg.Params.MaxAccel = 0
		cfg.Params.G = 0.0005
	case ModeFlocking:
		cfg.Spawner = "agent"
		cfg.Force = "flocking"
		cfg.Params.CruiseSpeed = 0.2
	case ModeEvolution:
		cfg.Spawner = "evolving"
		cfg.Force = "flocking"
		cfg.Lifecycle = true
		cfg.Food = true
		cfg.Params.CruiseSpeed = 0.2
	default:
		return nil, fmt.Errorf("unknown mode: %s", mode)
	}
	return cfg, nil
}

// Load reads a config file on top of the defaults for the mode it names.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var head struct {
		Mode string `yaml:"mode"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if head.Mode == "" {
		head.Mode = ModeGravity
	}
	base, err := ForMode(head.Mode)
	if err != nil {
		return nil, err
	}
	return overlay(path, data, base)
}

// Overlay reads a config file on top of base, leaving base untouched.
func Overlay(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return overlay(path, data, base)
}

func overlay(path string, data []byte, base *Config) (*Config, error) {
	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if changed := cfg.Params.Clamp(); len(changed) > 0 {
		slog.Warn("clamped parameters", "file", path, "params", changed)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the structural settings. Parameter ranges are handled by
// Params.Clamp.
func (c *Config) Validate() error {
	if !slices.Contains(Modes(), c.Mode) {
		return fmt.Errorf("unknown mode: %s", c.Mode)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.Count < 0 || c.Count > c.Capacity {
		return fmt.Errorf("count %d outside [0, %d]", c.Count, c.Capacity)
	}
	if c.Steps < 0 {
		return fmt.Errorf("steps must not be negative, got %d", c.Steps)
	}
	if c.SampleEvery < 1 {
		return fmt.Errorf("sample_every must be at least 1, got %d", c.SampleEvery)
	}
	if c.Params.TimeStep <= 0 {
		return fmt.Errorf("time_step must be positive, got %f", c.Params.TimeStep)
	}
	return nil
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
