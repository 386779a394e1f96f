package config

import "sort"

var Presets = map[string]map[string]*Config{
	ModeGravity: {
		"cluster": preset(ModeGravity, func(c *Config) {
			c.Count = 500
		}),
		"galaxy": preset(ModeGravity, func(c *Config) {
			c.Force = "barneshut"
			c.Count, c.Capacity = 2000, 2000
			c.Params.Theta = 0.7
		}),
		"lopsided": preset(ModeGravity, func(c *Config) {
			c.Params.Symmetry = 0.5
		}),
	},
	ModeOrbit: {
		"solar": preset(ModeOrbit, func(c *Config) {
			c.Count, c.Capacity = 9, 9
			c.Steps = 5000
		}),
		"belt": preset(ModeOrbit, func(c *Config) {
			c.Count, c.Capacity = 200, 200
			c.Force = "barneshut"
		}),
	},
	ModeFlocking: {
		"boids": preset(ModeFlocking, func(c *Config) {}),
		"tight": preset(ModeFlocking, func(c *Config) {
			c.Params.LocalRadius = 0.3
			c.Params.MoveRate = 0.8
			c.Params.TurnRate = 0.4
		}),
		"loose": preset(ModeFlocking, func(c *Config) {
			c.Params.LocalRadius = 0.08
			c.Params.SeparationDistance = 0.05
		}),
	},
	ModeEvolution: {
		"ecosystem": preset(ModeEvolution, func(c *Config) {}),
		"crowded": preset(ModeEvolution, func(c *Config) {
			c.Count, c.Capacity = 1500, 1500
			c.Field.MinFood, c.Field.MaxFood = 50, 200
		}),
		"famine": preset(ModeEvolution, func(c *Config) {
			c.Field.MinFood, c.Field.MaxFood = 0, 20
			c.Field.ReplenishBatch = 5
		}),
	},
}

func preset(mode string, fn func(*Config)) *Config {
	cfg, err := ForMode(mode)
	if err != nil {
		panic(err)
	}
	fn(cfg)
	return cfg
}

// GetPreset returns a copy of the named preset or nil.
func GetPreset(mode, name string) *Config {
	modePresets, ok := Presets[mode]
	if !ok {
		return nil
	}
	cfg, ok := modePresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(mode string) []string {
	modePresets, ok := Presets[mode]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modePresets))
	for name := range modePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
