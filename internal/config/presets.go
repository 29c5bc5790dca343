package config

import (
	"sort"

	"github.com/san-kum/contractsim/internal/params"
)

func preset(v params.Variant, kp, tMax float64) *Config {
	c := DefaultConfig()
	c.Model = v.Short()
	c.ParamsFile = ParamsFileFor(v)
	c.Stiffness = kp
	c.TMax = tMax
	return c
}

var Presets = map[string]map[string]*Config{
	"full": {
		"demo":  preset(params.Full, 35, 210),
		"stiff": preset(params.Full, 100, 210),
		"long":  preset(params.Full, 35, 500),
	},
	"density": {
		"demo":  preset(params.Density, 35, 210),
		"stiff": preset(params.Density, 100, 210),
		"long":  preset(params.Density, 35, 500),
	},
}

// GetPreset returns a copy so callers may override fields freely.
func GetPreset(model, name string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[name]
	if !ok {
		return nil
	}
	c := *cfg
	if cfg.InitialForce != nil {
		f := *cfg.InitialForce
		c.InitialForce = &f
	}
	return &c
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func PresetModels() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
