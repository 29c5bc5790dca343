package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/experiment"
	"github.com/san-kum/contractsim/internal/params"
	"github.com/san-kum/contractsim/internal/sim"
)

const (
	DefaultStiffness  = 35.0
	DefaultTMax       = 210.0
	DefaultSweepFrom  = 20.0
	DefaultSweepTo    = 230.0
	DefaultSweepStep  = 5.0
	DefaultSweepTMax  = 500.0
	DefaultSampleStep = 30.0
	DefaultDataDir    = ".contractsim/runs"
	DefaultFigureDir  = "figures"
)

type Config struct {
	Model        string       `yaml:"model"`
	ParamsFile   string       `yaml:"params_file"`
	Stiffness    float64      `yaml:"stiffness"`
	TMax         float64      `yaml:"t_max"`
	InitialForce *float64     `yaml:"initial_force,omitempty"`
	Integrator   string       `yaml:"integrator"`
	Solver       SolverConfig `yaml:"solver"`
	Sweep        SweepConfig  `yaml:"sweep"`
	Output       OutputConfig `yaml:"output"`
}

type SolverConfig struct {
	RelTol    float64 `yaml:"rtol"`
	AbsTol    float64 `yaml:"atol"`
	InitialDt float64 `yaml:"initial_dt,omitempty"`
	MinDt     float64 `yaml:"min_dt,omitempty"`
	MaxDt     float64 `yaml:"max_dt,omitempty"`
	MaxSteps  int     `yaml:"max_steps"`
	MaxOrder  int     `yaml:"max_order"`
}

type SweepConfig struct {
	From       float64 `yaml:"from"`
	To         float64 `yaml:"to"`
	Step       float64 `yaml:"step"`
	TMax       float64 `yaml:"t_max"`
	SampleStep float64 `yaml:"sample_step"`
	Workers    int     `yaml:"workers"`
}

type OutputConfig struct {
	DataDir   string `yaml:"data_dir"`
	FigureDir string `yaml:"figure_dir"`
}

var paramsFiles = map[params.Variant]string{
	params.Full:    "configs/full_model.params",
	params.Density: "configs/density_model.params",
}

// ParamsFileFor is the bundled parameter file of a model variant.
func ParamsFileFor(v params.Variant) string { return paramsFiles[v] }

func DefaultConfig() *Config {
	d := dynamo.DefaultConfig()
	return &Config{
		Model:      params.Full.Short(),
		ParamsFile: ParamsFileFor(params.Full),
		Stiffness:  DefaultStiffness,
		TMax:       DefaultTMax,
		Integrator: experiment.DefaultSolver,
		Solver: SolverConfig{
			RelTol:   d.RelTol,
			AbsTol:   d.AbsTol,
			MaxSteps: d.MaxSteps,
			MaxOrder: d.MaxOrder,
		},
		Sweep: SweepConfig{
			From:       DefaultSweepFrom,
			To:         DefaultSweepTo,
			Step:       DefaultSweepStep,
			TMax:       DefaultSweepTMax,
			SampleStep: DefaultSampleStep,
		},
		Output: OutputConfig{
			DataDir:   DefaultDataDir,
			FigureDir: DefaultFigureDir,
		},
	}
}

// Load reads a YAML file over the defaults. Any failure is a configuration
// error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", params.ErrConfig, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", params.ErrConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Variant() (params.Variant, error) {
	return params.ParseVariant(c.Model)
}

func (c *Config) Validate() error {
	if _, err := c.Variant(); err != nil {
		return err
	}
	if !(c.Stiffness > 0) {
		return fmt.Errorf("%w: stiffness must be positive, got %g", params.ErrConfig, c.Stiffness)
	}
	if !(c.TMax > 0) {
		return fmt.Errorf("%w: t_max must be positive, got %g", params.ErrConfig, c.TMax)
	}
	if err := c.SolverConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", params.ErrConfig, err)
	}
	return nil
}

func (c *Config) SolverConfig() dynamo.Config {
	return dynamo.Config{
		RelTol:    c.Solver.RelTol,
		AbsTol:    c.Solver.AbsTol,
		InitialDt: c.Solver.InitialDt,
		MinDt:     c.Solver.MinDt,
		MaxDt:     c.Solver.MaxDt,
		MaxSteps:  c.Solver.MaxSteps,
		MaxOrder:  c.Solver.MaxOrder,
	}
}

// Experiment converts the file layout into a runnable experiment config.
func (c *Config) Experiment() (experiment.Config, error) {
	v, err := c.Variant()
	if err != nil {
		return experiment.Config{}, err
	}
	return experiment.Config{
		Variant:      v,
		ParamsFile:   c.ParamsFile,
		Stiffness:    c.Stiffness,
		TMax:         c.TMax,
		InitialForce: c.InitialForce,
		Solver:       c.Integrator,
		SolverConfig: c.SolverConfig(),
	}, nil
}

func (c *Config) SweepRun() (sim.SweepConfig, error) {
	kps, err := sim.StiffnessRange(c.Sweep.From, c.Sweep.To, c.Sweep.Step)
	if err != nil {
		return sim.SweepConfig{}, fmt.Errorf("%w: %w", params.ErrConfig, err)
	}
	return sim.SweepConfig{
		Stiffnesses: kps,
		TMax:        c.Sweep.TMax,
		SampleStep:  c.Sweep.SampleStep,
		Workers:     c.Sweep.Workers,
		Solver:      c.SolverConfig(),
	}, nil
}
