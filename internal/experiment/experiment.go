package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/models"
	"github.com/san-kum/contractsim/internal/params"
	"github.com/san-kum/contractsim/internal/sim"
)

type Config struct {
	Variant      params.Variant
	ParamsFile   string
	Params       *params.Set // used instead of ParamsFile when set
	Stiffness    float64
	TMax         float64
	InitialForce *float64
	Solver       string
	SolverConfig dynamo.Config
}

type Experiment struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger
	set      *params.Set
}

func New(cfg Config, registry *Registry, logger *slog.Logger) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Experiment{cfg: cfg, registry: registry, logger: logger}
}

// Setup loads the parameter set. Configuration errors surface here, before
// any model is built.
func (e *Experiment) Setup() error {
	if e.cfg.Params != nil {
		if e.cfg.Variant != "" && e.cfg.Params.Variant() != e.cfg.Variant {
			return fmt.Errorf("%w: parameters are for %s, run asks for %s", params.ErrConfig, e.cfg.Params.Variant(), e.cfg.Variant)
		}
		e.set = e.cfg.Params
		return nil
	}
	if e.cfg.ParamsFile == "" {
		return fmt.Errorf("%w: no parameter file given", params.ErrConfig)
	}
	set, err := params.LoadFile(e.cfg.Variant, e.cfg.ParamsFile, e.logger)
	if err != nil {
		return err
	}
	e.set = set
	return nil
}

func (e *Experiment) Params() *params.Set { return e.set }

// Build assembles a simulator and start state for one pillar stiffness.
func (e *Experiment) Build(stiffness float64) (*sim.Simulator, dynamo.State, error) {
	if e.set == nil {
		return nil, nil, fmt.Errorf("experiment not setup")
	}
	m, err := models.New(e.set, stiffness, e.logger)
	if err != nil {
		return nil, nil, err
	}
	solver, err := e.registry.Solver(e.cfg.Solver, e.logger)
	if err != nil {
		return nil, nil, err
	}
	x0 := m.InitialState()
	if e.cfg.InitialForce != nil {
		if at, ok := m.(interface{ InitialStateAt(float64) dynamo.State }); ok {
			x0 = at.InitialStateAt(*e.cfg.InitialForce)
		}
	}
	return sim.New(m, solver, e.logger), x0, nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	s, x0, err := e.Build(e.cfg.Stiffness)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, x0, e.cfg.TMax, e.cfg.SolverConfig)
}

// Sweep repeats the run over a stiffness range; TMax and SolverConfig of
// sc are filled from the experiment when unset.
func (e *Experiment) Sweep(ctx context.Context, sc sim.SweepConfig) ([]sim.SweepPoint, error) {
	if sc.TMax == 0 {
		sc.TMax = e.cfg.TMax
	}
	if sc.Solver == (dynamo.Config{}) {
		sc.Solver = e.cfg.SolverConfig
	}
	return sim.Sweep(ctx, e.Build, sc, e.logger)
}
