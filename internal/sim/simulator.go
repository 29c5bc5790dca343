// Package sim runs a contraction model through a solver and derives the
// reported quantities from the resulting trajectory.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/metrics"
	"github.com/san-kum/contractsim/internal/models"
	"github.com/san-kum/contractsim/internal/params"
)

// Result is the aligned output of one run. Every slice has one entry per
// trajectory point.
type Result struct {
	Variant   params.Variant
	Solver    string
	Stiffness float64
	TMax      float64

	Times         []float64
	States        []dynamo.State
	Displacements []float64
	Velocities    []float64
	Transmitted   []float64
	Dissipated    []float64

	TransmittedWork float64
	DissipatedWork  float64
	Summary         metrics.Summary

	Stats        dynamo.Stats
	Degeneracies int64
}

func (r *Result) Forces() []float64 {
	out := make([]float64, len(r.States))
	for i, x := range r.States {
		out[i] = x[0]
	}
	return out
}

type degeneracyCounter interface {
	Degeneracies() int64
}

type Simulator struct {
	model  models.Model
	solver dynamo.Solver
	logger *slog.Logger
}

func New(model models.Model, solver dynamo.Solver, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{model: model, solver: solver, logger: logger}
}

func (s *Simulator) Model() models.Model { return s.model }

// Run integrates from x0 (the model's initial state when nil) up to tMax.
// When the solver stops early the partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, tMax float64, cfg dynamo.Config) (*Result, error) {
	if x0 == nil {
		x0 = s.model.InitialState()
	}

	tr, stats, solveErr := s.solver.Solve(ctx, s.model, x0, tMax, cfg)
	var simErr *dynamo.SimulationError
	if solveErr != nil && (!errors.As(solveErr, &simErr) || tr == nil || tr.Len() == 0) {
		return nil, fmt.Errorf("solve %s: %w", s.model.Variant().Short(), solveErr)
	}

	res, err := s.derive(tr, tMax)
	if err != nil {
		return nil, err
	}
	res.Stats = stats
	if dc, ok := s.model.(degeneracyCounter); ok {
		res.Degeneracies = dc.Degeneracies()
	}
	if res.Degeneracies > 0 {
		s.logger.Warn("kinetics rates were clamped during the run",
			"count", res.Degeneracies, "stiffness", res.Stiffness)
	}

	if solveErr != nil {
		s.logger.Warn("solver stopped early",
			"solver", s.solver.Name(), "t", simErr.Time, "step", simErr.Step, "err", simErr.Wrapped)
		return res, fmt.Errorf("solve %s: %w", s.model.Variant().Short(), solveErr)
	}

	s.logger.Info("run complete",
		"model", s.model.Variant().Short(),
		"solver", s.solver.Name(),
		"stiffness", res.Stiffness,
		"points", len(res.Times),
		"final_force", res.Summary.FinalForce,
		"transmitted_pJ", metrics.PicoJoules(res.TransmittedWork),
		"dissipated_pJ", metrics.PicoJoules(res.DissipatedWork),
	)
	return res, nil
}

func (s *Simulator) derive(tr *dynamo.Trajectory, tMax float64) (*Result, error) {
	kp := s.model.Stiffness()
	hEta, err := s.model.Parameter("h_eta")
	if err != nil {
		return nil, err
	}

	n := tr.Len()
	res := &Result{
		Variant:       s.model.Variant(),
		Solver:        s.solver.Name(),
		Stiffness:     kp,
		TMax:          tMax,
		Times:         tr.Times,
		States:        tr.States,
		Displacements: make([]float64, n),
		Velocities:    make([]float64, n),
	}
	for i, x := range tr.States {
		res.Displacements[i] = x[0] / kp
		res.Velocities[i] = s.model.Velocity(tr.Times[i], x)
	}

	if res.Transmitted, err = metrics.TransmittedPower(res.Displacements, res.Velocities, kp); err != nil {
		return nil, err
	}
	if res.Dissipated, err = metrics.DissipatedPower(res.Velocities, hEta); err != nil {
		return nil, err
	}
	res.Summary, err = metrics.Summarize(metrics.Series{
		Times:       res.Times,
		Forces:      res.Forces(),
		Velocities:  res.Velocities,
		Transmitted: res.Transmitted,
		Dissipated:  res.Dissipated,
	})
	if err != nil {
		return nil, err
	}
	res.TransmittedWork = res.Summary.TransmittedWork
	res.DissipatedWork = res.Summary.DissipatedWork
	return res, nil
}
