package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/contractsim/internal/analysis"
	"github.com/san-kum/contractsim/internal/dynamo"
)

// Builder prepares an independent simulator and start state for one pillar
// stiffness. A nil state means the model's own initial state.
type Builder func(stiffness float64) (*Simulator, dynamo.State, error)

type SweepConfig struct {
	Stiffnesses []float64
	TMax        float64
	SampleStep  float64 // resampling step for the numerical velocity
	Workers     int     // 0 means GOMAXPROCS
	Solver      dynamo.Config
}

type SweepPoint struct {
	Stiffness       float64 `json:"stiffness"`
	FinalForce      float64 `json:"final_force"`
	PeakVelocity    float64 `json:"peak_velocity"`
	PeakModelVel    float64 `json:"peak_model_velocity"`
	TransmittedWork float64 `json:"transmitted_work"`
	DissipatedWork  float64 `json:"dissipated_work"`
	Points          int     `json:"points"`
	Degeneracies    int64   `json:"degeneracies"`
}

// StiffnessRange returns from, from+step, ... strictly below to.
func StiffnessRange(from, to, step float64) ([]float64, error) {
	if !(step > 0) || !(from > 0) || to <= from {
		return nil, fmt.Errorf("%w: stiffness range [%g, %g) step %g", dynamo.ErrParameterBounds, from, to, step)
	}
	n := int(math.Ceil((to - from) / step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		kp := from + float64(i)*step
		if kp >= to {
			break
		}
		out = append(out, kp)
	}
	return out, nil
}

// Sweep runs every stiffness on a bounded worker pool. The first failure
// cancels the remaining runs.
func Sweep(ctx context.Context, build Builder, cfg SweepConfig, logger *slog.Logger) ([]SweepPoint, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Stiffnesses) == 0 {
		return nil, fmt.Errorf("%w: empty stiffness sweep", dynamo.ErrParameterBounds)
	}
	if !(cfg.SampleStep > 0) || cfg.TMax < 2*cfg.SampleStep {
		return nil, fmt.Errorf("%w: sample step %g does not fit t_max %g twice", dynamo.ErrParameterBounds, cfg.SampleStep, cfg.TMax)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := make([]SweepPoint, len(cfg.Stiffnesses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, kp := range cfg.Stiffnesses {
		g.Go(func() error {
			s, x0, err := build(kp)
			if err != nil {
				return fmt.Errorf("stiffness %g: %w", kp, err)
			}
			res, err := s.Run(gctx, x0, cfg.TMax, cfg.Solver)
			if err != nil {
				return fmt.Errorf("stiffness %g: %w", kp, err)
			}
			p, err := pointFrom(res, cfg.SampleStep)
			if err != nil {
				return fmt.Errorf("stiffness %g: %w", kp, err)
			}
			points[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("sweep complete", "runs", len(points), "workers", workers)
	return points, nil
}

func pointFrom(res *Result, sampleStep float64) (SweepPoint, error) {
	ts, ds := analysis.Discretize(res.Times, res.Displacements, sampleStep)
	v, err := analysis.NumericalVelocity(ts, ds)
	if err != nil {
		return SweepPoint{}, err
	}
	return SweepPoint{
		Stiffness:       res.Stiffness,
		FinalForce:      res.Summary.FinalForce,
		PeakVelocity:    analysis.Peak(v),
		PeakModelVel:    res.Summary.PeakVelocity,
		TransmittedWork: res.TransmittedWork,
		DissipatedWork:  res.DissipatedWork,
		Points:          len(res.Times),
		Degeneracies:    res.Degeneracies,
	}, nil
}
