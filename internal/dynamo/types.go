package dynamo

import (
	"context"
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is an autonomous or time-dependent ODE right-hand side.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

// Solver integrates a System from t=0 to tMax.
type Solver interface {
	Name() string
	Solve(ctx context.Context, sys System, x0 State, tMax float64, cfg Config) (*Trajectory, Stats, error)
}

type Config struct {
	RelTol    float64
	AbsTol    float64
	InitialDt float64 // 0 picks a starting step from the initial slope
	MinDt     float64
	MaxDt     float64 // 0 means unbounded
	MaxSteps  int     // 0 means unbounded
	MaxOrder  int     // BDF only
}

func DefaultConfig() Config {
	return Config{
		RelTol:   1e-6,
		AbsTol:   1e-9,
		MinDt:    1e-12,
		MaxSteps: 500000,
		MaxOrder: 5,
	}
}

func (c Config) Validate() error {
	if c.RelTol <= 0 || c.AbsTol <= 0 {
		return fmt.Errorf("%w: tolerances must be positive (rtol=%g, atol=%g)", ErrParameterBounds, c.RelTol, c.AbsTol)
	}
	if c.MinDt < 0 || c.MaxDt < 0 || c.InitialDt < 0 {
		return fmt.Errorf("%w: step bounds must be non-negative", ErrParameterBounds)
	}
	if c.MaxDt > 0 && c.MinDt > c.MaxDt {
		return fmt.Errorf("%w: min dt %g exceeds max dt %g", ErrParameterBounds, c.MinDt, c.MaxDt)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps must be non-negative", ErrParameterBounds)
	}
	return nil
}

// Stats mirrors the bookkeeping a solver keeps while stepping.
type Stats struct {
	Steps          int
	Rejected       int
	Evaluations    int
	Jacobians      int
	NewtonFailures int
	MaxOrderUsed   int
	LastDt         float64
}

// Trajectory is the adaptively spaced solution of one Solve call.
type Trajectory struct {
	Times  []float64
	States []State
}

func NewTrajectory(capacity int) *Trajectory {
	return &Trajectory{
		Times:  make([]float64, 0, capacity),
		States: make([]State, 0, capacity),
	}
}

func (tr *Trajectory) Append(t float64, x State) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x.Clone())
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Component returns the i-th state entry across the whole trajectory.
func (tr *Trajectory) Component(i int) []float64 {
	out := make([]float64, len(tr.States))
	for k, x := range tr.States {
		out[k] = x[i]
	}
	return out
}

func (tr *Trajectory) Final() State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

// Validate checks the grid invariants: starts at 0, strictly increasing.
func (tr *Trajectory) Validate() error {
	if len(tr.Times) == 0 {
		return fmt.Errorf("empty trajectory")
	}
	if len(tr.Times) != len(tr.States) {
		return fmt.Errorf("%w: %d times for %d states", ErrDimensionMismatch, len(tr.Times), len(tr.States))
	}
	if tr.Times[0] != 0 {
		return fmt.Errorf("trajectory starts at t=%g, want 0", tr.Times[0])
	}
	for i := 1; i < len(tr.Times); i++ {
		if tr.Times[i] <= tr.Times[i-1] {
			return fmt.Errorf("time grid not increasing at index %d (%g <= %g)", i, tr.Times[i], tr.Times[i-1])
		}
	}
	return nil
}
