package integrators

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/contractsim/internal/dynamo"
)

// prepare checks the inputs shared by every solver and fills config gaps.
func prepare(sys dynamo.System, x0 dynamo.State, tMax float64, cfg dynamo.Config) (dynamo.Config, error) {
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if len(x0) == 0 || len(x0) != sys.StateDim() {
		return cfg, fmt.Errorf("%w: state has %d entries, system expects %d", dynamo.ErrDimensionMismatch, len(x0), sys.StateDim())
	}
	if !(tMax > 0) || math.IsInf(tMax, 0) {
		return cfg, fmt.Errorf("%w: t_max must be positive and finite, got %g", dynamo.ErrParameterBounds, tMax)
	}
	if cfg.MinDt == 0 {
		cfg.MinDt = 1e-12 * tMax
	}
	if cfg.MaxDt == 0 || cfg.MaxDt > tMax {
		cfg.MaxDt = tMax
	}
	return cfg, nil
}

func fail(step int, t float64, x dynamo.State, err error) *dynamo.SimulationError {
	return &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: err}
}

func canceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
	default:
		return nil
	}
}

// scales returns atol + rtol*max(|a|,|b|) per component.
func scales(dst []float64, a, b dynamo.State, cfg dynamo.Config) []float64 {
	for i := range a {
		dst[i] = cfg.AbsTol + cfg.RelTol*math.Max(math.Abs(a[i]), math.Abs(b[i]))
	}
	return dst
}

// rmsNorm is the root mean square of v scaled componentwise by sc.
func rmsNorm(v, sc []float64) float64 {
	sum := 0.0
	for i := range v {
		e := v[i] / sc[i]
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(v)))
}

// initialStep estimates a starting step for a method of the given order
// from the size of the state and of its first two derivatives.
func initialStep(sys dynamo.System, x0, f0 dynamo.State, order int, tMax float64, cfg dynamo.Config) (float64, int) {
	if cfg.InitialDt > 0 {
		return math.Min(cfg.InitialDt, tMax), 0
	}
	sc := scales(make([]float64, len(x0)), x0, x0, cfg)
	d0 := rmsNorm(x0, sc)
	d1 := rmsNorm(f0, sc)

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, tMax)

	x1 := make(dynamo.State, len(x0))
	for i := range x0 {
		x1[i] = x0[i] + h0*f0[i]
	}
	f1 := sys.Derive(x1, h0)

	diff := make([]float64, len(x0))
	for i := range diff {
		diff[i] = f1[i] - f0[i]
	}
	d2 := rmsNorm(diff, sc) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 || math.IsNaN(m) {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 1/float64(order+1))
	}
	h := math.Min(100*h0, h1)
	return math.Max(math.Min(h, cfg.MaxDt), cfg.MinDt), 1
}

func logSummary(logger *slog.Logger, name string, tr *dynamo.Trajectory, st dynamo.Stats) {
	logger.Debug("solver finished",
		"solver", name,
		"points", tr.Len(),
		"steps", st.Steps,
		"rejected", st.Rejected,
		"evaluations", st.Evaluations,
		"jacobians", st.Jacobians,
		"max_order", st.MaxOrderUsed,
	)
}
