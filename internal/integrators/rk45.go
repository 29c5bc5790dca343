package integrators

import (
	"context"
	"log/slog"
	"math"

	"github.com/san-kum/contractsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is the explicit Dormand-Prince pair. It is cheap on smooth,
// non-stiff runs and serves as a cross-check for BDF.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	logger   *slog.Logger
}

func NewRK45(logger *slog.Logger) *RK45 {
	if logger == nil {
		logger = slog.Default()
	}
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		logger:   logger,
	}
}

func (r *RK45) Name() string { return "rk45" }

type dpStage struct {
	xNew dynamo.State
	k7   dynamo.State
	err  []float64
}

// attempt takes one trial step of size dt from (t, x) with k1 = f(x, t).
func (r *RK45) attempt(sys dynamo.System, x, k1 dynamo.State, t, dt float64) dpStage {
	n := len(x)
	tmp := make(dynamo.State, n)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*b21*k1[i]
	}
	k2 := sys.Derive(tmp, t+a2*dt)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3 := sys.Derive(tmp, t+a3*dt)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := sys.Derive(tmp, t+a4*dt)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := sys.Derive(tmp, t+a5*dt)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := sys.Derive(tmp, t+dt)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	k7 := sys.Derive(xNew, t+dt)

	errEst := make([]float64, n)
	for i := 0; i < n; i++ {
		errEst[i] = dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
	}
	return dpStage{xNew: xNew, k7: k7, err: errEst}
}

func (r *RK45) Solve(ctx context.Context, sys dynamo.System, x0 dynamo.State, tMax float64, cfg dynamo.Config) (*dynamo.Trajectory, dynamo.Stats, error) {
	var st dynamo.Stats
	tr := dynamo.NewTrajectory(256)

	cfg, err := prepare(sys, x0, tMax, cfg)
	if err != nil {
		return tr, st, err
	}

	t := 0.0
	x := x0.Clone()
	tr.Append(t, x)
	if !x.IsValid() {
		return tr, st, fail(0, t, x, dynamo.ErrInvalidState)
	}
	k1 := sys.Derive(x, t)
	st.Evaluations++
	if !k1.IsValid() {
		return tr, st, fail(0, t, x, dynamo.ErrInvalidState)
	}

	// Dormand-Prince is order 5; the step heuristic wants the error order.
	dt, extra := initialStep(sys, x, k1, 4, tMax, cfg)
	st.Evaluations += extra
	sc := make([]float64, len(x))
	rejected := false

	for t < tMax {
		if err := canceled(ctx); err != nil {
			return tr, st, fail(st.Steps, t, x, err)
		}
		if cfg.MaxSteps > 0 && st.Steps+st.Rejected >= cfg.MaxSteps {
			return tr, st, fail(st.Steps, t, x, dynamo.ErrMaxSteps)
		}
		if dt < cfg.MinDt {
			return tr, st, fail(st.Steps, t, x, dynamo.ErrStepTooSmall)
		}

		last := false
		if t+dt >= tMax || tMax-(t+dt) < cfg.MinDt {
			dt, last = tMax-t, true
		}

		stage := r.attempt(sys, x, k1, t, dt)
		st.Evaluations += 6
		errRatio := rmsNorm(stage.err, scales(sc, x, stage.xNew, cfg))

		if errRatio > 1 || math.IsNaN(errRatio) {
			st.Rejected++
			rejected = true
			scale := r.minScale
			if !math.IsNaN(errRatio) {
				scale = math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.2))
			}
			dt *= scale
			continue
		}

		if !stage.xNew.IsValid() || !stage.k7.IsValid() {
			return tr, st, fail(st.Steps, t+dt, stage.xNew, dynamo.ErrInvalidState)
		}

		if last {
			t = tMax
		} else {
			t += dt
		}
		x, k1 = stage.xNew, stage.k7
		tr.Append(t, x)
		st.Steps++
		st.LastDt = dt

		var scale float64
		if errRatio > 0 {
			scale = math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
		} else {
			scale = r.maxScale
		}
		if rejected {
			scale = math.Min(scale, 1)
			rejected = false
		}
		dt = math.Min(dt*scale, cfg.MaxDt)
	}

	logSummary(r.logger, r.Name(), tr, st)
	return tr, st, nil
}
