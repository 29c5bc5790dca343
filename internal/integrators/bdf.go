package integrators

import (
	"context"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contractsim/internal/dynamo"
)

// Leading error constants of BDF1..BDF5.
var bdfErrConst = [...]float64{0, 1.0 / 2, 2.0 / 9, 3.0 / 22, 12.0 / 125, 10.0 / 137}

// Largest growth factor allowed per order; higher orders are less tolerant
// of abrupt step changes on a variable grid.
var bdfMaxScale = [...]float64{0, 2.0, 2.0, 1.5, 1.3, 1.2}

const (
	bdfMaxNewton    = 4
	bdfNewtonTol    = 0.01
	bdfNewtonShrink = 0.25
	bdfKeepBand     = 1.2
)

// BDF is a variable-order, variable-step backward differentiation solver.
// Coefficients are recomputed from the actual grid on every step, so the
// history never needs interpolating onto a uniform mesh.
type BDF struct {
	safety   float64
	minScale float64
	logger   *slog.Logger
}

func NewBDF(logger *slog.Logger) *BDF {
	if logger == nil {
		logger = slog.Default()
	}
	return &BDF{
		safety:   0.9,
		minScale: 0.2,
		logger:   logger,
	}
}

func (b *BDF) Name() string { return "bdf" }

// bdfHistory keeps the most recent accepted points, newest last.
type bdfHistory struct {
	ts   []float64
	ys   []dynamo.State
	keep int
}

func (h *bdfHistory) push(t float64, y dynamo.State) {
	h.ts = append(h.ts, t)
	h.ys = append(h.ys, y.Clone())
	if len(h.ts) > h.keep {
		h.ts = h.ts[1:]
		h.ys = h.ys[1:]
	}
}

func (h *bdfHistory) len() int { return len(h.ts) }

// back returns the j-th most recent point, j = 0 being the newest.
func (h *bdfHistory) back(j int) (float64, dynamo.State) {
	i := len(h.ts) - 1 - j
	return h.ts[i], h.ys[i]
}

// derivWeights returns the weights of the derivative, at s[0], of the
// polynomial interpolating the nodes s.
func derivWeights(s []float64) []float64 {
	k := len(s) - 1
	a := make([]float64, k+1)
	for m := 1; m <= k; m++ {
		a[0] += 1 / (s[0] - s[m])
	}
	for j := 1; j <= k; j++ {
		num, den := 1.0, 1.0
		for m := 1; m <= k; m++ {
			if m != j {
				num *= s[0] - s[m]
			}
		}
		for m := 0; m <= k; m++ {
			if m != j {
				den *= s[j] - s[m]
			}
		}
		a[j] = num / den
	}
	return a
}

// extrapWeights returns the Lagrange basis of the nodes p evaluated at t.
func extrapWeights(t float64, p []float64) []float64 {
	w := make([]float64, len(p))
	for j := range p {
		w[j] = 1
		for m := range p {
			if m != j {
				w[j] *= (t - p[m]) / (p[j] - p[m])
			}
		}
	}
	return w
}

type bdfStep struct {
	sys   dynamo.System
	cfg   dynamo.Config
	st    *dynamo.Stats
	n     int
	jac   *mat.Dense
	iter  *mat.Dense
	lu    mat.LU
	fbuf  []float64
	sc    []float64
	delta *mat.VecDense
	res   *mat.VecDense
}

func (s *bdfStep) derive(x dynamo.State, t float64) dynamo.State {
	s.st.Evaluations++
	return s.sys.Derive(x, t)
}

// predict extrapolates the history to tNew. With a single point it takes an
// explicit Euler step, and the returned flag reports that.
func (s *bdfStep) predict(hist *bdfHistory, order int, tNew float64, fLast dynamo.State) (dynamo.State, bool) {
	t0, y0 := hist.back(0)
	pred := make(dynamo.State, s.n)
	if hist.len() == 1 {
		for i := range pred {
			pred[i] = y0[i] + (tNew-t0)*fLast[i]
		}
		return pred, true
	}
	q := min(order+1, hist.len())
	nodes := make([]float64, q)
	for j := range nodes {
		nodes[j], _ = hist.back(j)
	}
	w := extrapWeights(tNew, nodes)
	for j := range w {
		_, yj := hist.back(j)
		for i := range pred {
			pred[i] += w[j] * yj[i]
		}
	}
	return pred, false
}

// correct solves the implicit BDF relation by Newton iteration, starting
// from the predicted state.
func (s *bdfStep) correct(hist *bdfHistory, order int, tNew float64, pred dynamo.State) (dynamo.State, bool) {
	nodes := make([]float64, order+1)
	nodes[0] = tNew
	for j := 1; j <= order; j++ {
		nodes[j], _ = hist.back(j - 1)
	}
	alpha := derivWeights(nodes)

	// Constant part of the derivative approximation.
	hsum := make([]float64, s.n)
	for j := 1; j <= order; j++ {
		_, yj := hist.back(j - 1)
		for i := range hsum {
			hsum[i] += alpha[j] * yj[i]
		}
	}

	fd.Jacobian(s.jac, func(dst, x []float64) {
		copy(dst, s.derive(x, tNew))
	}, pred, &fd.JacobianSettings{Formula: fd.Central})
	s.st.Jacobians++

	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			v := -s.jac.At(i, j)
			if i == j {
				v += alpha[0]
			}
			s.iter.Set(i, j, v)
		}
	}
	s.lu.Factorize(s.iter)

	_, yLast := hist.back(0)
	scales(s.sc, yLast, yLast, s.cfg)

	y := pred.Clone()
	prev := math.Inf(1)
	for it := 0; it < bdfMaxNewton; it++ {
		fy := s.derive(y, tNew)
		if !fy.IsValid() {
			return nil, false
		}
		for i := 0; i < s.n; i++ {
			s.res.SetVec(i, fy[i]-alpha[0]*y[i]-hsum[i])
		}
		if err := s.lu.SolveVecTo(s.delta, false, s.res); err != nil {
			return nil, false
		}
		for i := range y {
			s.fbuf[i] = s.delta.AtVec(i)
			y[i] += s.fbuf[i]
		}
		dn := rmsNorm(s.fbuf, s.sc)
		if math.IsNaN(dn) || (it > 0 && dn >= prev) {
			return nil, false
		}
		if dn <= bdfNewtonTol {
			return y, y.IsValid()
		}
		prev = dn
	}
	return nil, false
}

func (b *BDF) Solve(ctx context.Context, sys dynamo.System, x0 dynamo.State, tMax float64, cfg dynamo.Config) (*dynamo.Trajectory, dynamo.Stats, error) {
	var st dynamo.Stats
	tr := dynamo.NewTrajectory(256)

	cfg, err := prepare(sys, x0, tMax, cfg)
	if err != nil {
		return tr, st, err
	}
	maxOrder := cfg.MaxOrder
	if maxOrder <= 0 || maxOrder > 5 {
		maxOrder = 5
	}

	n := len(x0)
	s := &bdfStep{
		sys:   sys,
		cfg:   cfg,
		st:    &st,
		n:     n,
		jac:   mat.NewDense(n, n, nil),
		iter:  mat.NewDense(n, n, nil),
		fbuf:  make([]float64, n),
		sc:    make([]float64, n),
		delta: mat.NewVecDense(n, nil),
		res:   mat.NewVecDense(n, nil),
	}

	t := 0.0
	x := x0.Clone()
	tr.Append(t, x)
	if !x.IsValid() {
		return tr, st, fail(0, t, x, dynamo.ErrInvalidState)
	}
	f := s.derive(x, t)
	if !f.IsValid() {
		return tr, st, fail(0, t, x, dynamo.ErrInvalidState)
	}

	h, extra := initialStep(sys, x, f, 1, tMax, cfg)
	st.Evaluations += extra

	hist := &bdfHistory{keep: maxOrder + 2}
	hist.push(t, x)

	order := 1
	stepsAtOrder := 0
	rejectedRun := 0
	errBuf := make([]float64, n)
	scBuf := make([]float64, n)

	for t < tMax {
		if err := canceled(ctx); err != nil {
			return tr, st, fail(st.Steps, t, x, err)
		}
		if cfg.MaxSteps > 0 && st.Steps+st.Rejected >= cfg.MaxSteps {
			return tr, st, fail(st.Steps, t, x, dynamo.ErrMaxSteps)
		}
		if h < cfg.MinDt {
			return tr, st, fail(st.Steps, t, x, dynamo.ErrStepTooSmall)
		}

		tNew := t + h
		last := false
		if tNew >= tMax || tMax-tNew < cfg.MinDt {
			tNew, h, last = tMax, tMax-t, true
		}

		pred, euler := s.predict(hist, order, tNew, f)
		y, ok := s.correct(hist, order, tNew, pred)
		if !ok {
			st.NewtonFailures++
			st.Rejected++
			rejectedRun++
			h *= bdfNewtonShrink
			if rejectedRun >= 2 && order > 1 {
				order--
				stepsAtOrder = 0
			}
			continue
		}

		c := bdfErrConst[order]
		factor := c / (1 + c)
		if euler {
			factor = 0.5
		}
		for i := range errBuf {
			errBuf[i] = factor * (y[i] - pred[i])
		}
		errNorm := rmsNorm(errBuf, scales(scBuf, y, x, cfg))

		if errNorm > 1 || math.IsNaN(errNorm) {
			st.Rejected++
			rejectedRun++
			scale := b.minScale
			if !math.IsNaN(errNorm) {
				scale = math.Max(b.minScale, b.safety*math.Pow(errNorm, -1/float64(order+1)))
			}
			h *= scale
			if rejectedRun >= 2 && order > 1 {
				order--
				stepsAtOrder = 0
			}
			continue
		}

		t, x = tNew, y
		if last {
			t = tMax
		}
		f = s.derive(x, t)
		if !f.IsValid() {
			tr.Append(t, x)
			return tr, st, fail(st.Steps, t, x, dynamo.ErrInvalidState)
		}
		hist.push(t, x)
		tr.Append(t, x)
		st.Steps++
		st.LastDt = h
		stepsAtOrder++
		st.MaxOrderUsed = max(st.MaxOrderUsed, order)

		scale := bdfMaxScale[order]
		if errNorm > 0 {
			scale = math.Min(scale, b.safety*math.Pow(errNorm, -1/float64(order+1)))
		}
		scale = math.Max(scale, b.minScale)
		if rejectedRun > 0 {
			scale = math.Min(scale, 1)
		}
		if scale > 1 && scale < bdfKeepBand {
			scale = 1
		}
		rejectedRun = 0

		if order < maxOrder && stepsAtOrder >= order+1 && hist.len() >= order+2 && errNorm < 0.5 {
			order++
			stepsAtOrder = 0
			scale = math.Min(scale, 1)
		}
		h = math.Min(h*scale, cfg.MaxDt)
	}

	logSummary(b.logger, b.Name(), tr, st)
	return tr, st, nil
}
