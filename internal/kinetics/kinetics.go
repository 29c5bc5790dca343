// Package kinetics computes the load-dependent unbinding of myosin filaments.
//
// A filament carries Nh heads. Each bound head detaches with a two-pathway
// (catch + slip) Bell rate; the filament shares its total load equally
// among the bound heads. From the steady-state distribution over the number
// of bound heads the package derives the mean time for a bound filament to
// lose its last head, whose reciprocal is the filament off-rate.
package kinetics

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/san-kum/contractsim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// MinRate is the floor applied to vanishing rates.
const MinRate = 1e-300

type Params struct {
	XCatch     float64 // catch-bond distance
	XSlip      float64 // slip-bond distance
	KOff0Catch float64
	KOff0Slip  float64
	KOn        float64 // head binding rate
	APerKBT    float64
	Nh         int // heads per filament
}

type Kinetics struct {
	p      Params
	logger *slog.Logger

	degenerate atomic.Int64
}

func New(p Params, logger *slog.Logger) (*Kinetics, error) {
	if p.Nh < 1 {
		return nil, fmt.Errorf("%w: N_h must be >= 1, got %d", dynamo.ErrParameterBounds, p.Nh)
	}
	if !(p.KOn > 0) {
		return nil, fmt.Errorf("%w: k_on must be positive, got %g", dynamo.ErrParameterBounds, p.KOn)
	}
	if p.KOff0Catch < 0 || p.KOff0Slip < 0 {
		return nil, fmt.Errorf("%w: bare off-rates must be non-negative", dynamo.ErrParameterBounds)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Kinetics{p: p, logger: logger}, nil
}

func (k *Kinetics) Params() Params { return k.p }

// HeadOffRate is the unbinding rate of one head carrying force.
func (k *Kinetics) HeadOffRate(force float64) float64 {
	return k.p.KOff0Catch*math.Exp(-k.p.APerKBT*force*k.p.XCatch) +
		k.p.KOff0Slip*math.Exp(k.p.APerKBT*force*k.p.XSlip)
}

// Degeneracies counts guard hits since construction.
func (k *Kinetics) Degeneracies() int64 { return k.degenerate.Load() }

func (k *Kinetics) flag(what string, force, value float64) {
	if k.degenerate.Add(1) == 1 {
		k.logger.Warn("kinetics: degenerate rate clamped",
			"quantity", what, "force", force, "value", value, "floor", MinRate)
	}
}

func (k *Kinetics) guardedHeadRate(force float64) float64 {
	r := k.HeadOffRate(force)
	if math.IsNaN(r) || r < MinRate {
		k.flag("head off-rate", force, r)
		return MinRate
	}
	return r
}

// profile holds one evaluation of the bound-head statistics at a given
// total load. heads[n] is the per-head rate with n heads sharing the load,
// logw[n] the unnormalised log weight of n bound heads.
type profile struct {
	heads []float64
	logw  []float64
}

func (k *Kinetics) evaluate(total float64) profile {
	nh := k.p.Nh
	pr := profile{
		heads: make([]float64, nh+1),
		logw:  make([]float64, nh+1),
	}
	for n := 1; n <= nh; n++ {
		pr.heads[n] = k.guardedHeadRate(total / float64(n))
		on := float64(nh-n+1) * k.p.KOn
		pr.logw[n] = pr.logw[n-1] + math.Log(on) - math.Log(float64(n)*pr.heads[n])
	}
	return pr
}

func (pr profile) distribution() []float64 {
	norm := floats.LogSumExp(pr.logw)
	p := make([]float64, len(pr.logw))
	for n, lw := range pr.logw {
		p[n] = math.Exp(lw - norm)
	}
	return p
}

// BoundHeadDistribution returns P[n], n = 0..Nh, the steady-state
// probability that exactly n heads are bound under total load.
func (k *Kinetics) BoundHeadDistribution(total float64) []float64 {
	return k.evaluate(total).distribution()
}

// FilamentOffRate is the inverse mean time for a bound filament under total
// load to lose all heads, averaged over its bound-head distribution.
func (k *Kinetics) FilamentOffRate(total float64) float64 {
	nh := k.p.Nh
	pr := k.evaluate(total)

	// log of sum_{j>=n} w_j, for every n
	tails := make([]float64, nh+2)
	tails[nh+1] = math.Inf(-1)
	for n := nh; n >= 1; n-- {
		tails[n] = logAdd(pr.logw[n], tails[n+1])
	}
	bound := tails[1]

	// Everything below stays in log space: the passage time from nb heads
	// is sum_{j>=nb} P[j] / (nb * k(total/nb) * P[nb]).
	logPassage := math.Inf(-1)
	logMean := math.Inf(-1)
	for start := 1; start <= nh; start++ {
		step := tails[start] - pr.logw[start] - math.Log(float64(start)*pr.heads[start])
		logPassage = logAdd(logPassage, step)
		logMean = logAdd(logMean, pr.logw[start]-bound+logPassage)
	}

	rate := math.Exp(-logMean)
	switch {
	case math.IsNaN(rate):
		k.flag("filament off-rate", total, rate)
	case rate < MinRate:
		k.flag("filament off-rate", total, rate)
		rate = MinRate
	}
	return rate
}

func logAdd(a, b float64) float64 {
	return floats.LogSumExp([]float64{a, b})
}
