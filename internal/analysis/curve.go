package analysis

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var ErrTooShort = errors.New("analysis: need at least two samples")

// Discretize keeps a point whenever its time reaches the next multiple of
// step. Each kept point advances the target by exactly one step, so a single
// late point never covers several grid slots.
func Discretize(times, values []float64, step float64) ([]float64, []float64) {
	var ts, vs []float64
	idx := 0
	for i, t := range times {
		if t >= float64(idx)*step {
			ts = append(ts, t)
			vs = append(vs, values[i])
			idx++
		}
	}
	return ts, vs
}

// NumericalVelocity differentiates values sampled on a uniform grid whose
// spacing is taken from the first interval. Interior points use central
// differences, the endpoints one-sided ones.
func NumericalVelocity(times, values []float64) ([]float64, error) {
	n := len(times)
	if n < 2 || len(values) != n {
		return nil, fmt.Errorf("%w: %d times, %d values", ErrTooShort, n, len(values))
	}
	dt := times[1] - times[0]
	if !(dt > 0) {
		return nil, fmt.Errorf("analysis: non-increasing grid (dt=%g)", dt)
	}

	v := make([]float64, n)
	v[0] = (values[1] - values[0]) / dt
	for i := 1; i < n-1; i++ {
		v[i] = (values[i+1] - values[i-1]) / (2 * dt)
	}
	v[n-1] = (values[n-1] - values[n-2]) / dt
	return v, nil
}

// Peak returns the largest entry, or 0 for an empty series.
func Peak(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Max(v)
}

// Scale returns a copy of v multiplied by c.
func Scale(v []float64, c float64) []float64 {
	out := make([]float64, len(v))
	floats.ScaleTo(out, c, v)
	return out
}
