// Package metrics derives mechanical power and work from a contraction
// trajectory.
//
// Powers are reported in aW when forces are in pN and velocities in nm/s;
// work is then in aW*s, and [PicoJoules] converts it for reports.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrEmptySeries    = errors.New("metrics: empty series")
	ErrLengthMismatch = errors.New("metrics: series length mismatch")
)

// Pillars is the number of pillars a ring pulls on.
const Pillars = 5

// TransmittedPower returns 10*k_p*d*v per sample: the elastic power stored in
// all pillars.
func TransmittedPower(displacements, velocities []float64, kp float64) ([]float64, error) {
	if err := aligned(displacements, velocities); err != nil {
		return nil, err
	}
	out := make([]float64, len(velocities))
	floats.MulTo(out, displacements, velocities)
	floats.Scale(2*Pillars*kp, out)
	return out, nil
}

// DissipatedPower returns 4*gamma*v^2 summed over all pillars, with the drag
// coefficient gamma = (6/5)*pi*h_eta.
func DissipatedPower(velocities []float64, hEta float64) ([]float64, error) {
	if len(velocities) == 0 {
		return nil, ErrEmptySeries
	}
	out := make([]float64, len(velocities))
	floats.MulTo(out, velocities, velocities)
	floats.Scale(Pillars*4*Drag(hEta), out)
	return out, nil
}

// CumulativeWork integrates powers over times with a lagging Riemann sum:
// sum_i (t_i - t_{i-1}) * p_i, where t_{-1} = 0.
func CumulativeWork(times, powers []float64) (float64, error) {
	if err := aligned(times, powers); err != nil {
		return 0, err
	}
	widths := make([]float64, len(times))
	prev := 0.0
	for i, t := range times {
		widths[i] = t - prev
		prev = t
	}
	return floats.Dot(widths, powers), nil
}

// Drag is the viscous drag coefficient of one pillar.
func Drag(hEta float64) float64 { return 6.0 / 5.0 * math.Pi * hEta }

// PicoJoules converts aW*s to pJ.
func PicoJoules(work float64) float64 { return work / 1e6 }

func aligned(a, b []float64) error {
	if len(a) == 0 || len(b) == 0 {
		return ErrEmptySeries
	}
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	return nil
}
