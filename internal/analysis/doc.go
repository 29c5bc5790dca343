// Package analysis post-processes adaptive trajectories for reporting.
//
// The solver grid is irregular, so curves are first resampled onto a coarse
// uniform grid before finite differences are taken:
//
//	ts, ds := analysis.Discretize(times, displacements, 30)
//	v, err := analysis.NumericalVelocity(ts, ds)
//	peak := analysis.Peak(v)
package analysis
