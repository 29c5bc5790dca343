package metrics

import (
	"gonum.org/v1/gonum/floats"
)

// Series is the per-sample output of one run, all slices aligned with Times.
type Series struct {
	Times       []float64
	Forces      []float64
	Velocities  []float64
	Transmitted []float64
	Dissipated  []float64
}

// Summary reduces a run to the scalars the reports print.
type Summary struct {
	FinalForce      float64 `json:"final_force"`
	PeakForce       float64 `json:"peak_force"`
	PeakVelocity    float64 `json:"peak_velocity"`
	TransmittedWork float64 `json:"transmitted_work"`
	DissipatedWork  float64 `json:"dissipated_work"`
}

func Summarize(s Series) (Summary, error) {
	for _, v := range [][]float64{s.Forces, s.Velocities, s.Transmitted, s.Dissipated} {
		if err := aligned(s.Times, v); err != nil {
			return Summary{}, err
		}
	}
	wt, err := CumulativeWork(s.Times, s.Transmitted)
	if err != nil {
		return Summary{}, err
	}
	wd, err := CumulativeWork(s.Times, s.Dissipated)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		FinalForce:      s.Forces[len(s.Forces)-1],
		PeakForce:       floats.Max(s.Forces),
		PeakVelocity:    floats.Max(s.Velocities),
		TransmittedWork: wt,
		DissipatedWork:  wd,
	}, nil
}
