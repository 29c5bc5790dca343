package models

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/kinetics"
	"github.com/san-kum/contractsim/internal/params"
)

// ReferenceForce is the pillar load the full model starts from.
const ReferenceForce = 7.0

// Full couples ring contraction to filament binding.
// State: [force, N] where N is the number of bound filaments
// Equations:
//
//	dF/dt = (-F + xi_rho_a2 * N * df(F)) / tau
//	dN/dt = k_on_fil * (Nmax - N) - k_off_fil(F) * N
type Full struct {
	ring
	kin *kinetics.Kinetics

	kOnFil  float64
	nmax    int
	xiRhoA2 float64
}

func NewFull(set *params.Set, stiffness float64, logger *slog.Logger) (*Full, error) {
	if set.Variant() != params.Full {
		return nil, fmt.Errorf("%w: full model built from %s parameters", params.ErrConfig, set.Variant())
	}
	r, err := newRing(set, stiffness)
	if err != nil {
		return nil, err
	}
	nh, err := set.Int("Nh")
	if err != nil {
		return nil, err
	}
	nmax, err := set.Int("Nmax")
	if err != nil {
		return nil, err
	}

	kin, err := kinetics.New(kinetics.Params{
		XCatch:     set.MustFloat("x_catch"),
		XSlip:      set.MustFloat("x_slip"),
		KOff0Catch: set.MustFloat("k_off0_catch"),
		KOff0Slip:  set.MustFloat("k_off0_slip"),
		KOn:        set.MustFloat("k_on"),
		APerKBT:    set.MustFloat("a_per_kBT"),
		Nh:         nh,
	}, logger)
	if err != nil {
		return nil, err
	}

	f := &Full{
		ring:    r,
		kin:     kin,
		kOnFil:  set.MustFloat("k_on_fil"),
		nmax:    nmax,
		xiRhoA2: set.MustFloat("xi_rho_a2"),
	}
	if !(f.kOnFil > 0) || f.nmax < 1 {
		return nil, fmt.Errorf("%w: k_on_fil must be positive and N_max >= 1", dynamo.ErrParameterBounds)
	}
	return f, nil
}

func (f *Full) Variant() params.Variant { return params.Full }
func (f *Full) StateDim() int           { return 2 }

// Kinetics exposes the filament off-rate submodel.
func (f *Full) Kinetics() *kinetics.Kinetics { return f.kin }

func (f *Full) Derive(x dynamo.State, _ float64) dynamo.State {
	force, n := x[0], x[1]
	dForce := f.forceRate(force, f.xiRhoA2*n)
	dN := f.kOnFil*(float64(f.nmax)-n) - f.kin.FilamentOffRate(force)*n
	return dynamo.State{dForce, dN}
}

func (f *Full) Velocity(_ float64, x dynamo.State) float64 {
	return f.forceRate(x[0], f.xiRhoA2*x[1]) / f.kp
}

// SteadyBound is the bound-filament count in equilibrium with force.
func (f *Full) SteadyBound(force float64) float64 {
	return f.kOnFil / (f.kin.FilamentOffRate(force) + f.kOnFil) * float64(f.nmax)
}

func (f *Full) InitialState() dynamo.State {
	return f.InitialStateAt(ReferenceForce)
}

func (f *Full) InitialStateAt(force float64) dynamo.State {
	return dynamo.State{force, f.SteadyBound(force)}
}

func (f *Full) Degeneracies() int64 { return f.kin.Degeneracies() }

func (f *Full) Parameter(name string) (float64, error) {
	if v, ok := f.lookup(name); ok {
		return v, nil
	}
	p := f.kin.Params()
	switch name {
	case "x_catch":
		return p.XCatch, nil
	case "x_slip":
		return p.XSlip, nil
	case "k_off0_catch":
		return p.KOff0Catch, nil
	case "k_off0_slip":
		return p.KOff0Slip, nil
	case "k_on":
		return p.KOn, nil
	case "a_per_kBT":
		return p.APerKBT, nil
	case "Nh":
		return float64(p.Nh), nil
	case "k_on_fil":
		return f.kOnFil, nil
	case "Nmax":
		return float64(f.nmax), nil
	case "xi_rho_a2":
		return f.xiRhoA2, nil
	}
	return 0, fmt.Errorf("%w: %q for %s", ErrUnknownParameter, name, params.Full)
}
