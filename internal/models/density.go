package models

import (
	"fmt"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/params"
)

// Density is the reduced model.
// State: [force]
// Equation:
//
//	dF/dt = (-F + xi_N_rho_a2 * df(F)) / tau
type Density struct {
	ring
	xiNRhoA2 float64
}

func NewDensity(set *params.Set, stiffness float64) (*Density, error) {
	if set.Variant() != params.Density {
		return nil, fmt.Errorf("%w: density model built from %s parameters", params.ErrConfig, set.Variant())
	}
	r, err := newRing(set, stiffness)
	if err != nil {
		return nil, err
	}
	return &Density{ring: r, xiNRhoA2: set.MustFloat("xi_N_rho_a2")}, nil
}

func (d *Density) Variant() params.Variant { return params.Density }
func (d *Density) StateDim() int           { return 1 }

func (d *Density) Derive(x dynamo.State, _ float64) dynamo.State {
	return dynamo.State{d.forceRate(x[0], d.xiNRhoA2)}
}

func (d *Density) Velocity(_ float64, x dynamo.State) float64 {
	return d.forceRate(x[0], d.xiNRhoA2) / d.kp
}

func (d *Density) InitialState() dynamo.State {
	return dynamo.State{0}
}

// InitialStateAt starts from a given pillar force.
func (d *Density) InitialStateAt(force float64) dynamo.State {
	return dynamo.State{force}
}

func (d *Density) Parameter(name string) (float64, error) {
	if v, ok := d.lookup(name); ok {
		return v, nil
	}
	if name == "xi_N_rho_a2" {
		return d.xiNRhoA2, nil
	}
	return 0, fmt.Errorf("%w: %q for %s", ErrUnknownParameter, name, params.Density)
}
