// Package models implements the contraction dynamics of an actomyosin ring
// pulling on elastic pillars.
//
// Two variants share the [Model] capability set:
//
//   - [Full]: state (force, N) with explicit filament binding kinetics
//   - [Density]: state (force) with a single aggregate coupling constant
//
// Both relax the pillar force on the viscous timescale tau and drive it with
// a density factor that saturates as the ring contracts.
package models

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/params"
)

// ErrUnknownParameter is returned by Parameter for names outside the model.
var ErrUnknownParameter = params.ErrUnknownParameter

type Model interface {
	dynamo.System
	Variant() params.Variant
	// Velocity is the pillar tip deflection rate at state x.
	Velocity(t float64, x dynamo.State) float64
	Parameter(name string) (float64, error)
	InitialState() dynamo.State
	Stiffness() float64
}

// New builds the variant that matches the parameter set.
func New(set *params.Set, stiffness float64, logger *slog.Logger) (Model, error) {
	switch set.Variant() {
	case params.Full:
		return NewFull(set, stiffness, logger)
	case params.Density:
		return NewDensity(set, stiffness)
	}
	return nil, fmt.Errorf("%w: %q", params.ErrUnknownVariant, set.Variant())
}

// ring holds the pillar-ring geometry shared by both variants.
type ring struct {
	r0           float64
	kp           float64
	hEta         float64
	rhoMaxPerRho float64
	a0           float64
	tau          float64
}

func newRing(set *params.Set, stiffness float64) (ring, error) {
	if !(stiffness > 0) {
		return ring{}, fmt.Errorf("%w: pillar stiffness must be positive, got %g", dynamo.ErrParameterBounds, stiffness)
	}
	r := ring{
		r0:           set.MustFloat("R0"),
		kp:           stiffness,
		hEta:         set.MustFloat("h_eta"),
		rhoMaxPerRho: set.MustFloat("rho_max_per_rho"),
	}
	if !(r.r0 > 0) || !(r.hEta > 0) {
		return ring{}, fmt.Errorf("%w: R0 and h_eta must be positive", dynamo.ErrParameterBounds)
	}
	r.a0 = math.Pi * r.r0 * r.r0
	r.tau = 6.0 / 5.0 * math.Pi * r.hEta / r.kp
	return r, nil
}

// densityFactor is the crowding term at the deflected ring radius.
func (r ring) densityFactor(force float64) float64 {
	radius := r.r0 - force/r.kp
	area := math.Pi * radius * radius
	rel := r.a0 / area
	return -rel * (rel - r.rhoMaxPerRho)
}

// forceRate is dF/dt for a drive of strength coupling.
func (r ring) forceRate(force, coupling float64) float64 {
	return -force/r.tau + coupling*r.densityFactor(force)/r.tau
}

func (r ring) A0() float64  { return r.a0 }
func (r ring) Tau() float64 { return r.tau }

func (r ring) Stiffness() float64 { return r.kp }

func (r ring) lookup(name string) (float64, bool) {
	switch name {
	case "R0":
		return r.r0, true
	case "h_eta":
		return r.hEta, true
	case "rho_max_per_rho":
		return r.rhoMaxPerRho, true
	case "k_p":
		return r.kp, true
	}
	return 0, false
}
