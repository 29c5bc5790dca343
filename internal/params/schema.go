// Package params loads the physical constants of the contraction models.
//
// Each [Variant] owns a static, ordered [Schema]. A parameter file must name
// every field of the schema exactly once; anything else is a configuration
// error reported before a model is built.
package params

import (
	"fmt"
	"strings"
)

type Variant string

const (
	Full    Variant = "full model"
	Density Variant = "density model"
)

func (v Variant) String() string { return string(v) }

// Short is the one-word tag used in file names and run ids.
func (v Variant) Short() string {
	switch v {
	case Full:
		return "full"
	case Density:
		return "density"
	}
	return strings.ReplaceAll(string(v), " ", "_")
}

// ParseVariant accepts the long tags and the short aliases.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full model", "full", "full_model":
		return Full, nil
	case "density model", "density", "density_model":
		return Density, nil
	}
	return "", fmt.Errorf("%w: %q (want 'full model' or 'density model')", ErrUnknownVariant, s)
}

func Variants() []Variant { return []Variant{Full, Density} }

type Kind int

const (
	Float Kind = iota
	Int
)

func (k Kind) String() string {
	if k == Int {
		return "int"
	}
	return "float"
}

// Field is one schema entry. Key is the name used in parameter files, Name
// is the lookup name used by the models.
type Field struct {
	Key  string
	Name string
	Kind Kind
	Unit string
}

type Schema []Field

var fullSchema = Schema{
	{Key: "x_catch", Name: "x_catch", Kind: Float, Unit: "nm"},
	{Key: "x_slip", Name: "x_slip", Kind: Float, Unit: "nm"},
	{Key: "k_off^catch", Name: "k_off0_catch", Kind: Float, Unit: "1/s"},
	{Key: "k_off^slip", Name: "k_off0_slip", Kind: Float, Unit: "1/s"},
	{Key: "k_on", Name: "k_on", Kind: Float, Unit: "1/s"},
	{Key: "k_on_fil", Name: "k_on_fil", Kind: Float, Unit: "1/s"},
	{Key: "a/kBT", Name: "a_per_kBT", Kind: Float, Unit: "1/(pN nm)"},
	{Key: "N_h", Name: "Nh", Kind: Int},
	{Key: "N_max", Name: "Nmax", Kind: Int},
	{Key: "h*eta_am^eff", Name: "h_eta", Kind: Float, Unit: "pN s/um"},
	{Key: "xi*rho_a(t=0)^2", Name: "xi_rho_a2", Kind: Float, Unit: "pN"},
	{Key: "rho_a^max/rho_a(t=0)", Name: "rho_max_per_rho", Kind: Float},
	{Key: "R0", Name: "R0", Kind: Float, Unit: "um"},
}

var densitySchema = Schema{
	{Key: "h*eta_am^eff", Name: "h_eta", Kind: Float, Unit: "pN s/um"},
	{Key: "xi*NM*rho_a(t=0)^2", Name: "xi_N_rho_a2", Kind: Float, Unit: "pN"},
	{Key: "rho_a^max/rho_a(t=0)", Name: "rho_max_per_rho", Kind: Float},
	{Key: "R0", Name: "R0", Kind: Float, Unit: "um"},
}

// SchemaFor returns a copy of the variant's schema.
func SchemaFor(v Variant) (Schema, error) {
	var s Schema
	switch v {
	case Full:
		s = fullSchema
	case Density:
		s = densitySchema
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, string(v))
	}
	out := make(Schema, len(s))
	copy(out, s)
	return out, nil
}

// index resolves a file key or a lookup name to its position.
func (s Schema) index(name string) (int, bool) {
	for i, f := range s {
		if f.Key == name || f.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}
