// Package experiment wires parameter files, models and solvers together
// by name.
package experiment

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/integrators"
)

var ErrUnknownSolver = errors.New("experiment: unknown solver")

// DefaultSolver is used when a configuration names none.
const DefaultSolver = "bdf"

type SolverFactory func(logger *slog.Logger) dynamo.Solver

type Registry struct {
	solvers map[string]SolverFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		solvers: make(map[string]SolverFactory),
	}

	r.solvers["bdf"] = func(l *slog.Logger) dynamo.Solver { return integrators.NewBDF(l) }
	r.solvers["rk45"] = func(l *slog.Logger) dynamo.Solver { return integrators.NewRK45(l) }

	return r
}

// Register adds or replaces a solver factory.
func (r *Registry) Register(name string, f SolverFactory) {
	r.solvers[name] = f
}

func (r *Registry) Solver(name string, logger *slog.Logger) (dynamo.Solver, error) {
	if name == "" {
		name = DefaultSolver
	}
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (have %v)", ErrUnknownSolver, name, r.Solvers())
	}
	return fn(logger), nil
}

func (r *Registry) Solvers() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
