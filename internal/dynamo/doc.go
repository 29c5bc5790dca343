// Package dynamo provides core simulation primitives for stiff ODE models.
//
// The package defines the fundamental interfaces and types shared by the
// contraction models and the solvers:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE right-hand sides (dX/dt = f(X, t))
//   - [Solver]: drives a [System] from t=0 to t_max
//   - [Trajectory]: adaptively spaced time grid and states
//   - [Config], [Stats]: solver tolerances and bookkeeping
//
// # Example
//
//	model, _ := models.New(set, 35, nil)
//	solver := integrators.NewBDF(slog.Default())
//	traj, stats, err := solver.Solve(ctx, model, model.InitialState(), 210, dynamo.DefaultConfig())
//
// # Failures
//
// Solvers never truncate a run silently. When t_max cannot be reached the
// partial trajectory is returned together with a [*SimulationError]; use
// [IsNonConvergence] to tell solver failures from configuration errors.
package dynamo
