package integrators_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/integrators"
	"github.com/san-kum/contractsim/internal/models"
	"github.com/san-kum/contractsim/internal/params"
)

type decay struct{ rate float64 }

func (d decay) StateDim() int { return 1 }
func (d decay) Derive(x dynamo.State, _ float64) dynamo.State {
	return dynamo.State{-d.rate * x[0]}
}

// relaxation toward cos(t) with a fast rate; explicit methods need tiny steps.
type stiffCosine struct{}

func (stiffCosine) StateDim() int { return 1 }
func (stiffCosine) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-1000 * (x[0] - math.Cos(t))}
}

type oscillator struct{}

func (oscillator) StateDim() int { return 2 }
func (oscillator) Derive(x dynamo.State, _ float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

type poisoned struct{}

func (poisoned) StateDim() int { return 1 }
func (poisoned) Derive(dynamo.State, float64) dynamo.State {
	return dynamo.State{math.NaN()}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func expectGrid(tr *dynamo.Trajectory, tMax float64) {
	GinkgoHelper()
	Expect(tr.Validate()).To(Succeed())
	Expect(tr.Times[len(tr.Times)-1]).To(Equal(tMax))
}

var _ = Describe("Solvers", func() {
	var (
		ctx context.Context
		cfg dynamo.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = dynamo.DefaultConfig()
	})

	for _, mk := range []func() dynamo.Solver{
		func() dynamo.Solver { return integrators.NewBDF(quiet()) },
		func() dynamo.Solver { return integrators.NewRK45(quiet()) },
	} {
		solver := mk()

		Describe(solver.Name(), func() {
			It("follows exponential decay", func() {
				tr, st, err := solver.Solve(ctx, decay{rate: 1}, dynamo.State{1}, 5, cfg)
				Expect(err).NotTo(HaveOccurred())
				expectGrid(tr, 5)
				Expect(tr.Final()[0]).To(BeNumerically("~", math.Exp(-5), 1e-4))
				Expect(st.Steps).To(Equal(tr.Len() - 1))
			})

			It("integrates a vector state", func() {
				cfg.RelTol, cfg.AbsTol = 1e-8, 1e-10
				tr, _, err := solver.Solve(ctx, oscillator{}, dynamo.State{1, 0}, 10, cfg)
				Expect(err).NotTo(HaveOccurred())
				expectGrid(tr, 10)
				Expect(tr.Final()[0]).To(BeNumerically("~", math.Cos(10), 1e-4))
				Expect(tr.Final()[1]).To(BeNumerically("~", -math.Sin(10), 1e-4))
			})

			It("reports a step budget overrun as non-convergence", func() {
				cfg.MaxSteps = 3
				tr, _, err := solver.Solve(ctx, decay{rate: 1}, dynamo.State{1}, 50, cfg)
				Expect(err).To(MatchError(dynamo.ErrMaxSteps))
				Expect(dynamo.IsNonConvergence(err)).To(BeTrue())
				Expect(tr.Len()).To(BeNumerically(">=", 1))
				Expect(tr.Times[0]).To(Equal(0.0))
			})

			It("refuses a non-finite right-hand side", func() {
				tr, _, err := solver.Solve(ctx, poisoned{}, dynamo.State{1}, 1, cfg)
				Expect(err).To(MatchError(dynamo.ErrInvalidState))
				var simErr *dynamo.SimulationError
				Expect(errors.As(err, &simErr)).To(BeTrue())
				Expect(simErr.Step).To(Equal(0))
				Expect(tr.Len()).To(Equal(1))
			})

			It("stops when the context is canceled", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, _, err := solver.Solve(cctx, decay{rate: 1}, dynamo.State{1}, 5, cfg)
				Expect(err).To(MatchError(dynamo.ErrContextCanceled))
				Expect(errors.Is(err, context.Canceled)).To(BeTrue())
				Expect(dynamo.IsNonConvergence(err)).To(BeFalse())
			})

			It("rejects inconsistent inputs", func() {
				_, _, err := solver.Solve(ctx, oscillator{}, dynamo.State{1}, 1, cfg)
				Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

				_, _, err = solver.Solve(ctx, decay{rate: 1}, dynamo.State{1}, 0, cfg)
				Expect(err).To(MatchError(dynamo.ErrParameterBounds))

				cfg.RelTol = 0
				_, _, err = solver.Solve(ctx, decay{rate: 1}, dynamo.State{1}, 1, cfg)
				Expect(err).To(MatchError(dynamo.ErrParameterBounds))
			})

			It("honours a fixed initial step and a step ceiling", func() {
				cfg.InitialDt = 1e-4
				cfg.MaxDt = 0.25
				tr, _, err := solver.Solve(ctx, decay{rate: 1}, dynamo.State{1}, 3, cfg)
				Expect(err).NotTo(HaveOccurred())
				expectGrid(tr, 3)
				Expect(tr.Times[1]).To(BeNumerically("~", 1e-4, 1e-15))
				for i := 1; i < tr.Len(); i++ {
					Expect(tr.Times[i] - tr.Times[i-1]).To(BeNumerically("<=", 0.25+1e-12))
				}
			})
		})
	}
})

var _ = Describe("BDF", func() {
	var solver *integrators.BDF

	BeforeEach(func() {
		solver = integrators.NewBDF(quiet())
	})

	It("handles a stiff relaxation with few steps", func() {
		tr, st, err := solver.Solve(context.Background(), stiffCosine{}, dynamo.State{0}, 2, dynamo.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		expectGrid(tr, 2)

		want := (1e6*math.Cos(2) + 1e3*math.Sin(2)) / (1e6 + 1)
		Expect(tr.Final()[0]).To(BeNumerically("~", want, 1e-4))
		Expect(st.Steps).To(BeNumerically("<", 2000))
		Expect(st.Jacobians).To(BeNumerically(">", 0))
	})

	It("raises the order on smooth solutions", func() {
		_, st, err := solver.Solve(context.Background(), decay{rate: 1}, dynamo.State{1}, 5, dynamo.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(st.MaxOrderUsed).To(BeNumerically(">", 1))
	})

	It("stays at first order when capped", func() {
		cfg := dynamo.DefaultConfig()
		cfg.MaxOrder = 1
		tr, st, err := solver.Solve(context.Background(), decay{rate: 1}, dynamo.State{1}, 1, cfg)
		Expect(err).NotTo(HaveOccurred())
		expectGrid(tr, 1)
		Expect(st.MaxOrderUsed).To(Equal(1))
	})

	It("is far cheaper than RK45 on stiff input", func() {
		cfg := dynamo.DefaultConfig()
		_, bdfStats, err := solver.Solve(context.Background(), stiffCosine{}, dynamo.State{0}, 2, cfg)
		Expect(err).NotTo(HaveOccurred())
		_, rkStats, err := integrators.NewRK45(quiet()).Solve(context.Background(), stiffCosine{}, dynamo.State{0}, 2, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(bdfStats.Steps).To(BeNumerically("<", rkStats.Steps))
	})
})

var _ = Describe("Density model contraction", func() {
	It("drives the pillar force monotonically to its plateau", func() {
		set, err := params.FromMap(params.Density, map[string]float64{
			"h_eta": 1, "xi_N_rho_a2": 1, "rho_max_per_rho": 2, "R0": 10,
		})
		Expect(err).NotTo(HaveOccurred())
		m, err := models.New(set, 35, quiet())
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Derive(m.InitialState(), 0)[0]).To(BeNumerically(">", 0))

		cfg := dynamo.DefaultConfig()
		tr, _, err := integrators.NewBDF(quiet()).Solve(context.Background(), m, m.InitialState(), 210, cfg)
		Expect(err).NotTo(HaveOccurred())
		expectGrid(tr, 210)

		force := tr.Component(0)
		Expect(force[0]).To(Equal(0.0))
		for i := 1; i < len(force); i++ {
			// non-decreasing up to the solver tolerance once at the plateau
			Expect(force[i]).To(BeNumerically(">=", force[i-1]-10*cfg.RelTol*math.Abs(force[i-1])))
		}
		Expect(force[len(force)-1]).To(BeNumerically("~", 0.99997, 1e-4))
	})
})
