package kinetics

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/san-kum/contractsim/internal/dynamo"
)

func testParams() Params {
	return Params{
		XCatch:     2.5,
		XSlip:      0.4,
		KOff0Catch: 40,
		KOff0Slip:  0.2,
		KOn:        10,
		APerKBT:    0.244,
		Nh:         10,
	}
}

func newQuiet(t *testing.T, p Params) *Kinetics {
	t.Helper()
	k, err := New(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

// referenceOffRate evaluates the nested sums term by term in linear space.
func referenceOffRate(k *Kinetics, total float64) float64 {
	p := k.BoundHeadDistribution(total)
	nh := k.p.Nh

	bound := 0.0
	for n := 1; n <= nh; n++ {
		bound += p[n]
	}

	mean := 0.0
	for start := 1; start <= nh; start++ {
		tOff := 0.0
		for nb := 1; nb <= start; nb++ {
			s := 0.0
			for j := nb; j <= nh; j++ {
				s += p[j]
			}
			tOff += s / (float64(nb) * k.HeadOffRate(total/float64(nb)) * p[nb])
		}
		mean += p[start] / bound * tOff
	}
	return 1 / mean
}

func TestHeadOffRate(t *testing.T) {
	k := newQuiet(t, testParams())

	if got := k.HeadOffRate(0); math.Abs(got-40.2) > 1e-12 {
		t.Errorf("HeadOffRate(0) = %f, want 40.2", got)
	}

	f := 3.0
	want := 40*math.Exp(-0.244*f*2.5) + 0.2*math.Exp(0.244*f*0.4)
	if got := k.HeadOffRate(f); math.Abs(got-want) > 1e-12 {
		t.Errorf("HeadOffRate(%g) = %f, want %f", f, got, want)
	}
}

func TestBoundHeadDistribution_Normalized(t *testing.T) {
	k := newQuiet(t, testParams())

	for _, f := range []float64{0, 0.5, 7, 25, 100, 400} {
		p := k.BoundHeadDistribution(f)
		if len(p) != 11 {
			t.Fatalf("expected 11 entries, got %d", len(p))
		}
		sum := 0.0
		for n, v := range p {
			if v < 0 || math.IsNaN(v) {
				t.Errorf("force %g: P[%d] = %g", f, n, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("force %g: distribution sums to %.15f", f, sum)
		}
	}
}

func TestBoundHeadDistribution_MatchesProducts(t *testing.T) {
	p := testParams()
	p.Nh = 4
	k := newQuiet(t, p)
	total := 5.0

	weights := make([]float64, p.Nh+1)
	norm := 0.0
	for n := 0; n <= p.Nh; n++ {
		w := 1.0
		for i := 0; i < n; i++ {
			w *= float64(p.Nh-i) * p.KOn / (float64(i+1) * k.HeadOffRate(total/float64(i+1)))
		}
		weights[n] = w
		norm += w
	}

	got := k.BoundHeadDistribution(total)
	for n := range weights {
		want := weights[n] / norm
		if math.Abs(got[n]-want) > 1e-12*math.Max(1, want) {
			t.Errorf("P[%d] = %g, want %g", n, got[n], want)
		}
	}
}

func TestFilamentOffRate_Positive(t *testing.T) {
	k := newQuiet(t, testParams())

	for _, f := range []float64{0, 1, 7, 20, 60, 150} {
		r := k.FilamentOffRate(f)
		if !(r > 0) || math.IsInf(r, 0) {
			t.Errorf("FilamentOffRate(%g) = %g, want finite positive", f, r)
		}
	}
	if k.Degeneracies() != 0 {
		t.Errorf("unexpected degeneracies: %d", k.Degeneracies())
	}
}

func TestFilamentOffRate_MatchesNestedSums(t *testing.T) {
	k := newQuiet(t, testParams())

	for _, f := range []float64{0, 2, 7, 30} {
		got := k.FilamentOffRate(f)
		want := referenceOffRate(k, f)
		if math.Abs(got-want) > 1e-9*want {
			t.Errorf("force %g: got %g, want %g", f, got, want)
		}
	}
}

func TestFilamentOffRate_SingleHeadReducesToHeadRate(t *testing.T) {
	p := testParams()
	p.Nh = 1
	k := newQuiet(t, p)

	for _, f := range []float64{0, 0.3, 7, 42} {
		got := k.FilamentOffRate(f)
		want := k.HeadOffRate(f)
		if math.Abs(got-want) > 1e-12*want {
			t.Errorf("force %g: filament rate %.15g, head rate %.15g", f, got, want)
		}
	}
}

func TestFilamentOffRate_CatchBondSlowsUnbinding(t *testing.T) {
	k := newQuiet(t, testParams())

	if k.FilamentOffRate(7) >= k.FilamentOffRate(0) {
		t.Error("moderate load should stabilise bound filaments")
	}
}

func TestDegenerateRatesAreFlagged(t *testing.T) {
	p := testParams()
	p.KOff0Catch = 0
	p.KOff0Slip = 0
	k := newQuiet(t, p)

	r := k.FilamentOffRate(5)
	if !(r > 0) || math.IsNaN(r) {
		t.Errorf("guarded rate should stay positive, got %g", r)
	}
	if k.Degeneracies() == 0 {
		t.Error("expected degeneracy to be recorded")
	}
}

func TestNewRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Params)
	}{
		{"no heads", func(p *Params) { p.Nh = 0 }},
		{"zero k_on", func(p *Params) { p.KOn = 0 }},
		{"negative catch", func(p *Params) { p.KOff0Catch = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mod(&p)
			_, err := New(p, nil)
			if !errors.Is(err, dynamo.ErrParameterBounds) {
				t.Errorf("expected ErrParameterBounds, got %v", err)
			}
		})
	}
}

func BenchmarkFilamentOffRate(b *testing.B) {
	k, _ := New(testParams(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k.FilamentOffRate(7)
	}
}
