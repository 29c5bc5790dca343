package figures

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/params"
	"github.com/san-kum/contractsim/internal/sim"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleResult() *sim.Result {
	times := []float64{0, 30, 60, 120, 210}
	res := &sim.Result{Variant: params.Density, Stiffness: 35, Times: times}
	for i, t := range times {
		f := 1 - 1/(1+t/30)
		res.States = append(res.States, dynamo.State{f})
		res.Displacements = append(res.Displacements, f/35)
		res.Velocities = append(res.Velocities, 0.01/float64(i+1))
		res.Transmitted = append(res.Transmitted, 10*f*0.01/float64(i+1))
		res.Dissipated = append(res.Dissipated, 0.5/float64(i+1))
	}
	return res
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Errorf("%s is not a PNG", path)
	}
}

func TestTipDynamics(t *testing.T) {
	paths, err := TipDynamics(sampleResult(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 figures, got %d", len(paths))
	}
	for _, p := range paths {
		assertPNG(t, p)
	}
}

func TestPower_DropsNonPositiveSamples(t *testing.T) {
	res := sampleResult()
	res.Transmitted[0] = 0 // relaxed pillar at t=0

	path, err := Power(res, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	assertPNG(t, path)
}

func TestPower_NoPositiveSamples(t *testing.T) {
	res := sampleResult()
	for i := range res.Times {
		res.Transmitted[i] = 0
		res.Dissipated[i] = -1
	}
	if _, err := Power(res, t.TempDir()); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestSweep(t *testing.T) {
	points := []sim.SweepPoint{
		{Stiffness: 20, FinalForce: 50, PeakVelocity: 0.02},
		{Stiffness: 25, FinalForce: 58, PeakVelocity: 0.018},
		{Stiffness: 30, FinalForce: 64, PeakVelocity: 0.015},
	}
	paths, err := Sweep(points, "full", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range paths {
		assertPNG(t, p)
	}
}

func TestEmptyInputs(t *testing.T) {
	dir := t.TempDir()
	if _, err := TipDynamics(nil, dir); !errors.Is(err, ErrNoData) {
		t.Errorf("TipDynamics: %v", err)
	}
	if _, err := Power(&sim.Result{}, dir); !errors.Is(err, ErrNoData) {
		t.Errorf("Power: %v", err)
	}
	if _, err := Sweep(nil, "full", dir); !errors.Is(err, ErrNoData) {
		t.Errorf("Sweep: %v", err)
	}
}
