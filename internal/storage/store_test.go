package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/metrics"
	"github.com/san-kum/contractsim/internal/params"
	"github.com/san-kum/contractsim/internal/sim"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	st := New(filepath.Join(t.TempDir(), "runs"))
	st.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, st.Init())
	return st
}

func sampleResult() *sim.Result {
	return &sim.Result{
		Variant:       params.Full,
		Solver:        "bdf",
		Stiffness:     35,
		TMax:          2,
		Times:         []float64{0, 1, 2},
		States:        []dynamo.State{{7, 34.5}, {8.25, 35}, {9.5, 35.25}},
		Displacements: []float64{0.2, 8.25 / 35, 9.5 / 35},
		Velocities:    []float64{0.05, 0.04, 0.03},
		Transmitted:   []float64{3.5, 3.3, 2.85},
		Dissipated:    []float64{1, 0.6, 0.4},
		Summary:       metrics.Summary{FinalForce: 9.5, PeakForce: 9.5, PeakVelocity: 0.05, TransmittedWork: 6.15, DissipatedWork: 1},
		Stats:         dynamo.Stats{Steps: 2, Evaluations: 40, MaxOrderUsed: 2},
	}
}

func TestSaveLoad(t *testing.T) {
	st := newStore(t)
	res := sampleResult()

	id, err := st.Save(res, map[string]float64{"R0": 10}, nil)
	require.NoError(t, err)
	assert.Contains(t, id, "full_k35_")

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, KindRun, meta.Kind)
	assert.Equal(t, "full", meta.Model)
	assert.Equal(t, "bdf", meta.Integrator)
	assert.Equal(t, 3, meta.Points)
	assert.Equal(t, 10.0, meta.Parameters["R0"])
	require.NotNil(t, meta.Summary)
	assert.Equal(t, 9.5, meta.Summary.FinalForce)
	require.NotNil(t, meta.Stats)
	assert.Equal(t, 2, meta.Stats.MaxOrderUsed)
	assert.Empty(t, meta.Error)

	_, tbl, err := st.LoadTable(id)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"time", "force", "bound_filaments", "displacement", "velocity",
		"transmitted_power", "dissipated_power",
	}, tbl.Header)
	assert.Equal(t, res.Times, tbl.Column("time"))
	assert.Equal(t, []float64{7, 8.25, 9.5}, tbl.Column("force"))
	assert.Equal(t, res.Displacements, tbl.Column("displacement"))
	assert.Nil(t, tbl.Column("missing"))
}

func TestSaveRecordsRunError(t *testing.T) {
	st := newStore(t)
	id, err := st.Save(sampleResult(), nil, dynamo.ErrMaxSteps)
	require.NoError(t, err)

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, dynamo.ErrMaxSteps.Error(), meta.Error)
}

func TestSaveRejectsEmpty(t *testing.T) {
	st := newStore(t)
	_, err := st.Save(&sim.Result{}, nil, nil)
	assert.Error(t, err)
	_, err = st.SaveSweep("full", "bdf", 500, nil)
	assert.Error(t, err)
}

func TestSaveSweep(t *testing.T) {
	st := newStore(t)
	points := []sim.SweepPoint{
		{Stiffness: 20, FinalForce: 50, PeakVelocity: 1.5, Points: 90},
		{Stiffness: 25, FinalForce: 60, PeakVelocity: 1.2, Points: 95, Degeneracies: 2},
	}
	id, err := st.SaveSweep("full", "bdf", 500, points)
	require.NoError(t, err)

	meta, tbl, err := st.LoadTable(id)
	require.NoError(t, err)
	assert.Equal(t, KindSweep, meta.Kind)
	assert.Equal(t, int64(2), meta.Degeneracies)
	assert.Equal(t, []float64{20, 25}, tbl.Column("stiffness"))
	assert.Equal(t, []float64{50, 60}, tbl.Column("final_force"))
	assert.Equal(t, []float64{90, 95}, tbl.Column("points"))
}

func TestList(t *testing.T) {
	st := newStore(t)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	first, err := st.Save(sampleResult(), nil, nil)
	require.NoError(t, err)
	second, err := st.SaveSweep("density", "rk45", 500, []sim.SweepPoint{{Stiffness: 20}})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(st.baseDir, "junk"), 0755))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)
}

func TestList_MissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoad_NotFound(t *testing.T) {
	st := newStore(t)
	_, err := st.Load("ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, _, err = st.LoadTable("ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExportJSON(t *testing.T) {
	st := newStore(t)
	id, err := st.Save(sampleResult(), nil, nil)
	require.NoError(t, err)
	meta, tbl, err := st.LoadTable(id)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, meta, tbl))

	var out ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, id, out.Metadata.ID)
	assert.Equal(t, []float64{0.05, 0.04, 0.03}, out.Columns["velocity"])
	assert.Len(t, out.Columns, len(tbl.Header))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &Table{
		Header: []string{"a", "b"},
		Rows:   [][]float64{{1, 0.1}, {2.5, 1e-9}},
	}))
	assert.Equal(t, "a,b\n1,0.1\n2.5,1e-09\n", buf.String())
}
