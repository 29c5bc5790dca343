// Package storage persists runs and sweeps as a directory per record:
// metadata.json plus a CSV table of the aligned series.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/contractsim/internal/dynamo"
	"github.com/san-kum/contractsim/internal/metrics"
	"github.com/san-kum/contractsim/internal/params"
	"github.com/san-kum/contractsim/internal/sim"
)

var ErrNotFound = errors.New("storage: run not found")

const (
	KindRun   = "run"
	KindSweep = "sweep"

	metadataFile = "metadata.json"
	runTable     = "trajectory.csv"
	sweepTable   = "sweep.csv"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	Model        string             `json:"model"`
	Timestamp    time.Time          `json:"timestamp"`
	Integrator   string             `json:"integrator"`
	Stiffness    float64            `json:"stiffness,omitempty"`
	TMax         float64            `json:"t_max"`
	Parameters   map[string]float64 `json:"parameters,omitempty"`
	Summary      *metrics.Summary   `json:"summary,omitempty"`
	Stats        *dynamo.Stats      `json:"stats,omitempty"`
	Degeneracies int64              `json:"degeneracies"`
	Points       int                `json:"points"`
	Error        string             `json:"error,omitempty"`
}

// Table is a CSV body read back from a record.
type Table struct {
	Header []string
	Rows   [][]float64
}

// Column returns the named column, or nil when absent.
func (t *Table) Column(name string) []float64 {
	for j, h := range t.Header {
		if h != name {
			continue
		}
		out := make([]float64, len(t.Rows))
		for i, row := range t.Rows {
			out[i] = row[j]
		}
		return out
	}
	return nil
}

func stateColumns(v params.Variant, dim int) []string {
	if v == params.Full && dim == 2 {
		return []string{"force", "bound_filaments"}
	}
	cols := []string{"force"}
	for i := 1; i < dim; i++ {
		cols = append(cols, fmt.Sprintf("x%d", i))
	}
	return cols
}

func (s *Store) newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, s.now().UTC().Format("20060102T150405.000000000"))
}

// Save writes a run. A non-nil runErr is recorded in the metadata so partial
// trajectories remain distinguishable.
func (s *Store) Save(res *sim.Result, parameters map[string]float64, runErr error) (string, error) {
	if res == nil || len(res.Times) == 0 {
		return "", fmt.Errorf("storage: nothing to save")
	}
	id := s.newID(fmt.Sprintf("%s_k%g", res.Variant.Short(), res.Stiffness))

	stats := res.Stats
	summary := res.Summary
	meta := RunMetadata{
		ID:           id,
		Kind:         KindRun,
		Model:        res.Variant.Short(),
		Timestamp:    s.now(),
		Integrator:   res.Solver,
		Stiffness:    res.Stiffness,
		TMax:         res.TMax,
		Parameters:   parameters,
		Summary:      &summary,
		Stats:        &stats,
		Degeneracies: res.Degeneracies,
		Points:       len(res.Times),
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	header := append([]string{"time"}, stateColumns(res.Variant, len(res.States[0]))...)
	header = append(header, "displacement", "velocity", "transmitted_power", "dissipated_power")
	rows := make([][]float64, len(res.Times))
	for i, t := range res.Times {
		row := make([]float64, 0, len(header))
		row = append(row, t)
		row = append(row, res.States[i]...)
		row = append(row, res.Displacements[i], res.Velocities[i], res.Transmitted[i], res.Dissipated[i])
		rows[i] = row
	}

	if err := s.write(meta, runTable, &Table{Header: header, Rows: rows}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SaveSweep(model, integrator string, tMax float64, points []sim.SweepPoint) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("storage: nothing to save")
	}
	id := s.newID(model + "_sweep")
	meta := RunMetadata{
		ID:         id,
		Kind:       KindSweep,
		Model:      model,
		Timestamp:  s.now(),
		Integrator: integrator,
		TMax:       tMax,
		Points:     len(points),
	}
	for _, p := range points {
		meta.Degeneracies += p.Degeneracies
	}

	tbl := &Table{Header: []string{
		"stiffness", "final_force", "peak_velocity", "peak_model_velocity",
		"transmitted_work", "dissipated_work", "points",
	}}
	for _, p := range points {
		tbl.Rows = append(tbl.Rows, []float64{
			p.Stiffness, p.FinalForce, p.PeakVelocity, p.PeakModelVel,
			p.TransmittedWork, p.DissipatedWork, float64(p.Points),
		})
	}
	if err := s.write(meta, sweepTable, tbl); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) write(meta RunMetadata, table string, tbl *Table) error {
	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	metaFile, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(dir, table))
	if err != nil {
		return err
	}
	defer csvFile.Close()
	return WriteCSV(csvFile, tbl)
}

// List returns every readable record, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", id, err)
	}
	return &meta, nil
}

// LoadTable reads the CSV body of a record.
func (s *Store) LoadTable(id string) (*RunMetadata, *Table, error) {
	meta, err := s.Load(id)
	if err != nil {
		return nil, nil, err
	}
	name := runTable
	if meta.Kind == KindSweep {
		name = sweepTable
	}

	file, err := os.Open(filepath.Join(s.baseDir, id, name))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %s: %w", id, err)
	}
	if len(records) == 0 {
		return meta, &Table{}, nil
	}

	tbl := &Table{Header: records[0], Rows: make([][]float64, 0, len(records)-1)}
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: %s row %d: %w", id, i+1, err)
			}
			row[j] = v
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return meta, tbl, nil
}
