package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/swarmlab/internal/config"
	"github.com/san-kum/swarmlab/internal/metrics"
	"github.com/san-kum/swarmlab/internal/physics"
	"github.com/san-kum/swarmlab/internal/sim"
)

const (
	metadataFile  = "metadata.json"
	telemetryFile = "telemetry.csv"
	configFile    = "config.yaml"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Mode       string             `json:"mode"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       uint32             `json:"seed"`
	Steps      int                `json:"steps"`
	Count      int                `json:"count"`
	Capacity   int                `json:"capacity"`
	Force      string             `json:"force"`
	Finder     string             `json:"finder"`
	Integrator string             `json:"integrator"`
	Metrics    map[string]float64 `json:"metrics"`
	Population int                `json:"final_population"`
	Error      string             `json:"error,omitempty"`
}

// StepRecord is one telemetry row.
type StepRecord struct {
	Step          uint64  `csv:"step"`
	Population    int     `csv:"population"`
	Births        int     `csv:"births"`
	Deaths        int     `csv:"deaths"`
	Rejected      int     `csv:"rejected"`
	Culled        int     `csv:"culled"`
	Eaten         int     `csv:"eaten"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	Momentum      float64 `csv:"momentum"`
	MeanFitness   float64 `csv:"mean_fitness"`
	Food          int     `csv:"food"`
}

// Columns lists the numeric telemetry columns by csv name.
func Columns() []string {
	return []string{
		"population", "births", "deaths", "rejected", "culled", "eaten",
		"kinetic_energy", "momentum", "mean_fitness", "food",
	}
}

// Column extracts one named column from the records.
func Column(records []StepRecord, name string) ([]float64, error) {
	pick := map[string]func(StepRecord) float64{
		"population":     func(r StepRecord) float64 { return float64(r.Population) },
		"births":         func(r StepRecord) float64 { return float64(r.Births) },
		"deaths":         func(r StepRecord) float64 { return float64(r.Deaths) },
		"rejected":       func(r StepRecord) float64 { return float64(r.Rejected) },
		"culled":         func(r StepRecord) float64 { return float64(r.Culled) },
		"eaten":          func(r StepRecord) float64 { return float64(r.Eaten) },
		"kinetic_energy": func(r StepRecord) float64 { return r.KineticEnergy },
		"momentum":       func(r StepRecord) float64 { return r.Momentum },
		"mean_fitness":   func(r StepRecord) float64 { return r.MeanFitness },
		"food":           func(r StepRecord) float64 { return float64(r.Food) },
	}[name]
	if pick == nil {
		return nil, fmt.Errorf("unknown column: %s", name)
	}
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = pick(r)
	}
	return out, nil
}

// Run is an open run directory receiving telemetry.
type Run struct {
	id            string
	dir           string
	meta          RunMetadata
	telemetry     *os.File
	headerWritten bool
	writeErr      error
}

// Begin creates the run directory, stores the resolved config next to it and
// opens the telemetry file.
func (s *Store) Begin(cfg *config.Config) (*Run, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	now := time.Now()
	base := fmt.Sprintf("%s_%d", cfg.Mode, now.Unix())

	id := base
	dir := filepath.Join(s.baseDir, id)
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating run directory: %w", err)
		}
		id = fmt.Sprintf("%s_%d", base, n)
		dir = filepath.Join(s.baseDir, id)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", configFile, err)
	}

	f, err := os.Create(filepath.Join(dir, telemetryFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", telemetryFile, err)
	}

	return &Run{
		id:        id,
		dir:       dir,
		telemetry: f,
		meta: RunMetadata{
			ID:         id,
			Mode:       cfg.Mode,
			Timestamp:  now,
			Seed:       cfg.Seed,
			Steps:      cfg.Steps,
			Count:      cfg.Count,
			Capacity:   cfg.Capacity,
			Force:      cfg.Force,
			Finder:     cfg.Finder,
			Integrator: cfg.Integrator,
		},
	}, nil
}

func (r *Run) ID() string  { return r.id }
func (r *Run) Dir() string { return r.dir }

// Write appends one telemetry row; the header goes with the first.
func (r *Run) Write(rec StepRecord) error {
	records := []StepRecord{rec}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.telemetry); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.telemetry); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// Record builds the telemetry row for the engine's current step.
func Record(e *sim.Engine) StepRecord {
	s := e.Store()
	last := e.LastStats()
	rec := StepRecord{
		Step:          e.Step(),
		Population:    s.LiveCount(),
		Births:        last.Births,
		Deaths:        last.Deaths,
		Rejected:      last.Rejected,
		Culled:        last.Culled,
		Eaten:         last.Eaten,
		KineticEnergy: physics.KineticEnergy(s),
		Momentum:      r3.Norm(physics.Momentum(s)),
		MeanFitness:   metrics.FitnessOf(s),
	}
	if f := e.Field(); f != nil {
		rec.Food = len(f.Food)
	}
	return rec
}

// OnStep lets a Run observe an engine directly. The first write error is
// kept and reported by Finish.
func (r *Run) OnStep(e *sim.Engine) {
	if r.writeErr != nil {
		return
	}
	r.writeErr = r.Write(Record(e))
}

// Finish writes metadata.json and closes the telemetry file. runErr is
// recorded when the run stopped early.
func (r *Run) Finish(metrics map[string]float64, population int, runErr error) error {
	r.meta.Metrics = metrics
	r.meta.Population = population
	if runErr != nil {
		r.meta.Error = runErr.Error()
	}

	closeErr := errors.Join(r.writeErr, r.telemetry.Close())

	f, err := os.Create(filepath.Join(r.dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.meta); err != nil {
		return err
	}
	return closeErr
}

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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadConfig reads back the config a run was started with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

func (s *Store) LoadTelemetry(runID string) ([]StepRecord, error) {
	path := filepath.Join(s.baseDir, runID, telemetryFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records := []StepRecord{}
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return records, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}
