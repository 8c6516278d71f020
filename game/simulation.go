package game

import (
	"context"
	"fmt"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/persistence"
	"github.com/pthm-cable/biosim/systems"
	"github.com/pthm-cable/biosim/telemetry"
)

// Options configures a Simulation.
type Options struct {
	Config      *config.Config // nil = embedded defaults
	OutputDir   string         // CSV and config output, empty disables
	SnapshotDir string         // snapshot JSON files, empty disables
	DB          *persistence.DB
	RunID       string // continue an existing run in DB instead of creating one
}

// Simulation owns an island and runs it year by year. It records yearly
// statistics and snapshots and feeds the configured outputs.
type Simulation struct {
	cfg    *config.Config
	seed   uint64
	island *systems.Island
	year   int

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	snapshotDir      string

	// Persistence
	db    *persistence.DB
	runID string

	history   []telemetry.YearStats
	snapshots []*telemetry.Snapshot
}

// New creates a simulation from opts. The configuration is copied, its
// initial population placed and a run created in opts.DB if set.
func New(opts Options) (*Simulation, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	cfg = cfg.Clone()

	env := systems.NewEnv(cfg.Simulation.Seed, cfg)
	island, err := systems.NewIsland(cfg.Simulation.Geography, env)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:              cfg,
		seed:             cfg.Simulation.Seed,
		island:           island,
		collector:        telemetry.NewCollector(),
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		bookmarkDetector: telemetry.NewBookmarkDetector(cfg.Bookmarks, cfg.Telemetry.BookmarkHistorySize),
		snapshotDir:      opts.SnapshotDir,
		db:               opts.DB,
		runID:            opts.RunID,
	}
	env.SetRecorder(s.collector)

	if err := island.PlaceAnimals(cfg.Population); err != nil {
		return nil, err
	}

	if err := s.openOutputs(opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulation) openOutputs(opts Options) error {
	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return err
	}
	s.outputManager = om
	if err := om.WriteConfig(s.cfg); err != nil {
		om.Close()
		return err
	}

	if s.db != nil && s.runID == "" {
		id, err := s.db.CreateRun(s.cfg)
		if err != nil {
			om.Close()
			return fmt.Errorf("create run: %w", err)
		}
		s.runID = id
	}
	return nil
}

// Simulate runs the given number of years. Cancellation is checked between
// years: on return the state is that of the last completed year and ctx.Err()
// is returned. The state reached is persisted when a database is attached.
func (s *Simulation) Simulate(ctx context.Context, years int) error {
	if years < 0 {
		return config.Errorf("number of years must be >= 0, got %d", years)
	}

	var runErr error
	for i := 0; i < years; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := s.step(); err != nil {
			runErr = err
			break
		}
	}

	if err := s.persistState(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// step runs one year and records it.
func (s *Simulation) step() error {
	is := s.island
	s.perfCollector.StartYear()

	for _, ph := range is.Phases() {
		s.perfCollector.StartPhase(ph.Name)
		ph.Run()
	}

	s.year++

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	stats, snap, bookmarks, err := s.recordYear()
	s.perfCollector.EndYear()
	if err != nil {
		return err
	}

	return s.flushTelemetry(stats, snap, bookmarks)
}

// Year returns the number of completed years.
func (s *Simulation) Year() int { return s.year }

// Seed returns the seed the run was started with.
func (s *Simulation) Seed() uint64 { return s.seed }

// Config returns the live configuration. Use the Set*Parameters methods to
// change it.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Island returns the simulated island.
func (s *Simulation) Island() *systems.Island { return s.island }

// RunID returns the database run id, empty without a database.
func (s *Simulation) RunID() string { return s.runID }

// NumAnimals returns the number of living animals.
func (s *Simulation) NumAnimals() int { return s.island.NumAnimals() }

// NumAnimalsPerSpecies returns the number of living animals per species.
func (s *Simulation) NumAnimalsPerSpecies() [components.NumSpecies]int {
	return s.island.NumAnimalsPerSpecies()
}

// History returns the statistics of every year simulated by this value.
func (s *Simulation) History() []telemetry.YearStats {
	out := make([]telemetry.YearStats, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshots returns the retained yearly snapshots, oldest first.
func (s *Simulation) Snapshots() []*telemetry.Snapshot {
	out := make([]*telemetry.Snapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}

// Snapshot captures the current state.
func (s *Simulation) Snapshot() (*telemetry.Snapshot, error) {
	return telemetry.NewSnapshot(s.year, s.seed, s.island)
}

// Close flushes and closes the output files. The database is owned by the
// caller and stays open.
func (s *Simulation) Close() error {
	return s.outputManager.Close()
}
