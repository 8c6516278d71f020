package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/game"
	"github.com/pthm-cable/biosim/persistence"
	"github.com/pthm-cable/biosim/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mapPath := flag.String("map", "", "Path to an island map file (overrides config geography)")
	populationPath := flag.String("population", "", "Path to a YAML/JSON initial population (overrides config population)")
	years := flag.Int("years", 0, "Years to simulate (0 = use config)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	dbPath := flag.String("db", "", "SQLite database for runs and resumable state")
	resume := flag.String("resume", "", "Resume from a snapshot file, or from a run id when -db is set")
	listRuns := flag.Bool("list-runs", false, "List runs stored in -db and exit")
	logEvery := flag.Int("log-every", -1, "Years between stats log lines (-1 = use config, 0 = off)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(runOptions{
		configPath:     *configPath,
		mapPath:        *mapPath,
		populationPath: *populationPath,
		years:          *years,
		seed:           *seed,
		outputDir:      *outputDir,
		snapshotDir:    *snapshotDir,
		dbPath:         *dbPath,
		resume:         *resume,
		listRuns:       *listRuns,
		logEvery:       *logEvery,
	}); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	configPath     string
	mapPath        string
	populationPath string
	years          int
	seed           uint64
	outputDir      string
	snapshotDir    string
	dbPath         string
	resume         string
	listRuns       bool
	logEvery       int
}

func run(o runOptions) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	var db *persistence.DB
	if o.dbPath != "" {
		db, err = persistence.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database opened", "path", o.dbPath)
	} else if o.listRuns {
		return errors.New("-list-runs requires -db")
	}

	if o.listRuns {
		return printRuns(db)
	}

	opts := game.Options{
		Config:      cfg,
		OutputDir:   o.outputDir,
		SnapshotDir: o.snapshotDir,
		DB:          db,
	}
	sim, err := openSimulation(o, opts)
	if err != nil {
		return err
	}
	defer sim.Close()

	years := cfg.Simulation.Years
	if o.years > 0 {
		years = o.years
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting simulation",
		"seed", sim.Seed(),
		"start_year", sim.Year(),
		"years", years,
		"animals", sim.NumAnimals(),
		"run", sim.RunID(),
	)

	err = sim.Simulate(ctx, years)
	if errors.Is(err, context.Canceled) {
		slog.Info("interrupted, state kept at last completed year", "year", sim.Year())
		err = nil
	}
	if err != nil {
		return err
	}

	if o.snapshotDir != "" {
		path, err := sim.Save(o.snapshotDir)
		if err != nil {
			return err
		}
		slog.Info("final state saved", "path", path)
	}

	fmt.Print(sim.Summary())
	return nil
}

// loadConfig loads the config file and applies the map, population and
// command line overrides.
func loadConfig(o runOptions) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.mapPath != "" {
		data, err := os.ReadFile(o.mapPath)
		if err != nil {
			return nil, fmt.Errorf("reading map file: %w", err)
		}
		cfg.Simulation.Geography = string(data)
	}
	if o.populationPath != "" {
		pop, err := config.LoadPopulation(o.populationPath)
		if err != nil {
			return nil, err
		}
		cfg.Population = pop
	}
	if o.seed != 0 {
		cfg.Simulation.Seed = o.seed
	}
	if o.logEvery >= 0 {
		cfg.Telemetry.LogEvery = o.logEvery
	}
	return cfg, nil
}

// openSimulation starts a fresh simulation or resumes one from a snapshot
// file or a stored run.
func openSimulation(o runOptions, opts game.Options) (*game.Simulation, error) {
	if o.resume == "" {
		return game.New(opts)
	}

	if opts.DB != nil {
		if _, statErr := os.Stat(o.resume); statErr != nil {
			snap, err := opts.DB.LoadState(o.resume)
			if err != nil {
				return nil, err
			}
			opts.RunID = o.resume
			slog.Info("resuming run", "run", o.resume, "year", snap.Year)
			return game.Restore(snap, opts)
		}
	}

	snap, err := telemetry.LoadSnapshot(o.resume)
	if err != nil {
		return nil, err
	}
	slog.Info("resuming from snapshot", "path", o.resume, "year", snap.Year)
	return game.Restore(snap, opts)
}

func printRuns(db *persistence.DB) error {
	runs, err := db.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored")
		return nil
	}
	for _, r := range runs {
		last := "not saved"
		if r.LastYear >= 0 {
			last = "year " + humanize.Comma(int64(r.LastYear))
		}
		fmt.Printf("%s  seed %-10d  %-10s  created %s\n",
			r.ID, r.Seed, last, humanize.Time(r.CreatedAt))
	}
	return nil
}
