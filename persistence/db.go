// Package persistence provides SQLite-based storage of runs, yearly history
// and resumable simulation state.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/telemetry"
)

// DB wraps a SQLite connection for simulation persistence.
type DB struct {
	conn *sqlx.DB
}

// RunInfo describes a stored run.
type RunInfo struct {
	ID        string
	CreatedAt time.Time
	Seed      uint64
	Geography string
	LastYear  int // -1 when no state has been saved
}

type runRow struct {
	ID        string `db:"id"`
	CreatedAt int64  `db:"created_at"`
	Seed      int64  `db:"seed"`
	Geography string `db:"geography"`
	Config    string `db:"config"`
	LastYear  int    `db:"last_year"`
}

type historyRow struct {
	RunID string `db:"run_id"`
	telemetry.YearStats
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		geography TEXT NOT NULL,
		config TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		run_id TEXT NOT NULL REFERENCES runs(id),
		year INTEGER NOT NULL,
		herbivores INTEGER NOT NULL,
		carnivores INTEGER NOT NULL,
		total INTEGER NOT NULL,
		herb_births INTEGER NOT NULL,
		carn_births INTEGER NOT NULL,
		herb_deaths INTEGER NOT NULL,
		carn_deaths INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		prey_eaten REAL NOT NULL,
		herb_migrations INTEGER NOT NULL,
		carn_migrations INTEGER NOT NULL,
		fodder REAL NOT NULL,
		herb_weight_mean REAL NOT NULL,
		herb_weight_p10 REAL NOT NULL,
		herb_weight_p50 REAL NOT NULL,
		herb_weight_p90 REAL NOT NULL,
		carn_weight_mean REAL NOT NULL,
		carn_weight_p10 REAL NOT NULL,
		carn_weight_p50 REAL NOT NULL,
		carn_weight_p90 REAL NOT NULL,
		herb_age_mean REAL NOT NULL,
		carn_age_mean REAL NOT NULL,
		herb_fitness_mean REAL NOT NULL,
		carn_fitness_mean REAL NOT NULL,
		PRIMARY KEY (run_id, year)
	);

	CREATE TABLE IF NOT EXISTS state (
		run_id TEXT PRIMARY KEY REFERENCES runs(id),
		year INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun records a new run and returns its id.
func (db *DB) CreateRun(cfg *config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, created_at, seed, geography, config) VALUES (?, ?, ?, ?, ?)",
		id, time.Now().Unix(), int64(cfg.Simulation.Seed), cfg.Simulation.Geography, string(data),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RunConfig returns the configuration a run was created with.
func (db *DB) RunConfig(runID string) (*config.Config, error) {
	var data string
	if err := db.conn.Get(&data, "SELECT config FROM runs WHERE id = ?", runID); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return config.Parse([]byte(data))
}

// SaveHistory appends yearly statistics to a run. Rows for years already
// stored are replaced.
func (db *DB) SaveHistory(runID string, rows []telemetry.YearStats) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range rows {
		_, err := tx.NamedExec(`INSERT OR REPLACE INTO history
			(run_id, year, herbivores, carnivores, total,
			 herb_births, carn_births, herb_deaths, carn_deaths, kills, prey_eaten,
			 herb_migrations, carn_migrations, fodder,
			 herb_weight_mean, herb_weight_p10, herb_weight_p50, herb_weight_p90,
			 carn_weight_mean, carn_weight_p10, carn_weight_p50, carn_weight_p90,
			 herb_age_mean, carn_age_mean, herb_fitness_mean, carn_fitness_mean)
			VALUES
			(:run_id, :year, :herbivores, :carnivores, :total,
			 :herb_births, :carn_births, :herb_deaths, :carn_deaths, :kills, :prey_eaten,
			 :herb_migrations, :carn_migrations, :fodder,
			 :herb_weight_mean, :herb_weight_p10, :herb_weight_p50, :herb_weight_p90,
			 :carn_weight_mean, :carn_weight_p10, :carn_weight_p50, :carn_weight_p90,
			 :herb_age_mean, :carn_age_mean, :herb_fitness_mean, :carn_fitness_mean)`,
			historyRow{RunID: runID, YearStats: s},
		)
		if err != nil {
			return fmt.Errorf("insert history year %d: %w", s.Year, err)
		}
	}

	return tx.Commit()
}

// History returns the stored statistics of a run in year order.
func (db *DB) History(runID string) ([]telemetry.YearStats, error) {
	var rows []historyRow
	if err := db.conn.Select(&rows, "SELECT * FROM history WHERE run_id = ? ORDER BY year", runID); err != nil {
		return nil, err
	}
	out := make([]telemetry.YearStats, len(rows))
	for i, r := range rows {
		out[i] = r.YearStats
	}
	return out, nil
}

// SaveState stores the resumable state of a run, replacing any earlier state.
func (db *DB) SaveState(runID string, snap *telemetry.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO state (run_id, year, snapshot_json) VALUES (?, ?, ?)",
		runID, snap.Year, string(data),
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	slog.Debug("state saved", "run", runID, "year", snap.Year, "animals", len(snap.Animals))
	return nil
}

// LoadState returns the last saved state of a run.
func (db *DB) LoadState(runID string) (*telemetry.Snapshot, error) {
	var data string
	if err := db.conn.Get(&data, "SELECT snapshot_json FROM state WHERE run_id = ?", runID); err != nil {
		return nil, fmt.Errorf("load state of run %s: %w", runID, err)
	}

	var snap telemetry.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version != telemetry.SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, telemetry.SnapshotVersion)
	}
	return &snap, nil
}

// ListRuns returns every stored run, newest first.
func (db *DB) ListRuns() ([]RunInfo, error) {
	var rows []runRow
	err := db.conn.Select(&rows, `
		SELECT r.id, r.created_at, r.seed, r.geography, r.config,
		       COALESCE(s.year, -1) AS last_year
		FROM runs r LEFT JOIN state s ON s.run_id = r.id
		ORDER BY r.created_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, err
	}

	runs := make([]RunInfo, len(rows))
	for i, r := range rows {
		runs[i] = RunInfo{
			ID:        r.ID,
			CreatedAt: time.Unix(r.CreatedAt, 0),
			Seed:      uint64(r.Seed),
			Geography: r.Geography,
			LastYear:  r.LastYear,
		}
	}
	return runs, nil
}
