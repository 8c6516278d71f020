package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/persistence"
	"github.com/pthm-cable/biosim/systems"
	"github.com/pthm-cable/biosim/telemetry"
)

func testConfig(seed uint64) *config.Config {
	cfg := config.Default()
	cfg.Simulation.Seed = seed
	cfg.Telemetry.LogEvery = 0

	var pop []components.AnimalSpec
	for i := 0; i < 50; i++ {
		pop = append(pop, components.AnimalSpec{Species: components.Herbivore, Age: 5, Weight: components.Weight(20)})
	}
	for i := 0; i < 20; i++ {
		pop = append(pop, components.AnimalSpec{Species: components.Carnivore, Age: 5, Weight: components.Weight(20)})
	}
	cfg.Population = []components.PopulationRecord{{Loc: components.Loc(2, 3), Pop: pop}}
	return cfg
}

func newTestSimulation(t *testing.T, opts Options) *Simulation {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustSnapshot(t *testing.T, s *Simulation) *telemetry.Snapshot {
	t.Helper()
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestNew_PlacesPopulation(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(1)})
	if s.Year() != 0 {
		t.Errorf("Year = %d, want 0", s.Year())
	}
	n := s.NumAnimalsPerSpecies()
	if n[components.Herbivore] != 50 || n[components.Carnivore] != 20 {
		t.Errorf("NumAnimalsPerSpecies = %v", n)
	}
	if s.NumAnimals() != 70 {
		t.Errorf("NumAnimals = %d", s.NumAnimals())
	}
}

func TestNew_InvalidPopulation(t *testing.T) {
	cfg := testConfig(1)
	cfg.Population = append(cfg.Population, components.PopulationRecord{
		Loc: components.Loc(1, 1),
		Pop: []components.AnimalSpec{{Species: components.Herbivore, Age: 1}},
	})
	if _, err := New(Options{Config: cfg}); !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("New with animals on water: err = %v, want configuration error", err)
	}
}

func TestNew_DoesNotAliasConfig(t *testing.T) {
	cfg := testConfig(1)
	s := newTestSimulation(t, Options{Config: cfg})
	if err := s.SetAnimalParameters("Herbivore", map[string]float64{"gamma": 0.9}); err != nil {
		t.Fatal(err)
	}
	if cfg.Herbivore.Gamma == 0.9 {
		t.Error("parameter update leaked into the caller's config")
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	a := newTestSimulation(t, Options{Config: testConfig(42)})
	b := newTestSimulation(t, Options{Config: testConfig(42)})
	ctx := context.Background()
	if err := a.Simulate(ctx, 15); err != nil {
		t.Fatal(err)
	}
	if err := b.Simulate(ctx, 15); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a.History(), b.History()) {
		t.Error("histories differ for the same seed")
	}
	if !reflect.DeepEqual(mustSnapshot(t, a), mustSnapshot(t, b)) {
		t.Error("final states differ for the same seed")
	}
}

func TestSimulate_ResumableInChunks(t *testing.T) {
	ctx := context.Background()
	whole := newTestSimulation(t, Options{Config: testConfig(3)})
	if err := whole.Simulate(ctx, 10); err != nil {
		t.Fatal(err)
	}

	chunked := newTestSimulation(t, Options{Config: testConfig(3)})
	for _, n := range []int{4, 0, 6} {
		if err := chunked.Simulate(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	if chunked.Year() != 10 {
		t.Errorf("Year = %d, want 10", chunked.Year())
	}
	if !reflect.DeepEqual(whole.History(), chunked.History()) {
		t.Error("running in chunks changed the history")
	}
}

func TestRestore_ContinuesBitIdentically(t *testing.T) {
	ctx := context.Background()
	whole := newTestSimulation(t, Options{Config: testConfig(11)})
	if err := whole.Simulate(ctx, 12); err != nil {
		t.Fatal(err)
	}

	first := newTestSimulation(t, Options{Config: testConfig(11)})
	if err := first.Simulate(ctx, 5); err != nil {
		t.Fatal(err)
	}
	path, err := first.Save(t.TempDir())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	resumed, err := Load(path, Options{Config: testConfig(999)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { resumed.Close() })
	if resumed.Year() != 5 || resumed.Seed() != 11 {
		t.Fatalf("resumed at year %d seed %d", resumed.Year(), resumed.Seed())
	}
	if err := resumed.Simulate(ctx, 7); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(mustSnapshot(t, whole), mustSnapshot(t, resumed)) {
		t.Error("restored run diverged from the uninterrupted run")
	}
	if !reflect.DeepEqual(whole.History()[5:], resumed.History()) {
		t.Error("restored run history differs from the uninterrupted run")
	}
}

func TestRestore_KeepsParameters(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(1)})
	if err := s.SetAnimalParameters("Carnivore", map[string]float64{"DeltaPhiMax": 4}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLandscapeParameters("H", map[string]float64{"f_max": 150}); err != nil {
		t.Fatal(err)
	}

	r, err := Restore(mustSnapshot(t, s), Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	cfg := r.Config()
	if cfg.Carnivore.DeltaPhiMax != 4 || cfg.Landscape.Highland.FMax != 150 {
		t.Errorf("restored parameters = %v / %v", cfg.Carnivore.DeltaPhiMax, cfg.Landscape.Highland.FMax)
	}
	if cfg.Derived.BirthThreshold != s.Config().Derived.BirthThreshold {
		t.Error("derived values not recomputed on restore")
	}
}

func TestSimulate_Cancelled(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(1)})
	before := mustSnapshot(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Simulate(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Simulate = %v, want context.Canceled", err)
	}
	if s.Year() != 0 {
		t.Errorf("Year = %d after cancelled run", s.Year())
	}
	if !reflect.DeepEqual(before, mustSnapshot(t, s)) {
		t.Error("cancelled run changed the state")
	}
}

func TestSimulate_NegativeYears(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(1)})
	if err := s.Simulate(context.Background(), -1); !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("Simulate(-1) = %v, want configuration error", err)
	}
}

func TestSimulate_HistoryAndSnapshots(t *testing.T) {
	cfg := testConfig(5)
	cfg.Telemetry.KeepSnapshots = 3
	s := newTestSimulation(t, Options{Config: cfg})
	if err := s.Simulate(context.Background(), 6); err != nil {
		t.Fatal(err)
	}

	hist := s.History()
	if len(hist) != 6 {
		t.Fatalf("history has %d rows, want 6", len(hist))
	}
	for i, h := range hist {
		if h.Year != i+1 {
			t.Errorf("history[%d].Year = %d", i, h.Year)
		}
		if h.Herbivores+h.Carnivores != h.Total {
			t.Errorf("year %d: %d + %d != %d", h.Year, h.Herbivores, h.Carnivores, h.Total)
		}
	}
	last := hist[len(hist)-1]
	n := s.NumAnimalsPerSpecies()
	if last.Herbivores != n[components.Herbivore] || last.Carnivores != n[components.Carnivore] {
		t.Errorf("last history row %d/%d, island %v", last.Herbivores, last.Carnivores, n)
	}

	snaps := s.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("kept %d snapshots, want 3", len(snaps))
	}
	for i, snap := range snaps {
		if snap.Year != 4+i {
			t.Errorf("snapshot %d is year %d, want %d", i, snap.Year, 4+i)
		}
	}
}

func TestSetAnimalParameters(t *testing.T) {
	tests := []struct {
		name    string
		species string
		params  map[string]float64
		wantErr bool
	}{
		{"valid", "Herbivore", map[string]float64{"gamma": 0.3, "F": 12}, false},
		{"lower case species", "carnivore", map[string]float64{"DeltaPhiMax": 9}, false},
		{"unknown species", "Omnivore", map[string]float64{"gamma": 0.3}, true},
		{"unknown key", "Herbivore", map[string]float64{"gama": 0.3}, true},
		{"herbivore has no DeltaPhiMax", "Herbivore", map[string]float64{"DeltaPhiMax": 1}, true},
		{"negative", "Carnivore", map[string]float64{"omega": -1}, true},
		{"eta above one", "Herbivore", map[string]float64{"eta": 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulation(t, Options{Config: testConfig(1)})
			before := *s.Config()

			err := s.SetAnimalParameters(tt.species, tt.params)
			if tt.wantErr {
				if !errors.Is(err, config.ErrConfiguration) {
					t.Fatalf("err = %v, want configuration error", err)
				}
				if s.Config().Herbivore != before.Herbivore || s.Config().Carnivore != before.Carnivore {
					t.Error("failed update changed parameters")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSetAnimalParameters_RefreshesFitness(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(2)})
	if err := s.Simulate(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnimalParameters("Carnivore", map[string]float64{"a_half": 1, "phi_age": 5}); err != nil {
		t.Fatal(err)
	}

	snap := mustSnapshot(t, s)
	stale := 0
	for _, a := range snap.Animals {
		if a.Fitness != systems.Fitness(a.Age, a.Weight, s.Config().Species(a.Species)) {
			stale++
		}
	}
	if stale > 0 {
		t.Errorf("%d animals carry fitness from old parameters", stale)
	}
}

func TestRestore_AfterParameterUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulation(t, Options{Config: testConfig(6)})
	if err := s.Simulate(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnimalParameters("Herbivore", map[string]float64{"w_half": 15, "phi_weight": 0.8}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnimalParameters("Carnivore", map[string]float64{"a_half": 20, "phi_age": 0.5}); err != nil {
		t.Fatal(err)
	}

	r, err := Restore(mustSnapshot(t, s), Options{Config: testConfig(6)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })

	for _, sim := range []*Simulation{s, r} {
		if err := sim.Simulate(ctx, 1); err != nil {
			t.Fatal(err)
		}
	}
	if a, b := s.NumAnimalsPerSpecies(), r.NumAnimalsPerSpecies(); a != b {
		t.Fatalf("counts diverged: original %v, restored %v", a, b)
	}
	if !reflect.DeepEqual(mustSnapshot(t, s), mustSnapshot(t, r)) {
		t.Error("restored run diverged after a parameter update")
	}
}

func TestStep_PhaseNamesMatchTelemetry(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(1)})
	phases := s.Island().Phases()
	for i, ph := range phases {
		if telemetry.Phases[i] != ph.Name {
			t.Errorf("phase %d = %q, want %q", i, ph.Name, telemetry.Phases[i])
		}
	}
}

func TestSetLandscapeParameters(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(1)})

	if err := s.SetLandscapeParameters("L", map[string]float64{"f_max": 500}); err != nil {
		t.Fatalf("L: %v", err)
	}
	if s.Config().Landscape.Lowland.FMax != 500 {
		t.Errorf("Lowland f_max = %v", s.Config().Landscape.Lowland.FMax)
	}

	for _, code := range []string{"W", "D", "X"} {
		if err := s.SetLandscapeParameters(code, map[string]float64{"f_max": 10}); !errors.Is(err, config.ErrConfiguration) {
			t.Errorf("%s: err = %v, want configuration error", code, err)
		}
	}

	// New capacity applies at the next regrowth
	if err := s.Simulate(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	for _, c := range s.Island().Cells() {
		if c.Landscape == components.Lowland && c.Fodder > 500 {
			t.Errorf("cell %v has fodder %v above new capacity", c.Loc, c.Fodder)
		}
	}
}

func TestAddPopulation(t *testing.T) {
	s := newTestSimulation(t, Options{Config: testConfig(1)})
	if err := s.Simulate(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	before := s.NumAnimals()

	err := s.AddPopulation([]components.PopulationRecord{
		{Loc: components.Loc(3, 3), Pop: []components.AnimalSpec{{Species: components.Carnivore, Age: 2, Weight: components.Weight(9)}}},
		{Loc: components.Loc(5, 5), Pop: []components.AnimalSpec{{Species: components.Carnivore, Age: 2}}},
	})
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("placing on water: err = %v", err)
	}
	if s.NumAnimals() != before {
		t.Fatal("failed placement added animals")
	}

	err = s.AddPopulation([]components.PopulationRecord{
		{Loc: components.Loc(3, 3), Pop: []components.AnimalSpec{
			{Species: components.Carnivore, Age: 2, Weight: components.Weight(9)},
			{Species: components.Carnivore, Age: 3},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.NumAnimals() != before+2 {
		t.Errorf("NumAnimals = %d, want %d", s.NumAnimals(), before+2)
	}
}

func TestSimulate_WritesOutputs(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	snapDir := filepath.Join(t.TempDir(), "snaps")
	cfg := testConfig(8)
	cfg.Telemetry.SnapshotEvery = 2

	s, err := New(Options{Config: cfg, OutputDir: outDir, SnapshotDir: snapDir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Simulate(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := telemetry.ReadHistory(filepath.Join(outDir, "history.csv"))
	if err != nil {
		t.Fatal(err)
	}
	hist := s.History()
	if len(rows) != len(hist) {
		t.Fatalf("history.csv has %d rows, want %d", len(rows), len(hist))
	}
	for i := range rows {
		got, want := rows[i], hist[i]
		if got.Year != want.Year || got.Herbivores != want.Herbivores ||
			got.Carnivores != want.Carnivores || got.Kills != want.Kills {
			t.Errorf("history.csv row %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "config.yaml")); err != nil {
		t.Errorf("config.yaml not written: %v", err)
	}

	for _, year := range []int{2, 4} {
		path := filepath.Join(snapDir, fmt.Sprintf("snapshot_%05d.json", year))
		snap, err := telemetry.LoadSnapshot(path)
		if err != nil {
			t.Errorf("year %d snapshot: %v", year, err)
			continue
		}
		if snap.Year != year {
			t.Errorf("%s holds year %d", path, snap.Year)
		}
	}
}

func TestSimulate_Database(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s := newTestSimulation(t, Options{Config: testConfig(21), DB: db})
	if s.RunID() == "" {
		t.Fatal("no run created")
	}
	ctx := context.Background()
	if err := s.Simulate(ctx, 3); err != nil {
		t.Fatal(err)
	}

	hist, err := db.History(s.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(hist, s.History()) {
		t.Errorf("stored history = %+v\nwant %+v", hist, s.History())
	}

	state, err := db.LoadState(s.RunID())
	if err != nil {
		t.Fatal(err)
	}
	resumed, err := Restore(state, Options{Config: testConfig(21), DB: db, RunID: s.RunID()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resumed.Close() })

	if err := s.Simulate(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := resumed.Simulate(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(mustSnapshot(t, s), mustSnapshot(t, resumed)) {
		t.Error("run resumed from the database diverged")
	}

	runs, err := db.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].LastYear != 5 {
		t.Errorf("ListRuns = %+v", runs)
	}
}
