package telemetry

import (
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/systems"
)

func testIsland(t *testing.T, seed uint64, years int) *systems.Island {
	t.Helper()
	cfg := config.Default()
	is, err := systems.NewIsland(cfg.Simulation.Geography, systems.NewEnv(seed, cfg))
	if err != nil {
		t.Fatal(err)
	}
	pop := make([]components.AnimalSpec, 0, 60)
	for i := 0; i < 40; i++ {
		pop = append(pop, components.AnimalSpec{Species: components.Herbivore, Age: 5, Weight: components.Weight(20)})
	}
	for i := 0; i < 20; i++ {
		pop = append(pop, components.AnimalSpec{Species: components.Carnivore, Age: 5, Weight: components.Weight(20)})
	}
	if err := is.PlaceAnimals([]components.PopulationRecord{{Loc: components.Loc(2, 3), Pop: pop}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < years; i++ {
		is.Step()
	}
	return is
}

func TestNewSnapshot(t *testing.T) {
	is := testIsland(t, 7, 3)
	snap, err := NewSnapshot(3, 7, is)
	if err != nil {
		t.Fatal(err)
	}

	if snap.Year != 3 || snap.Version != SnapshotVersion {
		t.Errorf("header = %d/%d", snap.Year, snap.Version)
	}
	counts := snap.NumAnimals()
	if counts != is.NumAnimalsPerSpecies() {
		t.Errorf("NumAnimals = %v, island has %v", counts, is.NumAnimalsPerSpecies())
	}
	for _, sp := range components.AllSpecies {
		total := 0
		for _, row := range snap.Counts(sp) {
			for _, n := range row {
				total += n
			}
		}
		if total != counts[sp] {
			t.Errorf("%s grid total %d, want %d", sp, total, counts[sp])
		}
	}
	if len(snap.RandState) == 0 {
		t.Error("random state not captured")
	}
}

func TestSnapshot_PopulationRoundTrip(t *testing.T) {
	is := testIsland(t, 11, 4)
	snap, err := NewSnapshot(4, 11, is)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	rebuilt, err := systems.NewIsland(snap.Geography, systems.NewEnv(11, cfg))
	if err != nil {
		t.Fatal(err)
	}
	if err := rebuilt.PlaceAnimals(snap.Population()); err != nil {
		t.Fatal(err)
	}

	got := rebuilt.Animals()
	if len(got) != len(snap.Animals) {
		t.Fatalf("rebuilt %d animals, want %d", len(got), len(snap.Animals))
	}
	for i := range got {
		a, b := got[i], snap.Animals[i]
		if a.Species != b.Species || a.Age != b.Age || a.Weight != b.Weight || a.Loc != b.Loc {
			t.Errorf("animal %d = %+v, want %+v", i, a, b)
		}
	}
}

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	is := testIsland(t, 3, 2)
	snap, err := NewSnapshot(2, 3, is)
	if err != nil {
		t.Fatal(err)
	}
	snap.Bookmark = &Bookmark{Type: BookmarkHerbivoreCrash, Year: 2, Description: "test"}

	path, err := SaveSnapshot(snap, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_00002_herbivore_crash.json"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(loaded, snap) {
		t.Error("loaded snapshot differs from saved one")
	}
}

func TestLoadSnapshot_Missing(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSnapshot_Distributions(t *testing.T) {
	snap := &Snapshot{Animals: []components.AnimalState{
		{Species: components.Herbivore, Age: 1, Weight: 5, Fitness: 0.2},
		{Species: components.Herbivore, Age: 100, Weight: 500, Fitness: 1},
		{Species: components.Carnivore, Age: 3, Weight: 12, Fitness: 0.6},
	}}

	dists := snap.Distributions()
	if want := components.NumSpecies * len(components.AnimalFieldDescriptors()); len(dists) != want {
		t.Fatalf("got %d distributions, want %d", len(dists), want)
	}
	for _, d := range dists {
		want := float64(snap.NumAnimals()[d.Species])
		if got := floats.Sum(d.Counts); got != want {
			t.Errorf("%s %s: histogram holds %g animals, want %g", d.Species, d.Property, got, want)
		}
		if len(d.Dividers) != len(d.Counts)+1 {
			t.Errorf("%s %s: %d dividers for %d bins", d.Species, d.Property, len(d.Dividers), len(d.Counts))
		}
	}

	// Out-of-range values land in the last bin.
	age := snap.Distribution(components.Herbivore, components.AnimalFieldDescriptors()[0])
	if age.Counts[len(age.Counts)-1] != 1 {
		t.Errorf("last age bin = %g, want 1", age.Counts[len(age.Counts)-1])
	}
	if age.Summary.N != 2 || age.Summary.Mean != 50.5 {
		t.Errorf("age summary = %+v", age.Summary)
	}
}
