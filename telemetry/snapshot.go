package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is the immutable record of the island at the end of a year. It
// carries everything needed to rebuild the island and continue the run.
type Snapshot struct {
	Version int    `json:"version"`
	Year    int    `json:"year"`
	Seed    uint64 `json:"seed"`

	Geography string `json:"geography"`

	// Per-cell counts indexed [row-1][col-1]
	Herbivores [][]int     `json:"herbivores"`
	Carnivores [][]int     `json:"carnivores"`
	Fodder     [][]float64 `json:"fodder"`

	// Every living animal, row-major by cell, herbivores first, resident order
	Animals []components.AnimalState `json:"animals"`

	// Parameters in effect and the random source state after the year
	HerbivoreParams config.SpeciesParams   `json:"herbivore_params"`
	CarnivoreParams config.SpeciesParams   `json:"carnivore_params"`
	LandscapeParams config.LandscapeConfig `json:"landscape_params"`
	RandState       []byte                 `json:"rand_state,omitempty"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// NewSnapshot captures the current state of is.
func NewSnapshot(year int, seed uint64, is *systems.Island) (*Snapshot, error) {
	env := is.Env()
	state, err := env.RandState()
	if err != nil {
		return nil, fmt.Errorf("capture random state: %w", err)
	}

	fodder := make([][]float64, is.Rows())
	for r := range fodder {
		fodder[r] = make([]float64, is.Cols())
	}
	for _, c := range is.Cells() {
		fodder[c.Loc.Row-1][c.Loc.Col-1] = c.Fodder
	}

	return &Snapshot{
		Version:         SnapshotVersion,
		Year:            year,
		Seed:            seed,
		Geography:       is.Geography(),
		Herbivores:      is.CountGrid(components.Herbivore),
		Carnivores:      is.CountGrid(components.Carnivore),
		Fodder:          fodder,
		Animals:         is.Animals(),
		HerbivoreParams: env.Cfg.Herbivore,
		CarnivoreParams: env.Cfg.Carnivore,
		LandscapeParams: env.Cfg.Landscape,
		RandState:       state,
	}, nil
}

// Counts returns the per-cell count grid of species s.
func (s *Snapshot) Counts(sp components.Species) [][]int {
	if sp == components.Carnivore {
		return s.Carnivores
	}
	return s.Herbivores
}

// NumAnimals returns the number of animals per species.
func (s *Snapshot) NumAnimals() [components.NumSpecies]int {
	var n [components.NumSpecies]int
	for _, a := range s.Animals {
		n[a.Species]++
	}
	return n
}

// Population converts the animal list back to population records. Placing
// the records on an island with the same map reproduces the animals, and
// their order, exactly.
func (s *Snapshot) Population() []components.PopulationRecord {
	var records []components.PopulationRecord
	for _, a := range s.Animals {
		if n := len(records); n == 0 || records[n-1].Loc != a.Loc {
			records = append(records, components.PopulationRecord{Loc: a.Loc})
		}
		rec := &records[len(records)-1]
		rec.Pop = append(rec.Pop, components.AnimalSpec{
			Species: a.Species,
			Age:     a.Age,
			Weight:  components.Weight(a.Weight),
		})
	}
	return records
}

// Distribution summarises one property of one species.
type Distribution struct {
	Species  components.Species  `json:"species"`
	Property components.Property `json:"property"`
	Summary  Summary             `json:"summary"`
	Dividers []float64           `json:"dividers"`
	Counts   []float64           `json:"counts"`
}

// Distribution bins property p of species sp using the field's descriptor.
// Values at or above the last divider are counted in the last bin.
func (s *Snapshot) Distribution(sp components.Species, fd components.FieldDescriptor) Distribution {
	var values []float64
	for _, a := range s.Animals {
		if a.Species == sp {
			values = append(values, a.Value(fd.ID))
		}
	}
	sort.Float64s(values)

	bins := max(1, int(math.Round(fd.Max/fd.Delta)))
	dividers := floats.Span(make([]float64, bins+1), 0, fd.Max)

	clamped := make([]float64, len(values))
	top := math.Nextafter(fd.Max, 0)
	for i, v := range values {
		clamped[i] = math.Min(math.Max(v, 0), top)
	}

	return Distribution{
		Species:  sp,
		Property: fd.ID,
		Summary:  Summarize(values),
		Dividers: dividers,
		Counts:   stat.Histogram(nil, dividers, clamped, nil),
	}
}

// Distributions returns every property distribution of every species.
func (s *Snapshot) Distributions() []Distribution {
	var out []Distribution
	for _, sp := range components.AllSpecies {
		for _, fd := range components.AnimalFieldDescriptors() {
			out = append(out, s.Distribution(sp, fd))
		}
	}
	return out
}

// SaveSnapshot writes a snapshot to dir and returns the file path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%05d", snapshot.Year)
	if snapshot.Bookmark != nil {
		name = fmt.Sprintf("snapshot_%05d_%s", snapshot.Year, snapshot.Bookmark.Type)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
