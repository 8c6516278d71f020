package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/biosim/components"
)

// ---------- loading ----------

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Herbivore.F != 10 || cfg.Carnivore.F != 50 {
		t.Errorf("appetites = %g/%g, want 10/50", cfg.Herbivore.F, cfg.Carnivore.F)
	}
	if cfg.Carnivore.DeltaPhiMax != 10 {
		t.Errorf("DeltaPhiMax = %g, want 10", cfg.Carnivore.DeltaPhiMax)
	}
	if got := cfg.FodderCapacity(components.Lowland); got != 800 {
		t.Errorf("lowland capacity = %g, want 800", got)
	}
	if got := cfg.FodderCapacity(components.Highland); got != 300 {
		t.Errorf("highland capacity = %g, want 300", got)
	}
	if got := cfg.FodderCapacity(components.Desert); got != 0 {
		t.Errorf("desert capacity = %g, want 0", got)
	}
	want := 3.5 * (8 + 1.5)
	if got := cfg.Derived.BirthThreshold[components.Herbivore]; math.Abs(got-want) > 1e-12 {
		t.Errorf("herbivore birth threshold = %g, want %g", got, want)
	}
	if !strings.HasPrefix(cfg.Simulation.Geography, "WWWWW") {
		t.Errorf("default geography = %q", cfg.Simulation.Geography)
	}
}

func TestLoad_OverlaysUserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := `
simulation:
  seed: 42
carnivore:
  F: 70
population:
  - loc: [2, 3]
    pop:
      - species: herbivore
        age: 5
        weight: 20
      - species: Carnivore
        age: 1
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Simulation.Seed)
	}
	if cfg.Carnivore.F != 70 {
		t.Errorf("carnivore F = %g, want 70", cfg.Carnivore.F)
	}
	// Keys absent from the user file keep their defaults.
	if cfg.Carnivore.Beta != 0.75 {
		t.Errorf("carnivore beta = %g, want default 0.75", cfg.Carnivore.Beta)
	}
	if len(cfg.Population) != 1 || len(cfg.Population[0].Pop) != 2 {
		t.Fatalf("population = %+v", cfg.Population)
	}
	rec := cfg.Population[0]
	if rec.Loc != components.Loc(2, 3) {
		t.Errorf("loc = %v, want (2, 3)", rec.Loc)
	}
	if rec.Pop[0].Species != components.Herbivore || rec.Pop[0].Weight == nil || *rec.Pop[0].Weight != 20 {
		t.Errorf("first animal = %+v", rec.Pop[0])
	}
	if rec.Pop[1].Species != components.Carnivore || rec.Pop[1].Weight != nil {
		t.Errorf("second animal = %+v", rec.Pop[1])
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("herbivore:\n  eta: 1.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Load error = %v, want ErrConfiguration", err)
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Herbivore.Mu = 0.3
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Herbivore != cfg.Herbivore || back.Carnivore != cfg.Carnivore {
		t.Error("species parameters changed across write/load")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	cfg := Default()
	cfg.Population = []components.PopulationRecord{{
		Loc: components.Loc(2, 2),
		Pop: []components.AnimalSpec{{Species: components.Herbivore, Age: 1, Weight: components.Weight(10)}},
	}}
	cp := cfg.Clone()
	cp.Herbivore.F = 99
	*cp.Population[0].Pop[0].Weight = 1

	if cfg.Herbivore.F == 99 {
		t.Error("clone shares species parameters")
	}
	if *cfg.Population[0].Pop[0].Weight != 10 {
		t.Error("clone shares population weights")
	}
}

// ---------- parameter updates ----------

func TestUpdateSpecies(t *testing.T) {
	tests := []struct {
		name      string
		species   components.Species
		overrides map[string]float64
		wantErr   string
	}{
		{"valid", components.Herbivore, map[string]float64{"F": 20, "zeta": 2}, ""},
		{"eta at bound", components.Herbivore, map[string]float64{"eta": 1}, ""},
		{"zero allowed", components.Carnivore, map[string]float64{"xi": 0, "DeltaPhiMax": 0}, ""},
		{"negative", components.Herbivore, map[string]float64{"F": -1}, ">= 0"},
		{"eta above one", components.Carnivore, map[string]float64{"eta": 1.01}, "<= 1"},
		{"nan", components.Herbivore, map[string]float64{"beta": math.NaN()}, "finite"},
		{"inf", components.Herbivore, map[string]float64{"beta": math.Inf(1)}, "finite"},
		{"unknown with suggestion", components.Herbivore, map[string]float64{"w_brith": 1}, `did you mean "w_birth"`},
		{"unknown without suggestion", components.Herbivore, map[string]float64{"nonsense": 1}, "unknown"},
		{"herbivore has no DeltaPhiMax", components.Herbivore, map[string]float64{"DeltaPhiMax": 1}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.UpdateSpecies(tt.species, tt.overrides)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				p := cfg.Species(tt.species)
				for _, f := range fieldsFor(tt.species) {
					if v, ok := tt.overrides[f.key]; ok && *f.ptr(p) != v {
						t.Errorf("%s = %g, want %g", f.key, *f.ptr(p), v)
					}
				}
				return
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateSpecies_AllOrNothing(t *testing.T) {
	cfg := Default()
	before := cfg.Herbivore

	err := cfg.UpdateSpecies(components.Herbivore, map[string]float64{"F": 99, "mu": -1})
	if err == nil {
		t.Fatal("expected error")
	}
	if cfg.Herbivore != before {
		t.Error("partial update applied")
	}
}

func TestUpdateSpecies_RefreshesDerived(t *testing.T) {
	cfg := Default()
	if err := cfg.UpdateSpecies(components.Carnivore, map[string]float64{"zeta": 1, "w_birth": 5, "sigma_birth": 0}); err != nil {
		t.Fatal(err)
	}
	if got := cfg.Derived.BirthThreshold[components.Carnivore]; got != 5 {
		t.Errorf("birth threshold = %g, want 5", got)
	}
}

func TestUpdateLandscape(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		overrides map[string]float64
		wantErr   bool
	}{
		{"lowland", "L", map[string]float64{"f_max": 500}, false},
		{"highland", "H", map[string]float64{"f_max": 0}, false},
		{"desert has no params", "D", map[string]float64{"f_max": 10}, true},
		{"water has no params", "W", map[string]float64{"f_max": 10}, true},
		{"unknown code", "X", map[string]float64{"f_max": 10}, true},
		{"unknown key", "L", map[string]float64{"fmax": 10}, true},
		{"negative", "L", map[string]float64{"f_max": -10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.UpdateLandscape(tt.code, tt.overrides)
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			l, _ := components.ParseLandscape(tt.code[0])
			if got := cfg.FodderCapacity(l); got != tt.overrides["f_max"] {
				t.Errorf("capacity = %g, want %g", got, tt.overrides["f_max"])
			}
		})
	}
}

func TestSuggestKey(t *testing.T) {
	valid := SpeciesKeys(components.Carnivore)
	tests := []struct {
		in, want string
	}{
		{"f", "F"},
		{"gama", "gamma"},
		{"DeltaPhiMx", "DeltaPhiMax"},
		{"lambda", "lambda"},
		{"completely_wrong", ""},
	}
	for _, tt := range tests {
		if got := suggestKey(tt.in, valid); got != tt.want {
			t.Errorf("suggestKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSpeciesValues(t *testing.T) {
	cfg := Default()
	herb := cfg.SpeciesValues(components.Herbivore)
	if len(herb) != len(SpeciesKeys(components.Herbivore)) {
		t.Errorf("herbivore has %d values, want %d", len(herb), len(SpeciesKeys(components.Herbivore)))
	}
	if herb["gamma"] != cfg.Herbivore.Gamma || herb["F"] != cfg.Herbivore.F {
		t.Errorf("values do not match params: %v", herb)
	}
	if _, ok := herb["DeltaPhiMax"]; ok {
		t.Error("herbivore values include DeltaPhiMax")
	}

	carn := cfg.SpeciesValues(components.Carnivore)
	if carn["DeltaPhiMax"] != cfg.Carnivore.DeltaPhiMax {
		t.Errorf("DeltaPhiMax = %v", carn["DeltaPhiMax"])
	}

	// Feeding the values back is a no-op
	before := cfg.Carnivore
	if err := cfg.UpdateSpecies(components.Carnivore, carn); err != nil {
		t.Fatal(err)
	}
	if cfg.Carnivore != before {
		t.Error("round trip through UpdateSpecies changed parameters")
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte("herbivore:\n  zeta: 2.0\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := 2.0 * (cfg.Herbivore.WBirth + cfg.Herbivore.SigmaBirth)
	if cfg.Derived.BirthThreshold[components.Herbivore] != want {
		t.Errorf("BirthThreshold = %v, want %v", cfg.Derived.BirthThreshold[components.Herbivore], want)
	}

	if _, err := Parse([]byte("herbivore: [")); !errors.Is(err, ErrConfiguration) {
		t.Errorf("malformed YAML: err = %v, want configuration error", err)
	}
	if _, err := Parse([]byte("carnivore:\n  eta: 2\n")); !errors.Is(err, ErrConfiguration) {
		t.Errorf("eta > 1: err = %v, want configuration error", err)
	}
}

func TestFinalize(t *testing.T) {
	cfg := Default()
	cfg.Carnivore.Zeta = 5
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	want := 5 * (cfg.Carnivore.WBirth + cfg.Carnivore.SigmaBirth)
	if cfg.Derived.BirthThreshold[components.Carnivore] != want {
		t.Errorf("BirthThreshold = %v, want %v", cfg.Derived.BirthThreshold[components.Carnivore], want)
	}

	cfg.Herbivore.Omega = math.Inf(1)
	if err := cfg.Finalize(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("infinite omega: err = %v", err)
	}
}
