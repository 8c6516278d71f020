// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pthm-cable/biosim/components"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
	Herbivore  SpeciesParams    `yaml:"herbivore" json:"herbivore"`
	Carnivore  SpeciesParams    `yaml:"carnivore" json:"carnivore"`
	Landscape  LandscapeConfig  `yaml:"landscape" json:"landscape"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
	Bookmarks  BookmarksConfig  `yaml:"bookmarks" json:"bookmarks"`

	// Initial population placed before the first year.
	Population []components.PopulationRecord `yaml:"population" json:"population"`

	// Derived values computed after loading and after every parameter update
	Derived DerivedConfig `yaml:"-" json:"-"`
}

// SimulationConfig holds run-level settings.
type SimulationConfig struct {
	Seed      uint64 `yaml:"seed" json:"seed"`
	Years     int    `yaml:"years" json:"years"`
	Geography string `yaml:"geography" json:"geography"` // multi-line map of W/L/H/D codes
}

// SpeciesParams holds the parameters of one species.
type SpeciesParams struct {
	WBirth     float64 `yaml:"w_birth" json:"w_birth"`         // mean birth weight
	SigmaBirth float64 `yaml:"sigma_birth" json:"sigma_birth"` // std dev of birth weight
	Beta       float64 `yaml:"beta" json:"beta"`               // weight gained per unit eaten
	Eta        float64 `yaml:"eta" json:"eta"`                 // yearly weight loss fraction
	AHalf      float64 `yaml:"a_half" json:"a_half"`
	PhiAge     float64 `yaml:"phi_age" json:"phi_age"`
	WHalf      float64 `yaml:"w_half" json:"w_half"`
	PhiWeight  float64 `yaml:"phi_weight" json:"phi_weight"`
	Mu         float64 `yaml:"mu" json:"mu"`         // migration probability per unit fitness
	Lambda     float64 `yaml:"lambda" json:"lambda"` // migration propensity sharpness
	Gamma      float64 `yaml:"gamma" json:"gamma"`
	Zeta       float64 `yaml:"zeta" json:"zeta"`
	Xi         float64 `yaml:"xi" json:"xi"`
	Omega      float64 `yaml:"omega" json:"omega"`
	F          float64 `yaml:"F" json:"F"` // appetite
	// Carnivores only. Fitness difference at which a kill becomes certain.
	DeltaPhiMax float64 `yaml:"DeltaPhiMax,omitempty" json:"DeltaPhiMax,omitempty"`
}

// LandscapeConfig holds per-landscape parameters, keyed by map code.
type LandscapeConfig struct {
	Water    LandscapeParams `yaml:"W" json:"W"`
	Lowland  LandscapeParams `yaml:"L" json:"L"`
	Highland LandscapeParams `yaml:"H" json:"H"`
	Desert   LandscapeParams `yaml:"D" json:"D"`
}

// LandscapeParams holds the parameters of one landscape type.
type LandscapeParams struct {
	FMax float64 `yaml:"f_max" json:"f_max"` // fodder capacity
}

// TelemetryConfig holds telemetry settings.
type TelemetryConfig struct {
	LogEvery            int `yaml:"log_every" json:"log_every"`           // years between stats log lines, 0 disables
	SnapshotEvery       int `yaml:"snapshot_every" json:"snapshot_every"` // years between snapshot files, 0 disables
	KeepSnapshots       int `yaml:"keep_snapshots" json:"keep_snapshots"` // snapshots retained in memory, 0 keeps all
	BookmarkHistorySize int `yaml:"bookmark_history_size" json:"bookmark_history_size"`
	PerfCollectorWindow int `yaml:"perf_collector_window" json:"perf_collector_window"`
}

// BookmarksConfig holds bookmark detection thresholds.
type BookmarksConfig struct {
	HerbivoreCrash    HerbivoreCrashConfig    `yaml:"herbivore_crash" json:"herbivore_crash"`
	CarnivoreRecovery CarnivoreRecoveryConfig `yaml:"carnivore_recovery" json:"carnivore_recovery"`
	StableCoexistence StableCoexistenceConfig `yaml:"stable_coexistence" json:"stable_coexistence"`
}

// HerbivoreCrashConfig holds herbivore crash detection parameters.
type HerbivoreCrashConfig struct {
	DropPercent float64 `yaml:"drop_percent" json:"drop_percent"`
	MinDrop     int     `yaml:"min_drop" json:"min_drop"`
}

// CarnivoreRecoveryConfig holds carnivore recovery detection parameters.
type CarnivoreRecoveryConfig struct {
	MinPopulation      int `yaml:"min_population" json:"min_population"`
	RecoveryMultiplier int `yaml:"recovery_multiplier" json:"recovery_multiplier"`
	MinFinal           int `yaml:"min_final" json:"min_final"`
}

// StableCoexistenceConfig holds stable coexistence detection parameters.
type StableCoexistenceConfig struct {
	MinHerbivores int     `yaml:"min_herbivores" json:"min_herbivores"`
	MinCarnivores int     `yaml:"min_carnivores" json:"min_carnivores"`
	CVThreshold   float64 `yaml:"cv_threshold" json:"cv_threshold"`
	StableYears   int     `yaml:"stable_years" json:"stable_years"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	// Minimum parent weight for procreation, zeta*(w_birth+sigma_birth), per species.
	BirthThreshold [components.NumSpecies]float64
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse merges YAML data over the embedded defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Unmarshal into same struct - only overwrites fields present in data
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, Errorf("parsing config: %v", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates c and recomputes its derived values. Call it after
// editing a Config field by field.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// LoadPopulation reads a YAML (or JSON) list of population records.
func LoadPopulation(path string) ([]components.PopulationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading population file: %w", err)
	}
	var pop []components.PopulationRecord
	if err := yaml.Unmarshal(data, &pop); err != nil {
		return nil, Errorf("parsing population file %s: %v", path, err)
	}
	return pop, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	for _, s := range components.AllSpecies {
		p := c.Species(s)
		c.Derived.BirthThreshold[s] = p.Zeta * (p.WBirth + p.SigmaBirth)
	}
}

// Species returns the parameters of species s.
func (c *Config) Species(s components.Species) *SpeciesParams {
	if s == components.Carnivore {
		return &c.Carnivore
	}
	return &c.Herbivore
}

// Landscapes returns the parameters of landscape l.
func (c *Config) Landscapes(l components.Landscape) *LandscapeParams {
	switch l {
	case components.Lowland:
		return &c.Landscape.Lowland
	case components.Highland:
		return &c.Landscape.Highland
	case components.Desert:
		return &c.Landscape.Desert
	default:
		return &c.Landscape.Water
	}
}

// FodderCapacity returns the fodder a cell of landscape l regrows to.
// Landscapes without regrowth always have capacity 0.
func (c *Config) FodderCapacity(l components.Landscape) float64 {
	if !l.Grows() {
		return 0
	}
	return c.Landscapes(l).FMax
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Population = make([]components.PopulationRecord, len(c.Population))
	for i, rec := range c.Population {
		pop := make([]components.AnimalSpec, len(rec.Pop))
		for j, a := range rec.Pop {
			pop[j] = a
			if a.Weight != nil {
				pop[j].Weight = components.Weight(*a.Weight)
			}
		}
		cp.Population[i] = components.PopulationRecord{Loc: rec.Loc, Pop: pop}
	}
	return &cp
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
