package game

import (
	"fmt"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/telemetry"
)

// AddPopulation places more animals on the island between runs. Either all
// records are placed or none is.
func (s *Simulation) AddPopulation(records []components.PopulationRecord) error {
	return s.island.PlaceAnimals(records)
}

// SetAnimalParameters updates the parameters of the named species and
// refreshes the fitness of its living animals. Unknown species or keys and
// invalid values leave every parameter unchanged.
func (s *Simulation) SetAnimalParameters(species string, params map[string]float64) error {
	sp, err := components.ParseSpecies(species)
	if err != nil {
		return config.Errorf("%v", err)
	}
	if err := s.cfg.UpdateSpecies(sp, params); err != nil {
		return err
	}
	s.island.Refit(sp)
	return nil
}

// SetLandscapeParameters updates the parameters of the landscape with the
// given map code. New capacities take effect at the next regrowth.
func (s *Simulation) SetLandscapeParameters(code string, params map[string]float64) error {
	return s.cfg.UpdateLandscape(code, params)
}

// Save writes the current state to dir as a snapshot file and returns its path.
func (s *Simulation) Save(dir string) (string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	return telemetry.SaveSnapshot(snap, dir)
}

// Load restores a simulation from a snapshot file written by Save.
func Load(path string, opts Options) (*Simulation, error) {
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return Restore(snap, opts)
}

// Restore rebuilds a simulation from snap. Telemetry settings come from
// opts.Config; map, seed, parameters, animals, fodder and random state come
// from the snapshot, so the restored run continues exactly where snap was
// taken.
func Restore(snap *telemetry.Snapshot, opts Options) (*Simulation, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	cfg = cfg.Clone()
	cfg.Simulation.Seed = snap.Seed
	cfg.Simulation.Geography = snap.Geography
	cfg.Herbivore = snap.HerbivoreParams
	cfg.Carnivore = snap.CarnivoreParams
	cfg.Landscape = snap.LandscapeParams
	cfg.Population = snap.Population()
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("snapshot parameters: %w", err)
	}

	opts.Config = cfg
	s, err := New(opts)
	if err != nil {
		return nil, err
	}

	for r, row := range snap.Fodder {
		for c, f := range row {
			if err := s.island.SetFodder(components.Loc(r+1, c+1), f); err != nil {
				s.Close()
				return nil, err
			}
		}
	}
	if len(snap.RandState) > 0 {
		if err := s.island.Env().SetRandState(snap.RandState); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.year = snap.Year
	return s, nil
}
