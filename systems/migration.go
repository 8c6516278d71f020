package systems

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/pthm-cable/biosim/components"
)

// abundance is the per-cell food supply and head count seen by migrants,
// fixed at the start of the migration phase.
type abundance struct {
	food   [components.NumSpecies]float64
	counts [components.NumSpecies]int
}

// Migrate lets each animal move at most once to a neighbouring cell.
func (is *Island) Migrate() {
	is.herd.ClearMigrated()

	snap := make([]abundance, len(is.cells))
	for i := range is.cells {
		c := &is.cells[i]
		snap[i].food[components.Herbivore] = c.Fodder
		for _, e := range c.residents[components.Herbivore] {
			snap[i].food[components.Carnivore] += is.herd.Get(e).Weight
		}
		for _, s := range components.AllSpecies {
			snap[i].counts[s] = c.Count(s)
		}
	}

	for i := range is.cells {
		c := &is.cells[i]
		if !c.Landscape.Habitable() {
			continue
		}
		for _, s := range components.AllSpecies {
			is.migrateFrom(c, s, snap)
		}
	}
}

func (is *Island) migrateFrom(c *Cell, s components.Species, snap []abundance) {
	p := is.env.Cfg.Species(s)
	movers := slices.Clone(c.residents[s])
	for _, e := range movers {
		f := is.herd.Get(e)
		if f.Migrated {
			continue
		}
		if !chance(is.env.Rng, migrationProbability(f, p)) {
			continue
		}
		dest := is.chooseDestination(c.Loc, s, snap)
		if dest == nil {
			continue
		}
		f.Migrated = true
		c.remove(s, e)
		dest.add(s, e)
		is.env.Events.RecordMigration(s)
	}
}

// chooseDestination draws a neighbour of loc with probability proportional
// to exp(λ·ε), ε = food / ((n+1)·F). Water has propensity 0. It returns nil
// when no neighbour is habitable.
func (is *Island) chooseDestination(loc components.Location, s components.Species, snap []abundance) *Cell {
	p := is.env.Cfg.Species(s)

	var (
		cells [4]*Cell
		eps   [4]float64
		found bool
		best  = math.Inf(-1)
	)
	for k, n := range loc.Neighbours() {
		c := is.Cell(n)
		if c == nil || !c.Landscape.Habitable() {
			continue
		}
		cells[k] = c
		i := (n.Row-1)*is.cols + n.Col - 1
		if p.F > 0 {
			eps[k] = snap[i].food[s] / (float64(snap[i].counts[s]+1) * p.F)
		}
		best = math.Max(best, p.Lambda*eps[k])
		found = true
	}
	if !found {
		return nil
	}

	// Shifting by the largest exponent keeps exp finite; it cancels in the
	// normalisation.
	weights := make([]float64, 4)
	for k, c := range cells {
		if c != nil {
			weights[k] = math.Exp(p.Lambda*eps[k] - best)
		}
	}
	idx, ok := sampleuv.NewWeighted(weights, is.env.Rng).Take()
	if !ok {
		return nil
	}
	return cells[idx]
}
