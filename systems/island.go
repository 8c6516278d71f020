package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
)

// Island is the grid of cells and the animals living on it. It runs the
// annual cycle one phase at a time.
type Island struct {
	env   *Env
	herd  *Herd
	rows  int
	cols  int
	cells []Cell // row-major
}

// NewIsland builds an island from a map string. Fodder starts at capacity.
func NewIsland(geography string, env *Env) (*Island, error) {
	grid, err := ParseGeography(geography)
	if err != nil {
		return nil, err
	}
	is := &Island{
		env:   env,
		herd:  NewHerd(),
		rows:  len(grid),
		cols:  len(grid[0]),
		cells: make([]Cell, 0, len(grid)*len(grid[0])),
	}
	for r, row := range grid {
		for c, l := range row {
			is.cells = append(is.cells, Cell{Loc: components.Loc(r+1, c+1), Landscape: l})
		}
	}
	is.RegrowFodder()
	return is, nil
}

// Rows returns the number of map rows.
func (is *Island) Rows() int { return is.rows }

// Cols returns the number of map columns.
func (is *Island) Cols() int { return is.cols }

// Env returns the island's environment.
func (is *Island) Env() *Env { return is.env }

// Herd returns the animal store.
func (is *Island) Herd() *Herd { return is.herd }

// Cell returns the cell at loc, or nil if loc is off the map.
func (is *Island) Cell(loc components.Location) *Cell {
	if loc.Row < 1 || loc.Row > is.rows || loc.Col < 1 || loc.Col > is.cols {
		return nil
	}
	return &is.cells[(loc.Row-1)*is.cols+loc.Col-1]
}

// Cells returns every cell in row-major order.
func (is *Island) Cells() []Cell { return is.cells }

// Geography returns the island's map string.
func (is *Island) Geography() string {
	grid := make([][]components.Landscape, is.rows)
	for r := range grid {
		grid[r] = make([]components.Landscape, is.cols)
		for c := range grid[r] {
			grid[r][c] = is.cells[r*is.cols+c].Landscape
		}
	}
	return FormatGeography(grid)
}

// PlaceAnimals adds animals to the island. Every record is validated before
// any animal is placed, so a failing call leaves the island unchanged.
// Records without a weight get one drawn from the species birth distribution.
func (is *Island) PlaceAnimals(records []components.PopulationRecord) error {
	for _, rec := range records {
		cell := is.Cell(rec.Loc)
		if cell == nil {
			return config.Errorf("location %v is outside the island", rec.Loc)
		}
		if !cell.Landscape.Habitable() {
			return config.Errorf("cannot place animals on %s at %v", cell.Landscape, rec.Loc)
		}
		for _, a := range rec.Pop {
			if int(a.Species) >= components.NumSpecies {
				return config.Errorf("unknown species %v at %v", a.Species, rec.Loc)
			}
			if a.Age < 0 {
				return config.Errorf("negative age %d at %v", a.Age, rec.Loc)
			}
			if a.Weight != nil && !(*a.Weight >= 0) {
				return config.Errorf("invalid weight %g at %v", *a.Weight, rec.Loc)
			}
		}
	}

	for _, rec := range records {
		cell := is.Cell(rec.Loc)
		for _, a := range rec.Pop {
			p := is.env.Cfg.Species(a.Species)
			var w float64
			if a.Weight != nil {
				w = *a.Weight
			} else {
				w = birthWeight(is.env.Rng, p)
			}
			cell.add(a.Species, is.herd.Spawn(newFauna(a.Species, a.Age, w, p)))
		}
	}
	return nil
}

// Phase is one step of the annual cycle.
type Phase struct {
	Name string
	Run  func()
}

// Phases returns the annual cycle in execution order. Names match the
// telemetry phase names.
func (is *Island) Phases() []Phase {
	return []Phase{
		{Name: "regrowth", Run: is.RegrowFodder},
		{Name: "feeding", Run: is.Feed},
		{Name: "procreation", Run: is.Procreate},
		{Name: "migration", Run: is.Migrate},
		{Name: "aging", Run: is.Age},
		{Name: "death", Run: is.LoseWeightAndDie},
	}
}

// Step runs one full year without timing.
func (is *Island) Step() {
	for _, ph := range is.Phases() {
		ph.Run()
	}
}

// Refit recomputes the fitness of every living animal of species s from the
// current parameters.
func (is *Island) Refit(s components.Species) {
	p := is.env.Cfg.Species(s)
	is.herd.Each(func(f *components.Fauna) {
		if f.Species == s {
			Refit(f, p)
		}
	})
}

// RegrowFodder resets every cell's fodder to its capacity.
func (is *Island) RegrowFodder() {
	for i := range is.cells {
		is.cells[i].regrow(is.env)
	}
}

// Feed runs herbivore then carnivore feeding in every cell.
func (is *Island) Feed() {
	for i := range is.cells {
		c := &is.cells[i]
		c.feedHerbivores(is.env, is.herd)
		c.feedCarnivores(is.env, is.herd)
	}
}

// Procreate gives every animal alive at the start of the phase a chance to
// give birth.
func (is *Island) Procreate() {
	for i := range is.cells {
		for _, s := range components.AllSpecies {
			is.cells[i].procreate(is.env, is.herd, s)
		}
	}
}

// Age makes every animal one year older.
func (is *Island) Age() {
	cfg := is.env.Cfg
	is.herd.Each(func(f *components.Fauna) {
		growOlder(f, cfg.Species(f.Species))
	})
}

// LoseWeightAndDie applies yearly weight loss and removes animals that die.
func (is *Island) LoseWeightAndDie() {
	for i := range is.cells {
		for _, s := range components.AllSpecies {
			is.cells[i].loseWeightAndDie(is.env, is.herd, s)
		}
	}
}

// NumAnimals returns the number of living animals.
func (is *Island) NumAnimals() int { return is.herd.Len() }

// NumAnimalsPerSpecies returns the number of living animals per species.
func (is *Island) NumAnimalsPerSpecies() [components.NumSpecies]int {
	var n [components.NumSpecies]int
	for _, s := range components.AllSpecies {
		n[s] = is.herd.Count(s)
	}
	return n
}

// CountGrid returns the number of animals of species s per cell, indexed
// [row-1][col-1].
func (is *Island) CountGrid(s components.Species) [][]int {
	grid := make([][]int, is.rows)
	for r := range grid {
		grid[r] = make([]int, is.cols)
		for c := range grid[r] {
			grid[r][c] = is.cells[r*is.cols+c].Count(s)
		}
	}
	return grid
}

// Animals returns every living animal in row-major cell order, herbivores
// before carnivores inside a cell, each in resident order.
func (is *Island) Animals() []components.AnimalState {
	out := make([]components.AnimalState, 0, is.herd.Len())
	is.EachAnimal(func(loc components.Location, _ ecs.Entity, f *components.Fauna) {
		out = append(out, components.AnimalState{
			Loc:     loc,
			Species: f.Species,
			Age:     f.Age,
			Weight:  f.Weight,
			Fitness: f.Fitness,
		})
	})
	return out
}

// EachAnimal calls fn for every living animal in the order used by Animals.
// fn must not spawn or remove animals.
func (is *Island) EachAnimal(fn func(loc components.Location, e ecs.Entity, f *components.Fauna)) {
	for i := range is.cells {
		c := &is.cells[i]
		for _, s := range components.AllSpecies {
			for _, e := range c.residents[s] {
				fn(c.Loc, e, is.herd.Get(e))
			}
		}
	}
}

// SetFodder overrides the fodder of the cell at loc, clamped to its capacity.
func (is *Island) SetFodder(loc components.Location, amount float64) error {
	c := is.Cell(loc)
	if c == nil {
		return config.Errorf("location %v is outside the island", loc)
	}
	c.Fodder = max(0, min(amount, is.env.Cfg.FodderCapacity(c.Landscape)))
	return nil
}
