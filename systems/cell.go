package systems

import (
	"slices"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/biosim/components"
)

// Cell is one square of the island.
type Cell struct {
	Loc       components.Location
	Landscape components.Landscape
	Fodder    float64

	residents [components.NumSpecies][]ecs.Entity
}

// Residents returns the animals of species s in resident order.
// The slice is owned by the cell.
func (c *Cell) Residents(s components.Species) []ecs.Entity {
	return c.residents[s]
}

// Count returns the number of animals of species s in the cell.
func (c *Cell) Count(s components.Species) int {
	return len(c.residents[s])
}

func (c *Cell) add(s components.Species, e ecs.Entity) {
	c.residents[s] = append(c.residents[s], e)
}

func (c *Cell) remove(s components.Species, e ecs.Entity) {
	if i := slices.Index(c.residents[s], e); i >= 0 {
		c.residents[s] = slices.Delete(c.residents[s], i, i+1)
	}
}

// regrow resets fodder to the landscape capacity.
func (c *Cell) regrow(env *Env) {
	c.Fodder = env.Cfg.FodderCapacity(c.Landscape)
}

// feedHerbivores lets herbivores eat in random order until fodder runs out.
func (c *Cell) feedHerbivores(env *Env, herd *Herd) {
	herbs := c.residents[components.Herbivore]
	env.Rng.Shuffle(len(herbs), func(i, j int) { herbs[i], herbs[j] = herbs[j], herbs[i] })

	p := env.Cfg.Species(components.Herbivore)
	for _, e := range herbs {
		if c.Fodder <= 0 {
			break
		}
		eaten := min(p.F, c.Fodder)
		c.Fodder -= eaten
		eat(herd.Get(e), p, eaten)
	}
	if c.Fodder < 0 {
		c.Fodder = 0
	}
}

// feedCarnivores lets carnivores hunt, fittest first, trying the weakest prey
// first. Killed prey leave the cell immediately.
func (c *Cell) feedCarnivores(env *Env, herd *Herd) {
	if len(c.residents[components.Carnivore]) == 0 || len(c.residents[components.Herbivore]) == 0 {
		return
	}
	p := env.Cfg.Species(components.Carnivore)

	hunters := slices.Clone(c.residents[components.Carnivore])
	sort.SliceStable(hunters, func(i, j int) bool {
		return herd.Get(hunters[i]).Fitness > herd.Get(hunters[j]).Fitness
	})
	prey := slices.Clone(c.residents[components.Herbivore])
	sort.SliceStable(prey, func(i, j int) bool {
		return herd.Get(prey[i]).Fitness < herd.Get(prey[j]).Fitness
	})

	var killed []ecs.Entity
	for _, ce := range hunters {
		if len(prey) == 0 {
			break
		}
		eaten := 0.0
		for i := 0; i < len(prey) && eaten < p.F; {
			hunter := herd.Get(ce)
			victim := herd.Get(prey[i])
			if !chance(env.Rng, killProbability(hunter.Fitness, victim.Fitness, p.DeltaPhiMax)) {
				i++
				continue
			}
			meal := min(p.F-eaten, victim.Weight)
			eaten += meal
			eat(hunter, p, meal)
			env.Events.RecordKill(meal)

			killed = append(killed, prey[i])
			c.remove(components.Herbivore, prey[i])
			prey = slices.Delete(prey, i, i+1)
		}
	}

	for _, e := range killed {
		herd.Remove(e)
	}
}

// procreate gives every animal present at the start of the phase one chance
// to give birth. Newborns join the end of the resident list.
func (c *Cell) procreate(env *Env, herd *Herd, s components.Species) {
	parents := slices.Clone(c.residents[s])
	n := len(parents)
	if n < 2 {
		return
	}
	p := env.Cfg.Species(s)
	threshold := env.Cfg.Derived.BirthThreshold[s]

	for _, e := range parents {
		w, ok := mayProcreate(env, herd.Get(e), p, threshold, n)
		if !ok {
			continue
		}
		c.add(s, herd.Spawn(newFauna(s, 0, w, p)))
		env.Events.RecordBirth(s)
	}
}

// loseWeightAndDie applies yearly weight loss and then the death draw to each
// animal in resident order.
func (c *Cell) loseWeightAndDie(env *Env, herd *Herd, s components.Species) {
	p := env.Cfg.Species(s)
	var dead []ecs.Entity
	for _, e := range c.residents[s] {
		f := herd.Get(e)
		loseWeight(f, p)
		if chance(env.Rng, deathProbability(f, p)) {
			dead = append(dead, e)
		}
	}
	for _, e := range dead {
		c.remove(s, e)
		herd.Remove(e)
		env.Events.RecordDeath(s)
	}
}
