package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/biosim/components"
)

// Herd stores every living animal as an entity in an ECS world.
//
// Pointers returned by Get are only valid until the next Spawn or Remove:
// structural changes may move component storage.
type Herd struct {
	world  *ecs.World
	fauna  *ecs.Map1[components.Fauna]
	filter *ecs.Filter1[components.Fauna]

	nextID uint32
	counts [components.NumSpecies]int
}

// NewHerd creates an empty herd.
func NewHerd() *Herd {
	world := ecs.NewWorld()
	return &Herd{
		world:  world,
		fauna:  ecs.NewMap1[components.Fauna](world),
		filter: ecs.NewFilter1[components.Fauna](world),
		nextID: 1,
	}
}

// Spawn adds an animal and returns its entity. The ID field of f is
// overwritten with a fresh identifier.
func (h *Herd) Spawn(f components.Fauna) ecs.Entity {
	f.ID = h.nextID
	h.nextID++
	h.counts[f.Species]++
	return h.fauna.NewEntity(&f)
}

// Get returns the animal component of e.
func (h *Herd) Get(e ecs.Entity) *components.Fauna {
	return h.fauna.Get(e)
}

// Alive reports whether e is a living animal.
func (h *Herd) Alive(e ecs.Entity) bool {
	return h.world.Alive(e)
}

// Remove deletes the animal e.
func (h *Herd) Remove(e ecs.Entity) {
	s := h.fauna.Get(e).Species
	h.counts[s]--
	h.world.RemoveEntity(e)
}

// Len returns the number of living animals.
func (h *Herd) Len() int {
	n := 0
	for _, c := range h.counts {
		n += c
	}
	return n
}

// Count returns the number of living animals of species s.
func (h *Herd) Count(s components.Species) int {
	return h.counts[s]
}

// Each calls fn for every living animal in storage order.
// fn must not spawn or remove animals.
func (h *Herd) Each(fn func(f *components.Fauna)) {
	query := h.filter.Query()
	for query.Next() {
		fn(query.Get())
	}
}

// ClearMigrated resets the migrated flag of every animal.
func (h *Herd) ClearMigrated() {
	h.Each(func(f *components.Fauna) { f.Migrated = false })
}
