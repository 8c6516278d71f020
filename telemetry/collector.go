package telemetry

import "github.com/pthm-cable/biosim/components"

// Collector accumulates demographic events during a year and produces
// YearStats. It satisfies systems.Recorder.
type Collector struct {
	births     [components.NumSpecies]int
	deaths     [components.NumSpecies]int
	migrations [components.NumSpecies]int
	kills      int
	preyEaten  float64
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordBirth records a birth event.
func (c *Collector) RecordBirth(s components.Species) {
	c.births[s]++
}

// RecordDeath records a natural death (starvation, age or bad luck).
func (c *Collector) RecordDeath(s components.Species) {
	c.deaths[s]++
}

// RecordKill records a herbivore killed by a carnivore that ate eaten of it.
func (c *Collector) RecordKill(eaten float64) {
	c.kills++
	c.preyEaten += eaten
}

// RecordMigration records an animal moving to a neighbouring cell.
func (c *Collector) RecordMigration(s components.Species) {
	c.migrations[s]++
}

// Flush produces the YearStats for year from the year-end census and resets
// the counters. Herbivores killed by carnivores count as herbivore deaths.
func (c *Collector) Flush(year int, animals []components.AnimalState, fodder float64) YearStats {
	var weights, ages, fitness [components.NumSpecies][]float64
	for _, a := range animals {
		weights[a.Species] = append(weights[a.Species], a.Weight)
		ages[a.Species] = append(ages[a.Species], float64(a.Age))
		fitness[a.Species] = append(fitness[a.Species], a.Fitness)
	}
	herbW := Summarize(weights[components.Herbivore])
	carnW := Summarize(weights[components.Carnivore])

	h, cv := components.Herbivore, components.Carnivore
	stats := YearStats{
		Year:       year,
		Herbivores: len(weights[h]),
		Carnivores: len(weights[cv]),
		Total:      len(animals),

		HerbBirths:     c.births[h],
		CarnBirths:     c.births[cv],
		HerbDeaths:     c.deaths[h] + c.kills,
		CarnDeaths:     c.deaths[cv],
		Kills:          c.kills,
		PreyEaten:      c.preyEaten,
		HerbMigrations: c.migrations[h],
		CarnMigrations: c.migrations[cv],

		Fodder: fodder,

		HerbWeightMean:  herbW.Mean,
		HerbWeightP10:   herbW.P10,
		HerbWeightP50:   herbW.P50,
		HerbWeightP90:   herbW.P90,
		CarnWeightMean:  carnW.Mean,
		CarnWeightP10:   carnW.P10,
		CarnWeightP50:   carnW.P50,
		CarnWeightP90:   carnW.P90,
		HerbAgeMean:     mean(ages[h]),
		CarnAgeMean:     mean(ages[cv]),
		HerbFitnessMean: mean(fitness[h]),
		CarnFitnessMean: mean(fitness[cv]),
	}

	c.Reset()
	return stats
}

// Reset clears the event counters.
func (c *Collector) Reset() {
	*c = Collector{}
}
