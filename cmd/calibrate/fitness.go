package main

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/game"
	"github.com/pthm-cable/biosim/systems"
	"github.com/pthm-cable/biosim/telemetry"
)

// Minimum viable population: if either species stays below this for
// extinctionGraceYears consecutive years, it counts as functionally extinct.
const (
	minViablePop         = 3
	extinctionGraceYears = 5
	warmupYears          = 5
)

// FitnessEvaluator runs simulations and scores parameter vectors.
type FitnessEvaluator struct {
	params     *ParamVector
	maxYears   int
	seeds      []uint64
	baseConfig *config.Config

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. baseCfg is never modified.
func NewFitnessEvaluator(params *ParamVector, maxYears int, seeds []uint64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		maxYears:   maxYears,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalYears int // years before functional extinction (or maxYears if survived)
	history       []telemetry.YearStats
}

type seedResult struct {
	fitness float64
	quality float64
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Seeds run in parallel, each on its own copy of the configuration.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s uint64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			results[idx] = seedResult{
				fitness: computeFitness(result),
				quality: computeQuality(result.history),
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
	}
	n := float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation runs one seed until functional extinction or maxYears.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed uint64) *runResult {
	cfg := fe.baseConfig.Clone()
	cfg.Simulation.Seed = seed
	cfg.Telemetry.LogEvery = 0
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return &runResult{}
	}
	if len(cfg.Population) == 0 {
		cfg.Population = defaultPopulation(cfg.Simulation.Geography)
	}

	sim, err := game.New(game.Options{Config: cfg})
	if err != nil {
		return &runResult{}
	}
	defer sim.Close()

	result := &runResult{survivalYears: fe.maxYears}
	var below [components.NumSpecies]int
	ctx := context.Background()

	for year := 1; year <= fe.maxYears; year++ {
		if err := sim.Simulate(ctx, 1); err != nil {
			result.survivalYears = year - 1
			break
		}
		if year <= warmupYears {
			continue
		}

		n := sim.NumAnimalsPerSpecies()
		extinct := false
		for _, s := range components.AllSpecies {
			if n[s] == 0 {
				extinct = true
			}
			// Functional extinction: species below minimum viable population too long
			if n[s] < minViablePop {
				below[s]++
			} else {
				below[s] = 0
			}
			if below[s] >= extinctionGraceYears {
				extinct = true
			}
		}
		if extinct {
			result.survivalYears = year
			break
		}
	}

	result.history = sim.History()
	return result
}

// defaultPopulation places a starting herd and pack on the first habitable
// cell of the map.
func defaultPopulation(geography string) []components.PopulationRecord {
	grid, err := systems.ParseGeography(geography)
	if err != nil {
		return nil
	}
	for r, row := range grid {
		for c, l := range row {
			if !l.Habitable() {
				continue
			}
			var pop []components.AnimalSpec
			for i := 0; i < 50; i++ {
				pop = append(pop, components.AnimalSpec{Species: components.Herbivore, Age: 5, Weight: components.Weight(20)})
			}
			for i := 0; i < 20; i++ {
				pop = append(pop, components.AnimalSpec{Species: components.Carnivore, Age: 5, Weight: components.Weight(20)})
			}
			return []components.PopulationRecord{{Loc: components.Loc(r+1, c+1), Pop: pop}}
		}
	}
	return nil
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalYears × (1.0 + 0.2 × quality))
func computeFitness(r *runResult) float64 {
	survival := float64(r.survivalYears)
	quality := computeQuality(r.history)
	return -(survival * (1.0 + 0.2*quality))
}

// Quality component weights.
const (
	qualityWeightRatio     = 0.4
	qualityWeightStability = 0.4
	qualityWeightHunting   = 0.2

	qualityMinPop = 3 // exclude years where either species < this
)

// computeQuality computes ecosystem quality in [0, 1] from yearly stats.
func computeQuality(years []telemetry.YearStats) float64 {
	if len(years) <= warmupYears {
		return 0
	}

	var ratioSum, huntSum float64
	var ratioCount, huntCount int
	herbCounts := make([]float64, 0, len(years))
	carnCounts := make([]float64, 0, len(years))

	for _, y := range years[warmupYears:] {
		if y.Herbivores < qualityMinPop || y.Carnivores < qualityMinPop {
			continue
		}
		herbCounts = append(herbCounts, float64(y.Herbivores))
		carnCounts = append(carnCounts, float64(y.Carnivores))

		// Population ratio score, best around 5 herbivores per carnivore
		ratio := float64(y.Herbivores) / float64(y.Carnivores)
		logErr := math.Log(ratio / 5.0)
		ratioSum += math.Exp(-logErr * logErr)
		ratioCount++

		// Hunting score: kills per carnivore, best around 1 per year
		perCarn := float64(y.Kills) / float64(y.Carnivores)
		huntSum += math.Exp(-math.Pow(perCarn-1, 2))
		huntCount++
	}

	if ratioCount == 0 {
		return 0
	}

	stabilityScore := 0.0
	if len(herbCounts) >= 2 {
		cvHerb := cv(herbCounts)
		cvCarn := cv(carnCounts)
		stabilityScore = math.Exp(-(cvHerb*cvHerb + cvCarn*cvCarn))
	}

	quality := qualityWeightRatio*ratioSum/float64(ratioCount) +
		qualityWeightStability*stabilityScore +
		qualityWeightHunting*huntSum/float64(huntCount)

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
