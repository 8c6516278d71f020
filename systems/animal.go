package systems

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
)

// chance returns true with probability p. Probabilities at or outside the
// bounds are decided without consuming randomness.
func chance(src rand.Source, p float64) bool {
	if p <= 0 || math.IsNaN(p) {
		return false
	}
	if p >= 1 {
		return true
	}
	return distuv.Bernoulli{P: p, Src: src}.Rand() == 1
}

// birthWeight draws a newborn weight from Normal(w_birth, σ_birth), clipped at 0.
func birthWeight(src rand.Source, p *config.SpeciesParams) float64 {
	if p.SigmaBirth <= 0 {
		return math.Max(0, p.WBirth)
	}
	w := distuv.Normal{Mu: p.WBirth, Sigma: p.SigmaBirth, Src: src}.Rand()
	return math.Max(0, w)
}

// eat adds β·amount to the animal's weight.
func eat(f *components.Fauna, p *config.SpeciesParams, amount float64) {
	f.Weight += p.Beta * amount
	Refit(f, p)
}

func growOlder(f *components.Fauna, p *config.SpeciesParams) {
	f.Age++
	Refit(f, p)
}

func loseWeight(f *components.Fauna, p *config.SpeciesParams) {
	f.Weight -= p.Eta * f.Weight
	Refit(f, p)
}

// procreationProbability is min(1, γ·Φ·(n−1)) for an animal heavy enough to
// give birth, 0 otherwise. n is the number of same-species animals in the cell.
func procreationProbability(f *components.Fauna, p *config.SpeciesParams, threshold float64, n int) float64 {
	if f.Weight < threshold || n < 2 {
		return 0
	}
	return math.Min(1, p.Gamma*f.Fitness*float64(n-1))
}

// mayProcreate decides whether f gives birth this year and returns the
// newborn's weight. On success the parent has already lost ξ·w_newborn.
func mayProcreate(env *Env, f *components.Fauna, p *config.SpeciesParams, threshold float64, n int) (float64, bool) {
	if !chance(env.Rng, procreationProbability(f, p, threshold, n)) {
		return 0, false
	}
	w := birthWeight(env.Rng, p)
	loss := p.Xi * w
	if loss >= f.Weight {
		return 0, false
	}
	f.Weight -= loss
	Refit(f, p)
	return w, true
}

func migrationProbability(f *components.Fauna, p *config.SpeciesParams) float64 {
	return clamp01(p.Mu * f.Fitness)
}

func deathProbability(f *components.Fauna, p *config.SpeciesParams) float64 {
	if f.Weight <= 0 {
		return 1
	}
	return clamp01(p.Omega * (1 - f.Fitness))
}

// killProbability is the chance that a carnivore of fitness phiC kills a
// herbivore of fitness phiH.
func killProbability(phiC, phiH, deltaPhiMax float64) float64 {
	if phiC <= phiH {
		return 0
	}
	if deltaPhiMax <= 0 {
		return 1
	}
	return math.Min(1, (phiC-phiH)/deltaPhiMax)
}

// newFauna builds a fitted animal component.
func newFauna(s components.Species, age int, weight float64, p *config.SpeciesParams) components.Fauna {
	f := components.Fauna{Species: s, Age: age, Weight: weight}
	Refit(&f, p)
	return f
}
