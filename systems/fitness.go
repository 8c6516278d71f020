package systems

import (
	"math"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
)

// Fitness returns the fitness of an animal of the given age and weight:
//
//	Φ = q(+φ_age, a, a_½) · q(−φ_weight, w, w_½),  q(±φ, x, x_½) = 1 / (1 + e^{±φ(x − x_½)})
//
// An animal without weight has fitness exactly 0.
func Fitness(age int, weight float64, p *config.SpeciesParams) float64 {
	if weight <= 0 {
		return 0
	}
	qAge := 1 / (1 + math.Exp(p.PhiAge*(float64(age)-p.AHalf)))
	qWeight := 1 / (1 + math.Exp(-p.PhiWeight*(weight-p.WHalf)))
	return clamp01(qAge * qWeight)
}

// Refit recomputes f.Fitness. Call after every change to age or weight.
func Refit(f *components.Fauna, p *config.SpeciesParams) {
	f.Fitness = Fitness(f.Age, f.Weight, p)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0 || math.IsNaN(x):
		return 0
	case x > 1:
		return 1
	}
	return x
}
