// Package main provides CMA-ES calibration of species parameters.
package main

import (
	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
)

// ParamSpec defines a single calibrated parameter.
type ParamSpec struct {
	Name    string             // Human-readable name
	Species components.Species // Owning species
	Key     string             // Parameter key as accepted by config.UpdateSpecies
	Min     float64            // Lower bound
	Max     float64            // Upper bound
}

// ParamVector holds the set of all calibrated parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of calibrated parameters: the
// rates that decide whether predators and prey can coexist.
func NewParamVector() *ParamVector {
	h, c := components.Herbivore, components.Carnivore
	return &ParamVector{
		Specs: []ParamSpec{
			// Herbivore
			{Name: "herb_gamma", Species: h, Key: "gamma", Min: 0.05, Max: 0.5},
			{Name: "herb_omega", Species: h, Key: "omega", Min: 0.1, Max: 0.8},
			{Name: "herb_eta", Species: h, Key: "eta", Min: 0.01, Max: 0.2},
			{Name: "herb_mu", Species: h, Key: "mu", Min: 0.0, Max: 0.5},
			{Name: "herb_F", Species: h, Key: "F", Min: 2, Max: 20},
			// Carnivore
			{Name: "carn_gamma", Species: c, Key: "gamma", Min: 0.2, Max: 1.2},
			{Name: "carn_omega", Species: c, Key: "omega", Min: 0.1, Max: 0.8},
			{Name: "carn_eta", Species: c, Key: "eta", Min: 0.05, Max: 0.3},
			{Name: "carn_mu", Species: c, Key: "mu", Min: 0.0, Max: 0.7},
			{Name: "carn_F", Species: c, Key: "F", Min: 10, Max: 80},
			{Name: "carn_beta", Species: c, Key: "beta", Min: 0.3, Max: 1.0},
			{Name: "carn_dphi_max", Species: c, Key: "DeltaPhiMax", Min: 1, Max: 15},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	clamped := pv.Clamp(values)
	updates := make(map[components.Species]map[string]float64)
	for i, spec := range pv.Specs {
		if updates[spec.Species] == nil {
			updates[spec.Species] = make(map[string]float64)
		}
		updates[spec.Species][spec.Key] = clamped[i]
	}
	for _, s := range components.AllSpecies {
		if len(updates[s]) == 0 {
			continue
		}
		if err := cfg.UpdateSpecies(s, updates[s]); err != nil {
			return err
		}
	}
	return nil
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	values := make([]float64, len(pv.Specs))
	current := make(map[components.Species]map[string]float64)
	for i, spec := range pv.Specs {
		if current[spec.Species] == nil {
			current[spec.Species] = cfg.SpeciesValues(spec.Species)
		}
		values[i] = current[spec.Species][spec.Key]
	}
	return values
}
