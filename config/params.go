package config

import (
	"math"
	"slices"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/pthm-cable/biosim/components"
)

type speciesField struct {
	key string
	ptr func(*SpeciesParams) *float64
	max float64 // inclusive upper bound, 0 = unbounded
}

var speciesFields = []speciesField{
	{key: "w_birth", ptr: func(p *SpeciesParams) *float64 { return &p.WBirth }},
	{key: "sigma_birth", ptr: func(p *SpeciesParams) *float64 { return &p.SigmaBirth }},
	{key: "beta", ptr: func(p *SpeciesParams) *float64 { return &p.Beta }},
	{key: "eta", ptr: func(p *SpeciesParams) *float64 { return &p.Eta }, max: 1},
	{key: "a_half", ptr: func(p *SpeciesParams) *float64 { return &p.AHalf }},
	{key: "phi_age", ptr: func(p *SpeciesParams) *float64 { return &p.PhiAge }},
	{key: "w_half", ptr: func(p *SpeciesParams) *float64 { return &p.WHalf }},
	{key: "phi_weight", ptr: func(p *SpeciesParams) *float64 { return &p.PhiWeight }},
	{key: "mu", ptr: func(p *SpeciesParams) *float64 { return &p.Mu }},
	{key: "lambda", ptr: func(p *SpeciesParams) *float64 { return &p.Lambda }},
	{key: "gamma", ptr: func(p *SpeciesParams) *float64 { return &p.Gamma }},
	{key: "zeta", ptr: func(p *SpeciesParams) *float64 { return &p.Zeta }},
	{key: "xi", ptr: func(p *SpeciesParams) *float64 { return &p.Xi }},
	{key: "omega", ptr: func(p *SpeciesParams) *float64 { return &p.Omega }},
	{key: "F", ptr: func(p *SpeciesParams) *float64 { return &p.F }},
}

var deltaPhiMaxField = speciesField{
	key: "DeltaPhiMax",
	ptr: func(p *SpeciesParams) *float64 { return &p.DeltaPhiMax },
}

func fieldsFor(s components.Species) []speciesField {
	if s == components.Carnivore {
		return append(slices.Clone(speciesFields), deltaPhiMaxField)
	}
	return speciesFields
}

// SpeciesKeys returns the parameter keys accepted for species s.
func SpeciesKeys(s components.Species) []string {
	fields := fieldsFor(s)
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// SpeciesValues returns the current parameters of species s keyed like
// UpdateSpecies expects them.
func (c *Config) SpeciesValues(s components.Species) map[string]float64 {
	p := c.Species(s)
	values := make(map[string]float64)
	for _, f := range fieldsFor(s) {
		values[f.key] = *f.ptr(p)
	}
	return values
}

// LandscapeKeys returns the parameter keys accepted for landscape l.
// Only landscapes whose fodder regrows have parameters.
func LandscapeKeys(l components.Landscape) []string {
	if l.Grows() {
		return []string{"f_max"}
	}
	return nil
}

// Validate checks every species and landscape parameter and the run settings.
func (c *Config) Validate() error {
	for _, s := range components.AllSpecies {
		p := c.Species(s)
		for _, f := range fieldsFor(s) {
			if err := checkValue(s.String(), f, *f.ptr(p)); err != nil {
				return err
			}
		}
	}
	for _, l := range components.AllLandscapes {
		fmax := c.Landscapes(l).FMax
		if !l.Grows() {
			if fmax != 0 {
				return Errorf("landscape %c has no parameters, got f_max=%g", l.Code(), fmax)
			}
			continue
		}
		if err := checkValue(string(l.Code()), speciesField{key: "f_max"}, fmax); err != nil {
			return err
		}
	}
	if c.Simulation.Years < 0 {
		return Errorf("simulation.years must be >= 0, got %d", c.Simulation.Years)
	}
	return nil
}

func checkValue(owner string, f speciesField, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Errorf("%s parameter %s must be finite, got %g", owner, f.key, v)
	}
	if v < 0 {
		return Errorf("%s parameter %s must be >= 0, got %g", owner, f.key, v)
	}
	if f.max > 0 && v > f.max {
		return Errorf("%s parameter %s must be <= %g, got %g", owner, f.key, f.max, v)
	}
	return nil
}

// UpdateSpecies applies parameter overrides to species s. Either every
// override is applied or, on the first invalid key or value, none is.
func (c *Config) UpdateSpecies(s components.Species, overrides map[string]float64) error {
	fields := fieldsFor(s)
	byKey := make(map[string]speciesField, len(fields))
	for _, f := range fields {
		byKey[f.key] = f
	}

	next := *c.Species(s)
	for _, key := range sortedKeys(overrides) {
		f, ok := byKey[key]
		if !ok {
			return unknownKey(s.String(), key, SpeciesKeys(s))
		}
		if err := checkValue(s.String(), f, overrides[key]); err != nil {
			return err
		}
		*f.ptr(&next) = overrides[key]
	}

	*c.Species(s) = next
	c.computeDerived()
	return nil
}

// UpdateLandscape applies parameter overrides to the landscape with the given
// map code. All-or-nothing like UpdateSpecies.
func (c *Config) UpdateLandscape(code string, overrides map[string]float64) error {
	if len(code) != 1 {
		return Errorf("unknown landscape code %q", code)
	}
	l, ok := components.ParseLandscape(code[0])
	if !ok {
		return Errorf("unknown landscape code %q", code)
	}
	valid := LandscapeKeys(l)
	if len(valid) == 0 && len(overrides) > 0 {
		return Errorf("landscape %s has no parameters", code)
	}

	next := *c.Landscapes(l)
	for _, key := range sortedKeys(overrides) {
		if key != "f_max" {
			return unknownKey(code, key, valid)
		}
		if err := checkValue(code, speciesField{key: key}, overrides[key]); err != nil {
			return err
		}
		next.FMax = overrides[key]
	}
	*c.Landscapes(l) = next
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unknownKey(owner, key string, valid []string) error {
	if s := suggestKey(key, valid); s != "" {
		return Errorf("unknown %s parameter %q (did you mean %q?)", owner, key, s)
	}
	return Errorf("unknown %s parameter %q", owner, key)
}

// suggestKey returns the valid key closest to key, or "" if none is close.
func suggestKey(key string, valid []string) string {
	best, bestDist := "", -1
	for _, v := range valid {
		d := levenshtein.ComputeDistance(key, v)
		if d > levenshteinLimit(len(v)) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
