// Package components defines the ECS components and value types shared by the
// island simulation.
package components

import (
	"fmt"
	"strings"
)

// Species identifies an animal species.
type Species uint8

const (
	Herbivore Species = iota
	Carnivore
)

// AllSpecies lists the species in processing order. Within a cell herbivores
// are always handled before carnivores.
var AllSpecies = [...]Species{Herbivore, Carnivore}

// NumSpecies is the number of species.
const NumSpecies = len(AllSpecies)

var speciesNames = [...]string{"Herbivore", "Carnivore"}

// String returns the canonical species name.
func (s Species) String() string {
	if int(s) < len(speciesNames) {
		return speciesNames[s]
	}
	return fmt.Sprintf("Species(%d)", uint8(s))
}

// ParseSpecies parses a species name, ignoring case.
func ParseSpecies(name string) (Species, error) {
	for i, n := range speciesNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return Species(i), nil
		}
	}
	return 0, fmt.Errorf("unknown species %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Species) MarshalText() ([]byte, error) {
	if int(s) >= len(speciesNames) {
		return nil, fmt.Errorf("unknown species %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Species) UnmarshalText(text []byte) error {
	parsed, err := ParseSpecies(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Landscape is the terrain type of a cell. It never changes after the island
// is built.
type Landscape uint8

const (
	Water Landscape = iota
	Lowland
	Highland
	Desert
)

// AllLandscapes lists every landscape type.
var AllLandscapes = [...]Landscape{Water, Lowland, Highland, Desert}

type landscapeInfo struct {
	code      byte
	name      string
	habitable bool
	grows     bool // fodder regrows to capacity each year
}

var landscapeTable = [...]landscapeInfo{
	Water:    {code: 'W', name: "Water", habitable: false, grows: false},
	Lowland:  {code: 'L', name: "Lowland", habitable: true, grows: true},
	Highland: {code: 'H', name: "Highland", habitable: true, grows: true},
	Desert:   {code: 'D', name: "Desert", habitable: true, grows: false},
}

// ParseLandscape maps a map code (W, L, H, D) to its landscape.
func ParseLandscape(code byte) (Landscape, bool) {
	for i, info := range landscapeTable {
		if info.code == code {
			return Landscape(i), true
		}
	}
	return 0, false
}

// Code returns the single-character map code.
func (l Landscape) Code() byte { return landscapeTable[l].code }

// String returns the landscape name.
func (l Landscape) String() string {
	if int(l) < len(landscapeTable) {
		return landscapeTable[l].name
	}
	return fmt.Sprintf("Landscape(%d)", uint8(l))
}

// Habitable reports whether animals may live in or move through the cell.
func (l Landscape) Habitable() bool { return landscapeTable[l].habitable }

// Grows reports whether fodder is replenished every year.
func (l Landscape) Grows() bool { return landscapeTable[l].grows }
