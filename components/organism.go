package components

// Fauna is the per-animal ECS component.
// Fitness is derived from Age and Weight and must be refreshed after either
// changes; systems.Refit does that.
type Fauna struct {
	ID       uint32
	Species  Species
	Age      int
	Weight   float64
	Fitness  float64
	Migrated bool // moved to another cell this year
}

// AnimalSpec describes one animal in a population record.
// A nil Weight means the weight is drawn from the species birth distribution.
type AnimalSpec struct {
	Species Species  `yaml:"species" json:"species"`
	Age     int      `yaml:"age" json:"age"`
	Weight  *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// PopulationRecord places a group of animals in one cell.
type PopulationRecord struct {
	Loc Location     `yaml:"loc" json:"loc"`
	Pop []AnimalSpec `yaml:"pop" json:"pop"`
}

// AnimalState is a read-only view of one living animal.
type AnimalState struct {
	Loc     Location `json:"loc"`
	Species Species  `json:"species"`
	Age     int      `json:"age"`
	Weight  float64  `json:"weight"`
	Fitness float64  `json:"fitness"`
}

// Weight returns a pointer to w, for building AnimalSpec literals.
func Weight(w float64) *float64 { return &w }
