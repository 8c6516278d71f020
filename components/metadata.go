package components

// Property names a per-animal attribute that can be summarised or binned.
type Property string

const (
	PropAge     Property = "age"
	PropWeight  Property = "weight"
	PropFitness Property = "fitness"
)

// FieldDescriptor describes how a property is displayed and binned.
type FieldDescriptor struct {
	ID     Property
	Label  string
	Format string  // Printf format (e.g., "%.2f")
	Max    float64 // Upper edge of the last histogram bin
	Delta  float64 // Histogram bin width
}

// AnimalFieldDescriptors returns the default histogram specs for animal
// properties.
func AnimalFieldDescriptors() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: PropAge, Label: "Age", Format: "%.0f", Max: 60, Delta: 2},
		{ID: PropWeight, Label: "Weight", Format: "%.1f", Max: 60, Delta: 2},
		{ID: PropFitness, Label: "Fitness", Format: "%.2f", Max: 1, Delta: 0.05},
	}
}

// Value returns the named property of the animal, or 0 for an unknown name.
func (a AnimalState) Value(p Property) float64 {
	switch p {
	case PropAge:
		return float64(a.Age)
	case PropWeight:
		return a.Weight
	case PropFitness:
		return a.Fitness
	}
	return 0
}
