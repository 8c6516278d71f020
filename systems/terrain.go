package systems

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/biosim/components"
)

// TerrainConfig holds island generation parameters.
type TerrainConfig struct {
	Rows          int
	Cols          int
	Seed          int64
	SeaLevel      float64 // elevation below which a cell is water (0.0–1.0)
	HighlandLevel float64 // elevation above which a cell is highland (0.0–1.0)
	DesertLevel   float64 // moisture below which lowland becomes desert (0.0–1.0)
}

// DefaultTerrainConfig returns a medium-sized island.
func DefaultTerrainConfig() TerrainConfig {
	return TerrainConfig{
		Rows:          13,
		Cols:          21,
		Seed:          1,
		SeaLevel:      0.3,
		HighlandLevel: 0.62,
		DesertLevel:   0.35,
	}
}

// GenerateTerrain produces a landscape grid from layered simplex noise.
// Elevation fades towards the edges so land forms an island, and the outer
// ring is always water, so the result is always a valid map.
func GenerateTerrain(cfg TerrainConfig) [][]components.Landscape {
	rows, cols := max(cfg.Rows, 3), max(cfg.Cols, 3)
	elevNoise := opensimplex.NewNormalized(cfg.Seed)
	moistNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	grid := make([][]components.Landscape, rows)
	for r := range grid {
		grid[r] = make([]components.Landscape, cols)
		for c := range grid[r] {
			if r == 0 || c == 0 || r == rows-1 || c == cols-1 {
				grid[r][c] = components.Water
				continue
			}
			x, y := float64(c), float64(r)
			elev := octaveNoise(elevNoise, x, y, 4, 0.15, 0.5)
			moist := octaveNoise(moistNoise, x, y, 3, 0.1, 0.5)

			// Distance from centre on the unit ellipse spanning the map.
			dx := (x - float64(cols-1)/2) / (float64(cols-1) / 2)
			dy := (y - float64(rows-1)/2) / (float64(rows-1) / 2)
			falloff := 1 - math.Pow(math.Sqrt(dx*dx+dy*dy), 3)
			if falloff < 0 {
				falloff = 0
			}
			elev *= falloff

			switch {
			case elev < cfg.SeaLevel:
				grid[r][c] = components.Water
			case elev > cfg.HighlandLevel:
				grid[r][c] = components.Highland
			case moist < cfg.DesertLevel:
				grid[r][c] = components.Desert
			default:
				grid[r][c] = components.Lowland
			}
		}
	}
	return grid
}

// GenerateGeography returns GenerateTerrain's grid as a map string.
func GenerateGeography(cfg TerrainConfig) string {
	return FormatGeography(GenerateTerrain(cfg))
}

// octaveNoise generates fractal noise in [0, 1] by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
