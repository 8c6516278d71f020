// Island map generator. Prints a valid map built from simplex noise and
// optionally writes it as a map file or as a config overlay.
//
// Usage: go run ./cmd/islandgen -rows 15 -cols 25 -seed 7 -config island.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/systems"
)

func main() {
	def := systems.DefaultTerrainConfig()
	rows := flag.Int("rows", def.Rows, "Map rows (including the water border)")
	cols := flag.Int("cols", def.Cols, "Map columns (including the water border)")
	seed := flag.Int64("seed", def.Seed, "Noise seed")
	sea := flag.Float64("sea", def.SeaLevel, "Elevation below which cells are water")
	highland := flag.Float64("highland", def.HighlandLevel, "Elevation above which cells are highland")
	desert := flag.Float64("desert", def.DesertLevel, "Moisture below which lowland becomes desert")
	outPath := flag.String("out", "", "Write the map to this file")
	configPath := flag.String("config", "", "Write a config overlay with this map to this file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := systems.TerrainConfig{
		Rows:          *rows,
		Cols:          *cols,
		Seed:          *seed,
		SeaLevel:      *sea,
		HighlandLevel: *highland,
		DesertLevel:   *desert,
	}
	grid := systems.GenerateTerrain(cfg)
	geography := systems.FormatGeography(grid)

	counts := make(map[components.Landscape]int)
	for _, row := range grid {
		for _, l := range row {
			counts[l]++
		}
	}
	slog.Info("island generated",
		"rows", len(grid),
		"cols", len(grid[0]),
		"seed", *seed,
		"water", counts[components.Water],
		"lowland", counts[components.Lowland],
		"highland", counts[components.Highland],
		"desert", counts[components.Desert],
	)
	if counts[components.Lowland]+counts[components.Highland]+counts[components.Desert] == 0 {
		slog.Warn("island has no land, lower -sea or raise the map size")
	}

	fmt.Println(geography)

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(geography+"\n"), 0644); err != nil {
			slog.Error("failed to write map", "error", err)
			os.Exit(1)
		}
	}
	if *configPath != "" {
		if err := writeOverlay(*configPath, geography); err != nil {
			slog.Error("failed to write config overlay", "error", err)
			os.Exit(1)
		}
	}
}

// writeOverlay writes a config file that only sets the geography, for use
// with the simulator's -config flag.
func writeOverlay(path, geography string) error {
	overlay := map[string]any{
		"simulation": map[string]any{
			"geography": geography + "\n",
		},
	}
	data, err := yaml.Marshal(overlay)
	if err != nil {
		return fmt.Errorf("marshaling overlay: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
