package systems

import (
	"strings"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
)

// ParseGeography parses a multi-line map of landscape codes into rows of
// landscapes. Surrounding blank lines and indentation are ignored. The map
// must be non-empty and rectangular, use only the codes W, L, H and D, and be
// bordered by water.
func ParseGeography(geography string) ([][]components.Landscape, error) {
	text := strings.TrimSpace(geography)
	if text == "" {
		return nil, config.Errorf("empty map")
	}

	lines := strings.Split(text, "\n")
	grid := make([][]components.Landscape, len(lines))
	width := -1
	for r, line := range lines {
		line = strings.TrimSpace(line)
		if width < 0 {
			width = len(line)
		} else if len(line) != width {
			return nil, config.Errorf("map row %d has %d cells, expected %d", r+1, len(line), width)
		}
		row := make([]components.Landscape, len(line))
		for c := 0; c < len(line); c++ {
			l, ok := components.ParseLandscape(line[c])
			if !ok {
				return nil, config.Errorf("unknown landscape code %q at %v", line[c], components.Loc(r+1, c+1))
			}
			row[c] = l
		}
		grid[r] = row
	}

	rows, cols := len(grid), width
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			edge := r == 0 || c == 0 || r == rows-1 || c == cols-1
			if edge && grid[r][c] != components.Water {
				return nil, config.Errorf("map border must be water, found %s at %v", grid[r][c], components.Loc(r+1, c+1))
			}
		}
	}
	return grid, nil
}

// FormatGeography renders a landscape grid back to its map string.
func FormatGeography(grid [][]components.Landscape) string {
	var b strings.Builder
	for r, row := range grid {
		if r > 0 {
			b.WriteByte('\n')
		}
		for _, l := range row {
			b.WriteByte(l.Code())
		}
	}
	return b.String()
}
