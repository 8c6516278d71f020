package components

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Location is a 1-based (row, column) cell coordinate. Row 1 is the top row
// of the map, column 1 its leftmost column.
type Location struct {
	Row int
	Col int
}

// Loc builds a Location.
func Loc(row, col int) Location { return Location{Row: row, Col: col} }

// String formats the location as "(row, col)".
func (l Location) String() string { return fmt.Sprintf("(%d, %d)", l.Row, l.Col) }

// Neighbours returns the four orthogonal neighbours in the fixed order
// north, south, west, east.
func (l Location) Neighbours() [4]Location {
	return [4]Location{
		{l.Row - 1, l.Col},
		{l.Row + 1, l.Col},
		{l.Row, l.Col - 1},
		{l.Row, l.Col + 1},
	}
}

// MarshalYAML encodes the location as a [row, col] pair.
func (l Location) MarshalYAML() (interface{}, error) {
	return []int{l.Row, l.Col}, nil
}

// UnmarshalYAML decodes a [row, col] pair.
func (l *Location) UnmarshalYAML(node *yaml.Node) error {
	var pair []int
	if err := node.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("location must be [row, col], got %d values", len(pair))
	}
	l.Row, l.Col = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes the location as a [row, col] pair.
func (l Location) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", l.Row, l.Col)), nil
}

// UnmarshalJSON decodes a [row, col] pair.
func (l *Location) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("location must be [row, col], got %d values", len(pair))
	}
	l.Row, l.Col = pair[0], pair[1]
	return nil
}
