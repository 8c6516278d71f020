package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is wrapped by every error caused by invalid input: a bad
// map, an unknown or out-of-range parameter, or an animal placed where it
// cannot live. Match it with errors.Is.
var ErrConfiguration = errors.New("configuration error")

// Errorf returns an error wrapping ErrConfiguration.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
