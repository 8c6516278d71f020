package systems

import (
	"fmt"
	"math/rand/v2"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/config"
)

// Recorder receives demographic events as they happen during a year.
type Recorder interface {
	RecordBirth(s components.Species)
	RecordDeath(s components.Species)
	RecordKill(eaten float64)
	RecordMigration(s components.Species)
}

type nopRecorder struct{}

func (nopRecorder) RecordBirth(components.Species)     {}
func (nopRecorder) RecordDeath(components.Species)     {}
func (nopRecorder) RecordKill(float64)                 {}
func (nopRecorder) RecordMigration(components.Species) {}

// Env is the context shared by every system: the single random source, the
// live parameters and the event sink. The island never reaches for globals.
type Env struct {
	Rng    *rand.Rand
	Cfg    *config.Config
	Events Recorder

	pcg *rand.PCG
}

// NewEnv creates an environment seeded with seed.
func NewEnv(seed uint64, cfg *config.Config) *Env {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Env{
		Rng:    rand.New(pcg),
		Cfg:    cfg,
		Events: nopRecorder{},
		pcg:    pcg,
	}
}

// SetRecorder installs r as the event sink. A nil r discards events.
func (e *Env) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	e.Events = r
}

// RandState returns the serialized state of the random source.
func (e *Env) RandState() ([]byte, error) {
	return e.pcg.MarshalBinary()
}

// SetRandState restores a state produced by RandState.
func (e *Env) SetRandState(state []byte) error {
	if err := e.pcg.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("restoring random state: %w", err)
	}
	return nil
}
