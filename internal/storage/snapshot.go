// Package storage persists engine state as versioned JSON snapshots and keeps
// them in an on-disk store keyed by run ID.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/state"
)

const SnapshotVersion = 1

var (
	ErrUnsupportedSnapshotVersion = errors.New("storage: unsupported snapshot version")
	ErrMalformedSnapshot          = errors.New("storage: malformed snapshot")
)

type Snapshot struct {
	Version    int            `json:"version"`
	Config     *config.Config `json:"config"`
	Time       float64        `json:"time"`
	Step       int64          `json:"step,omitempty"`
	Positions  []float64      `json:"positions"`
	Velocities []float64      `json:"velocities"`
	Masses     []float64      `json:"masses"`
	Charges    []float64      `json:"charges"`
	Escaped    []int          `json:"escaped"`
}

// Take copies the engine's configuration and particle buffers. Forces are not
// stored; they are recomputed on hydrate.
func Take(e *engine.Engine) *Snapshot {
	var snap *Snapshot
	e.View(func(cfg *config.Config, st *state.State, steps int64) {
		snap = &Snapshot{
			Version:    SnapshotVersion,
			Config:     cfg.Clone(),
			Time:       st.Time,
			Step:       steps,
			Positions:  append([]float64(nil), st.Positions...),
			Velocities: append([]float64(nil), st.Velocities...),
			Masses:     append([]float64(nil), st.Masses...),
			Charges:    append([]float64(nil), st.Charges...),
			Escaped:    make([]int, st.N),
		}
		for i, f := range st.Escaped {
			snap.Escaped[i] = int(f)
		}
	})
	return snap
}

// Encode writes snap as indented JSON. Snapshots of a blown-up state are
// refused with dynamo.ErrInvalidState.
func Encode(w io.Writer, snap *Snapshot) error {
	if err := snap.checkFinite(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func (s *Snapshot) checkFinite() error {
	for _, buf := range [][]float64{s.Positions, s.Velocities, s.Masses, s.Charges} {
		for _, v := range buf {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("storage: %w", dynamo.ErrInvalidState)
			}
		}
	}
	if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) {
		return fmt.Errorf("storage: %w", dynamo.ErrInvalidState)
	}
	return nil
}

func Decode(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	return &snap, nil
}

// State rebuilds a particle state from the snapshot buffers.
func (s *Snapshot) State() (*state.State, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshotVersion, s.Version)
	}
	if s.Config == nil {
		return nil, fmt.Errorf("%w: missing config", ErrMalformedSnapshot)
	}
	n := len(s.Masses)
	if len(s.Positions) != 3*n || len(s.Velocities) != 3*n || len(s.Charges) != n {
		return nil, fmt.Errorf("%w: buffer lengths disagree with %d masses", ErrMalformedSnapshot, n)
	}
	if s.Escaped != nil && len(s.Escaped) != n {
		return nil, fmt.Errorf("%w: %d escaped flags for %d particles", ErrMalformedSnapshot, len(s.Escaped), n)
	}

	st := state.New(n, s.Config.World.Box.Half())
	st.Time = s.Time
	copy(st.Positions, s.Positions)
	copy(st.Velocities, s.Velocities)
	copy(st.Masses, s.Masses)
	copy(st.Charges, s.Charges)
	for i, f := range s.Escaped {
		if f != 0 {
			st.Escaped[i] = 1
		}
	}
	return st, nil
}

// Hydrate loads a snapshot into an existing engine, replacing its
// configuration and state.
func Hydrate(e *engine.Engine, snap *Snapshot) error {
	st, err := snap.State()
	if err != nil {
		return err
	}
	return e.Restore(snap.Config, st, snap.Step)
}

// Open builds a new engine from a snapshot.
func Open(snap *Snapshot, opts ...engine.Option) (*engine.Engine, error) {
	st, err := snap.State()
	if err != nil {
		return nil, err
	}
	e, err := engine.New(snap.Config, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.Restore(snap.Config, st, snap.Step); err != nil {
		return nil, err
	}
	return e, nil
}
