// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidSnapshot is returned when a decoded snapshot has the wrong shape
var ErrInvalidSnapshot = errors.New("fofb: invalid snapshot")

// Snapshot is a CBOR serializable copy of a State.
// Map keys are small integers to keep the encoding compact.
type Snapshot struct {
	GainFracWidth   int     `cbor:"0,keyasint"`
	CoeffsFracWidth int     `cbor:"1,keyasint"`
	BPMFracWidth    int     `cbor:"2,keyasint"`
	Gain            int32   `cbor:"3,keyasint"`
	Coefficients    []int32 `cbor:"4,keyasint"`
	SetPoints       []int32 `cbor:"5,keyasint"`
	Positions       []int32 `cbor:"6,keyasint"`
	TakenAtMs       int64   `cbor:"7,keyasint,omitempty"` // unix milliseconds
}

// Snapshot copies the current state
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		GainFracWidth:   s.widths.Gain,
		CoeffsFracWidth: s.widths.Coeffs,
		BPMFracWidth:    s.widths.BPM,
		Gain:            s.Gain,
		Coefficients:    append([]int32(nil), s.Coefficients[:]...),
		SetPoints:       append([]int32(nil), s.SetPoints[:]...),
		Positions:       append([]int32(nil), s.Positions[:]...),
		TakenAtMs:       time.Now().UnixMilli(),
	}
}

// Widths returns the fractional widths stored in the snapshot
func (snap Snapshot) Widths() FracWidths {
	return FracWidths{Gain: snap.GainFracWidth, Coeffs: snap.CoeffsFracWidth, BPM: snap.BPMFracWidth}
}

// Validate checks widths and array lengths
func (snap Snapshot) Validate() error {
	if err := snap.Widths().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	for _, arr := range []struct {
		name   string
		values []int32
	}{
		{"coefficients", snap.Coefficients},
		{"set-points", snap.SetPoints},
		{"positions", snap.Positions},
	} {
		if len(arr.values) != NumChannels {
			return fmt.Errorf("%w: %s has %d entries (expected %d)", ErrInvalidSnapshot, arr.name, len(arr.values), NumChannels)
		}
	}
	return nil
}

// NewStateFromSnapshot rebuilds a State from a snapshot
func NewStateFromSnapshot(snap Snapshot) (*State, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	st := &State{widths: snap.Widths(), Gain: snap.Gain}
	copy(st.Coefficients[:], snap.Coefficients)
	copy(st.SetPoints[:], snap.SetPoints)
	copy(st.Positions[:], snap.Positions)
	return st, nil
}

// Restore overwrites the values of s with those of snap.
// The snapshot must carry the same fractional widths as s.
func (s *State) Restore(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if snap.Widths() != s.widths {
		return fmt.Errorf("%w: widths %+v do not match session widths %+v", ErrInvalidSnapshot, snap.Widths(), s.widths)
	}
	s.Gain = snap.Gain
	copy(s.Coefficients[:], snap.Coefficients)
	copy(s.SetPoints[:], snap.SetPoints)
	copy(s.Positions[:], snap.Positions)
	return nil
}

// EncodeSnapshot encodes a snapshot to CBOR
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	data, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot decodes and validates a CBOR snapshot
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty CBOR data", ErrInvalidSnapshot)
	}
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// WriteSnapshotFile encodes the state and writes it to path
func WriteSnapshotFile(path string, st *State) error {
	data, err := EncodeSnapshot(st.Snapshot())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshotFile reads and decodes a snapshot written by WriteSnapshotFile
func ReadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return DecodeSnapshot(data)
}
