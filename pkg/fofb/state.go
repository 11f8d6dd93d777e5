// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
)

// ErrInvalidFracWidth is returned when a fractional width is outside 0-31
var ErrInvalidFracWidth = errors.New("fofb: fractional width out of range (0-31)")

// FracWidths holds the binary point position of each value domain
type FracWidths struct {
	Gain   int
	Coeffs int
	BPM    int // set-points and positions
}

// Validate checks that every width is within 0-31
func (w FracWidths) Validate() error {
	for _, f := range []struct {
		name  string
		width int
	}{
		{"gain", w.Gain},
		{"coefficients", w.Coeffs},
		{"bpm", w.BPM},
	} {
		if !fixedpoint.ValidFracWidth(f.width) {
			return fmt.Errorf("%w: %s=%d", ErrInvalidFracWidth, f.name, f.width)
		}
	}
	return nil
}

// State is the decoded protocol state.
// Widths are fixed at creation. State is not safe for concurrent use.
type State struct {
	widths FracWidths

	Gain         int32
	Coefficients [NumChannels]int32
	SetPoints    [NumChannels]int32
	Positions    [NumChannels]int32
}

// NewState creates a zeroed state with the given fractional widths
func NewState(widths FracWidths) (*State, error) {
	if err := widths.Validate(); err != nil {
		return nil, err
	}
	return &State{widths: widths}, nil
}

// Widths returns the fractional widths the state was created with
func (s *State) Widths() FracWidths {
	return s.widths
}

// destination returns the buffer and fractional width written by msgType
func (s *State) destination(msgType MsgType) ([]int32, int, bool) {
	switch msgType {
	case MsgCoefficients:
		return s.Coefficients[:], s.widths.Coeffs, true
	case MsgSetPoints:
		return s.SetPoints[:], s.widths.BPM, true
	case MsgPositions:
		return s.Positions[:], s.widths.BPM, true
	default:
		return nil, 0, false
	}
}
