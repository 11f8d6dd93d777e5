// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"fmt"
	"strconv"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
)

// ReadCoefficient stores coefficient index in out.
// An index outside 0-511 leaves out untouched.
func (s *Server) ReadCoefficient(index int, out *fixedpoint.LogicVector) {
	s.readVector(index, out, func(st *fofb.State) []int32 { return st.Coefficients[:] })
}

// ReadSetPoint stores BPM set-point index in out.
// An index outside 0-511 leaves out untouched.
func (s *Server) ReadSetPoint(index int, out *fixedpoint.LogicVector) {
	s.readVector(index, out, func(st *fofb.State) []int32 { return st.SetPoints[:] })
}

// ReadPosition stores BPM position index in out.
// An index outside 0-511 leaves out untouched.
func (s *Server) ReadPosition(index int, out *fixedpoint.LogicVector) {
	s.readVector(index, out, func(st *fofb.State) []int32 { return st.Positions[:] })
}

// CoefficientAt is ReadCoefficient with an explicit range error
func (s *Server) CoefficientAt(index int) (fixedpoint.LogicVector, error) {
	return s.vectorAt(index, func(st *fofb.State) []int32 { return st.Coefficients[:] })
}

// SetPointAt is ReadSetPoint with an explicit range error
func (s *Server) SetPointAt(index int) (fixedpoint.LogicVector, error) {
	return s.vectorAt(index, func(st *fofb.State) []int32 { return st.SetPoints[:] })
}

// PositionAt is ReadPosition with an explicit range error
func (s *Server) PositionAt(index int) (fixedpoint.LogicVector, error) {
	return s.vectorAt(index, func(st *fofb.State) []int32 { return st.Positions[:] })
}

// ReadGain returns the gain as a raw fixed point integer
func (s *Server) ReadGain() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Gain
}

// WriteSetPoint sends value to the client as a decimal line.
// It does nothing when no client is attached. A failed write releases the
// client and returns an error wrapping ErrConnectionFault.
func (s *Server) WriteSetPoint(value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}

	if err := s.conn.writeLine(strconv.FormatInt(int64(value), 10)); err != nil {
		s.log.Error().Err(err).Str("remote", s.conn.remote).Msg("Write failed")
		s.releaseLocked()
		return fmt.Errorf("%w: write: %v", ErrConnectionFault, err)
	}
	return nil
}

func (s *Server) readVector(index int, out *fixedpoint.LogicVector, sel func(*fofb.State) []int32) {
	if out == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values := sel(s.state)
	if index < 0 || index >= len(values) {
		return
	}
	*out = fixedpoint.ToLogicVector(values[index])
}

func (s *Server) vectorAt(index int, sel func(*fofb.State) []int32) (fixedpoint.LogicVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := sel(s.state)
	if index < 0 || index >= len(values) {
		return fixedpoint.LogicVector{}, fmt.Errorf("%w: %d (0-%d)", ErrIndexOutOfRange, index, len(values)-1)
	}
	return fixedpoint.ToLogicVector(values[index]), nil
}
