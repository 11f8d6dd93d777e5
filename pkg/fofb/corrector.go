// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import "github.com/Thermoquad/fofbsim/pkg/fixedpoint"

// Corrector is a software model of one FOFB processing channel.
//
// On every position update it computes the dot product of the inverse
// response matrix row (the coefficients) with the orbit error
// (set-point minus position), scales it by the loop gain and adds it to an
// accumulator. The accumulated value is the corrector set-point, returned in
// the BPM fixed point format.
//
// The model works in float64, so it matches the gateware only to within its
// quantization; it exists to give the client something to close the loop on.
type Corrector struct {
	acc float64
}

// Update integrates the current orbit error and returns the new set-point
func (c *Corrector) Update(st *State) int32 {
	w := st.Widths()

	var dot float64
	for i := 0; i < NumChannels; i++ {
		coeff := fixedpoint.ToFloat(st.Coefficients[i], w.Coeffs)
		if coeff == 0 {
			continue
		}
		err := fixedpoint.ToFloat(st.SetPoints[i], w.BPM) - fixedpoint.ToFloat(st.Positions[i], w.BPM)
		dot += coeff * err
	}

	c.acc += dot * fixedpoint.ToFloat(st.Gain, w.Gain)
	return c.SetPoint(st)
}

// SetPoint returns the accumulator in the BPM fixed point format
func (c *Corrector) SetPoint(st *State) int32 {
	return fixedpoint.ToFixed(c.acc, st.Widths().BPM)
}

// Clear resets the accumulator
func (c *Corrector) Clear() {
	c.acc = 0
}

// Accumulator returns the raw accumulator value
func (c *Corrector) Accumulator() float64 {
	return c.acc
}
