// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fixedpoint converts real values to the signed Q-format integers
// used by the FOFB gateware and encodes them as GHDL std_logic vectors.
package fixedpoint

import "math"

// MaxFracWidth is the largest fractional width accepted by the gateware ports
const MaxFracWidth = 31

// ToFixed converts num to a signed 32-bit fixed point value with fracWidth
// fractional bits. The scaled value is truncated toward zero and saturates
// at math.MaxInt32 / math.MinInt32. NaN converts to 0.
func ToFixed(num float64, fracWidth int) int32 {
	scaled := math.Ldexp(num, fracWidth)
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled > math.MaxInt32:
		return math.MaxInt32
	case scaled < math.MinInt32:
		return math.MinInt32
	}
	return int32(scaled)
}

// ToFloat converts a fixed point value back to the real domain
func ToFloat(value int32, fracWidth int) float64 {
	return math.Ldexp(float64(value), -fracWidth)
}

// ValidFracWidth reports whether w is usable as a fractional width
func ValidFracWidth(w int) bool {
	return w >= 0 && w <= MaxFracWidth
}
