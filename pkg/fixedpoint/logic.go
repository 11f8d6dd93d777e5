// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fixedpoint

import "strings"

// Logic is a single std_logic element.
// Values follow GHDL's internal std_ulogic ordinals so a LogicVector can be
// handed to VHPIDIRECT procedures as raw bytes.
type Logic uint8

const (
	LogicU Logic = iota // uninitialized
	LogicX              // forcing unknown
	Logic0              // forcing 0
	Logic1              // forcing 1
)

// VectorWidth is the number of elements in a LogicVector
const VectorWidth = 32

// LogicVector is a std_logic_vector(31 downto 0); index 0 holds bit 31
type LogicVector [VectorWidth]Logic

// String returns the VHDL literal form of a single element
func (l Logic) String() string {
	switch l {
	case LogicU:
		return "U"
	case LogicX:
		return "X"
	case Logic0:
		return "0"
	case Logic1:
		return "1"
	default:
		return "?"
	}
}

// Driven reports whether l is a forcing 0 or 1
func (l Logic) Driven() bool {
	return l == Logic0 || l == Logic1
}

// ToLogicVector encodes value as its two's complement bit pattern, MSB first.
// Only Logic0 and Logic1 are ever produced.
func ToLogicVector(value int32) LogicVector {
	var v LogicVector
	num := uint32(value)
	for i := range v {
		if num&0x80000000 == 0 {
			v[i] = Logic0
		} else {
			v[i] = Logic1
		}
		num <<= 1
	}
	return v
}

// Int32 decodes the vector as MSB-first two's complement.
// Returns false if any element is not driven.
func (v LogicVector) Int32() (int32, bool) {
	var num uint32
	for _, l := range v {
		num <<= 1
		switch l {
		case Logic1:
			num |= 1
		case Logic0:
		default:
			return 0, false
		}
	}
	return int32(num), true
}

// Bytes returns the element ordinals in vector order
func (v LogicVector) Bytes() [VectorWidth]byte {
	var b [VectorWidth]byte
	for i, l := range v {
		b[i] = byte(l)
	}
	return b
}

// String renders the vector the way VHDL's to_string does, e.g. "0000...0101"
func (v LogicVector) String() string {
	var sb strings.Builder
	sb.Grow(VectorWidth)
	for _, l := range v {
		sb.WriteString(l.String())
	}
	return sb.String()
}
