// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import (
	"bufio"
	"io"
	"strconv"
)

// FormatMsgType returns the VHDL enumeration literal for a message type
func FormatMsgType(msgType MsgType) string {
	switch msgType {
	case MsgCoefficients:
		return "COEFF_DATA"
	case MsgSetPoints:
		return "SETPOINT_DATA"
	case MsgPositions:
		return "BPMPOS_DATA"
	case MsgGain:
		return "GAIN_DATA"
	case MsgClearAccumulator:
		return "CLEAR_ACC"
	case MsgDebug:
		return "DEBUG"
	case MsgDisconnected:
		return "DISCONNECTED"
	case MsgParseError:
		return "PARSEERR"
	case MsgExit:
		return "EXIT_SIMU"
	default:
		return "UNKNOWN"
	}
}

// String implements fmt.Stringer
func (m MsgType) String() string {
	return FormatMsgType(m)
}

// HasData reports whether msgType carries values that were written to the state
func (m MsgType) HasData() bool {
	return m == MsgCoefficients || m == MsgSetPoints || m == MsgPositions || m == MsgGain
}

// FormatState writes the human readable state dump emitted on "debug"
func FormatState(w io.Writer, st *State) error {
	bw := bufio.NewWriter(w)
	widths := st.Widths()

	writeField(bw, "Gain Fraction", widths.Gain)
	writeField(bw, "Gain", int(st.Gain))
	writeField(bw, "Coefficients Fraction", widths.Coeffs)
	writeList(bw, "Coefficients", st.Coefficients[:])
	writeField(bw, "BPM Position Fraction", widths.BPM)
	writeList(bw, "BPM Positions", st.Positions[:])
	writeField(bw, "BPM Set-Point Fraction", widths.BPM)
	writeList(bw, "BPM Set-Points", st.SetPoints[:])

	return bw.Flush()
}

func writeField(bw *bufio.Writer, name string, value int) {
	bw.WriteString(name)
	bw.WriteString(": ")
	bw.WriteString(strconv.Itoa(value))
	bw.WriteByte('\n')
}

func writeList(bw *bufio.Writer, name string, values []int32) {
	bw.WriteString(name)
	bw.WriteString(": \n")
	for _, v := range values {
		bw.WriteString(strconv.FormatInt(int64(v), 10))
		bw.WriteByte(' ')
	}
	bw.WriteByte('\n')
}
