// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import (
	"strconv"
	"strings"
)

// Line builder functions create protocol lines ready to be written to the
// server, newline included. Values are formatted with the shortest
// representation that parses back to the same float64.

// CoefficientsLine creates a "coefficients" line
func CoefficientsLine(values []float64) string {
	return numListLine(VerbCoefficients, values)
}

// SetPointsLine creates a "bpm_setpoints" line
func SetPointsLine(values []float64) string {
	return numListLine(VerbSetPoints, values)
}

// PositionsLine creates a "bpm_positions" line
func PositionsLine(values []float64) string {
	return numListLine(VerbPositions, values)
}

// GainLine creates a "gain" line
func GainLine(gain float64) string {
	return numListLine(VerbGain, []float64{gain})
}

// CommandLine creates a line for a verb without arguments
// (clear_acc, debug, disconnect, exit)
func CommandLine(verb string) string {
	return verb + "\n"
}

func numListLine(verb string, values []float64) string {
	var sb strings.Builder
	sb.Grow(len(verb) + len(values)*12 + 1)
	sb.WriteString(verb)
	for _, v := range values {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// ParseReply parses a set-point line sent back by the server
func ParseReply(line string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(line), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}
