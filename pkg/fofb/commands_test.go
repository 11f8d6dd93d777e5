// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import (
	"math"
	"testing"
)

func TestLineBuilders(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"coefficients", CoefficientsLine([]float64{1, -0.5}), "coefficients 1 -0.5\n"},
		{"setpoints", SetPointsLine([]float64{0.1}), "bpm_setpoints 0.1\n"},
		{"positions empty", PositionsLine(nil), "bpm_positions\n"},
		{"gain", GainLine(2.25), "gain 2.25\n"},
		{"command", CommandLine(VerbClearAcc), "clear_acc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.line != tt.expected {
				t.Errorf("got %q, want %q", tt.line, tt.expected)
			}
		})
	}
}

func TestLineBuilders_ParseBack(t *testing.T) {
	values := []float64{math.Pi, -1e-3, 123456.789, 0}
	st, err := NewState(FracWidths{Gain: 0, Coeffs: 20, BPM: 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	if got := ParseLine(st, CoefficientsLine(values)); got != MsgCoefficients {
		t.Fatalf("ParseLine = %s, want COEFF_DATA", got)
	}
	// pi in Q20 = 3294198.99... truncated
	if st.Coefficients[0] != 3294198 {
		t.Errorf("slot 0 = %d, want 3294198", st.Coefficients[0])
	}
	// -0.001 in Q20 = -1048.576 truncated toward zero
	if st.Coefficients[1] != -1048 {
		t.Errorf("slot 1 = %d, want -1048", st.Coefficients[1])
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		line    string
		want    int32
		wantErr bool
	}{
		{"101\n", 101, false},
		{"-2147483648\r\n", math.MinInt32, false},
		{"2147483648", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseReply(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReply(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseReply(%q) = %d, want %d", tt.line, got, tt.want)
			}
		})
	}
}
