// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// fofbsim - FOFB co-simulation server
//
// Serves the line protocol a fast orbit feedback hardware simulation uses to
// receive coefficients, gain, BPM positions and set-points, and to send
// corrector set-points back.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/fofbsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
