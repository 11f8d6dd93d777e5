// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/spf13/cobra"
)

var (
	snapshotChannels int
	snapshotDump     bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot FILE",
	Short: "Inspect a CBOR state snapshot",
	Long: `Decode a state snapshot written by serve --snapshot or monitor --snapshot.

By default the fractional widths, the gain and the first --channels channels
are printed as real values. --dump prints the same text the server writes on
"debug".`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().IntVarP(&snapshotChannels, "channels", "n", 8, "Number of channels to print")
	snapshotCmd.Flags().BoolVar(&snapshotDump, "dump", false, "Print the full debug dump")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	snap, err := fofb.ReadSnapshotFile(args[0])
	if err != nil {
		return err
	}
	st, err := fofb.NewStateFromSnapshot(snap)
	if err != nil {
		return err
	}

	if snapshotDump {
		return fofb.FormatState(os.Stdout, st)
	}

	w := st.Widths()
	fmt.Printf("Snapshot: %s\n", args[0])
	if snap.TakenAtMs != 0 {
		fmt.Printf("Taken:    %s\n", time.UnixMilli(snap.TakenAtMs).Format("01/02/06 15:04:05.000"))
	}
	fmt.Printf("Widths:   gain Q.%d, coefficients Q.%d, bpm Q.%d\n", w.Gain, w.Coeffs, w.BPM)
	fmt.Printf("Gain:     %.6g (raw %d)\n\n", fixedpoint.ToFloat(st.Gain, w.Gain), st.Gain)

	n := snapshotChannels
	if n < 0 || n > fofb.NumChannels {
		n = fofb.NumChannels
	}
	fmt.Printf("%7s  %14s  %14s  %14s\n", "Channel", "Coefficient", "Set-Point", "Position")
	for i := 0; i < n; i++ {
		fmt.Printf("%7d  %14.6g  %14.6g  %14.6g\n", i,
			fixedpoint.ToFloat(st.Coefficients[i], w.Coeffs),
			fixedpoint.ToFloat(st.SetPoints[i], w.BPM),
			fixedpoint.ToFloat(st.Positions[i], w.BPM))
	}
	return nil
}
