// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/spf13/cobra"
)

var (
	serveOnce          bool
	serveReply         int32
	serveSnapshot      string
	serveRestore       string
	serveStatsInterval int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a headless simulation session",
	Long: `Accept one client at a time and process its commands.

After every bpm_positions line the reference corrector integrates the orbit
error (gain * sum(coeff * (setpoint - position))) and the result is written
back to the client as a set-point. clear_acc resets the corrector. Use
--reply to answer every bpm_positions line with a fixed value instead.

The session accepts a new client after a disconnect, and stops when a client
sends exit, when --once is set and the first client leaves, or on Ctrl+C.

"debug" prints the session state to stdout. With --snapshot the state is also
written to a CBOR file that can be inspected with the snapshot command.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveOnce, "once", false, "Stop when the first client disconnects")
	serveCmd.Flags().Int32Var(&serveReply, "reply", 0, "Reply to bpm_positions with this fixed set-point")
	serveCmd.Flags().StringVar(&serveSnapshot, "snapshot", "", "Write a CBOR state snapshot to this file on every debug")
	serveCmd.Flags().StringVar(&serveRestore, "restore", "", "Load a CBOR state snapshot before accepting")
	serveCmd.Flags().IntVar(&serveStatsInterval, "stats-interval", 0, "Log statistics every N seconds (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	stats := fofb.NewStatistics()
	emit := func(ev sessionEvent) {
		switch ev.kind {
		case eventMessage:
			stats.Update(ev.msgType)
			e := logger.Debug()
			if !ev.msgType.HasData() {
				e = logger.Info()
			}
			e.Stringer("msg_type", ev.msgType).Msg("Message")
		case eventSetPoint:
			stats.RecordSetPoint()
			logger.Debug().Int32("setpoint", ev.setPoint).Msg("Set-point sent")
		case eventFault:
			logger.Error().Err(ev.err).Msg("Connection fault")
		}
	}

	opts := sessionOptions{
		once:         serveOnce,
		fixedReply:   cmd.Flags().Changed("reply"),
		replyValue:   serveReply,
		snapshotPath: serveSnapshot,
		restorePath:  serveRestore,
	}
	sess, err := newSession(cfg, opts, logger, os.Stdout, emit)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if serveStatsInterval > 0 {
		// stats belongs to the session goroutine, the ticker only asks for a
		// log line on the next event
		statsReq := make(chan struct{}, 1)
		go func() {
			ticker := time.NewTicker(time.Duration(serveStatsInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					select {
					case statsReq <- struct{}{}:
					default:
					}
				}
			}
		}()
		inner := sess.emit
		sess.emit = func(ev sessionEvent) {
			inner(ev)
			select {
			case <-statsReq:
				stats.CalculateRates()
				logger.Info().
					Uint64("total", stats.TotalMessages).
					Uint64("parse_errors", stats.ParseErrors).
					Uint64("setpoints", stats.SetPoints).
					Float64("rate", stats.MessageRate).
					Msg("Statistics")
			default:
			}
		}
	}

	err = sess.run(ctx)
	fmt.Print("\n" + stats.String())
	return err
}
