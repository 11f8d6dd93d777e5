// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/fofbsim/internal/logging"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	monitorLogFile  string
	monitorSnapshot string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run a session in an interactive terminal UI",
	Long: `Run the same session as serve, rendered as a terminal UI.

The UI shows message statistics, the gain, every channel's coefficient,
set-point and position, and an event log. The reference corrector answers
bpm_positions lines; a set-point can also be typed in and sent to the client
by hand.

Keys:
  Tab / Shift+Tab  switch between channel list, set-point input and Send
  Up / Down        select a channel
  Enter            send the set-point
  q / Ctrl+C       quit

Logs are discarded unless --log-file is given, since the UI owns the terminal.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorLogFile, "log-file", "", "Write logs to this file")
	monitorCmd.Flags().StringVar(&monitorSnapshot, "snapshot", "", "Write a CBOR state snapshot to this file on every debug")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logOpts := cfg.LoggingOptions()
	logOpts.Out = io.Discard
	if monitorLogFile != "" {
		f, err := os.OpenFile(monitorLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOpts.Out = f
		logOpts.NoColor = true
	}
	logger := logging.Configure(logOpts)

	// Events are queued without blocking the session; the batch sender
	// forwards them to the UI
	events := make(chan sessionEvent, 1024)
	emit := func(ev sessionEvent) {
		select {
		case events <- ev:
		default:
		}
	}

	opts := sessionOptions{snapshotPath: monitorSnapshot}
	sess, err := newSession(cfg, opts, logger, io.Discard, emit)
	if err != nil {
		return err
	}
	defer sess.close()

	connInfo := fmt.Sprintf("%s %s", cfg.Server.Transport, sess.srv.Addr())
	m := initialMonitorModel(sess.srv, connInfo, sess.srv.Widths())
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := sess.run(ctx)
		p.Send(sessionDoneMsg{err: err})
	}()
	go forwardEvents(ctx, p, events)

	_, err = p.Run()
	return err
}

// forwardEvents sends queued session events to the UI in batches
func forwardEvents(ctx context.Context, p *tea.Program, events <-chan sessionEvent) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var batch monitorBatchMsg

		drainLoop:
			for {
				select {
				case ev := <-events:
					batch.events = append(batch.events, ev)
				default:
					break drainLoop
				}
			}

			if len(batch.events) > 0 {
				p.Send(batch)
			}
		}
	}
}
