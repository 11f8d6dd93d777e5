// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/spf13/cobra"
)

var (
	sendURL          string
	sendNoSSLVerify  bool
	sendGain         float64
	sendCoefficients []float64
	sendSetPoints    []float64
	sendPositions    []float64
	sendRepeat       int
	sendInterval     time.Duration
	sendWait         int
	sendDisconnect   bool
)

var sendCmd = &cobra.Command{
	Use:   "send [line...]",
	Short: "Act as a client and send protocol lines",
	Long: `Connect to a running fofbsim server and send protocol lines.

Lines are built from the value flags first (gain, coefficients, set-points,
positions; positions are repeated --repeat times), followed by the positional
arguments. Without value flags or arguments, lines are read from stdin.

Set-point replies are printed as raw integers and as real values using the
BPM fractional width, until --wait seconds pass without a reply.

Examples:
  fofbsim send --gain 0.5 --coefficients 1,0.5 --positions 0.1,-0.2
  fofbsim send debug
  echo "bpm_positions 1 2 3" | fofbsim send`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendURL, "url", "u", "", "WebSocket URL (ws:// or wss://), overrides address/port")
	sendCmd.Flags().BoolVar(&sendNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	sendCmd.Flags().Float64Var(&sendGain, "gain", 0, "Send a gain line")
	sendCmd.Flags().Float64SliceVar(&sendCoefficients, "coefficients", nil, "Send a coefficients line")
	sendCmd.Flags().Float64SliceVar(&sendSetPoints, "setpoints", nil, "Send a bpm_setpoints line")
	sendCmd.Flags().Float64SliceVar(&sendPositions, "positions", nil, "Send a bpm_positions line")
	sendCmd.Flags().IntVar(&sendRepeat, "repeat", 1, "Number of times the positions line is sent")
	sendCmd.Flags().DurationVar(&sendInterval, "interval", 0, "Delay between lines")
	sendCmd.Flags().IntVar(&sendWait, "wait", 1, "Seconds to wait for set-point replies")
	sendCmd.Flags().BoolVar(&sendDisconnect, "disconnect", false, "Send disconnect before closing")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("url") {
		cfg.Server.Transport = "websocket"
	}

	lines := buildLines(cmd, args)
	if len(lines) == 0 {
		lines, err = readLines(os.Stdin)
		if err != nil {
			return err
		}
	}
	if sendDisconnect {
		lines = append(lines, fofb.CommandLine(fofb.VerbDisconnect))
	}

	conn, connInfo, err := OpenConnection(cfg, sendURL, sendNoSSLVerify)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info().Str("conn", connInfo).Int("lines", len(lines)).Msg("Connected")

	replies := make(chan string, 64)
	go readReplies(conn, replies)

	bpmFrac := cfg.FixedPoint.BPMFracWidth
	for i, line := range lines {
		if _, err := io.WriteString(conn, line); err != nil {
			return fmt.Errorf("failed to send line %d: %w", i+1, err)
		}
		logger.Debug().Str("line", strings.TrimSpace(line)).Msg("Sent")
		if sendInterval > 0 {
			time.Sleep(sendInterval)
		}
		drainReplies(replies, bpmFrac)
	}

	if sendWait <= 0 {
		return nil
	}
	timeout := time.Duration(sendWait) * time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case reply, ok := <-replies:
			if !ok {
				return nil
			}
			printReply(reply, bpmFrac)
			timer.Reset(timeout)
		case <-timer.C:
			return nil
		}
	}
}

// buildLines turns the value flags and arguments into protocol lines
func buildLines(cmd *cobra.Command, args []string) []string {
	var lines []string
	if cmd.Flags().Changed("gain") {
		lines = append(lines, fofb.GainLine(sendGain))
	}
	if len(sendCoefficients) > 0 {
		lines = append(lines, fofb.CoefficientsLine(sendCoefficients))
	}
	if len(sendSetPoints) > 0 {
		lines = append(lines, fofb.SetPointsLine(sendSetPoints))
	}
	if len(sendPositions) > 0 {
		line := fofb.PositionsLine(sendPositions)
		for i := 0; i < sendRepeat; i++ {
			lines = append(lines, line)
		}
	}
	for _, arg := range args {
		lines = append(lines, strings.TrimRight(arg, "\r\n")+"\n")
	}
	return lines
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text()+"\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return lines, nil
}

// readReplies forwards reply lines until the connection closes
func readReplies(conn Connection, replies chan<- string) {
	defer close(replies)
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			replies <- line
		}
		if err != nil {
			return
		}
	}
}

func drainReplies(replies <-chan string, bpmFrac int) {
	for {
		select {
		case reply, ok := <-replies:
			if !ok {
				return
			}
			printReply(reply, bpmFrac)
		default:
			return
		}
	}
}

func printReply(line string, bpmFrac int) {
	timestamp := time.Now().Format("15:04:05.000")
	value, err := fofb.ParseReply(line)
	if err != nil {
		fmt.Printf("[%s] \033[1;31mINVALID REPLY:\033[0m %q\n", timestamp, strings.TrimSpace(line))
		return
	}
	fmt.Printf("[%s] Set-point: %d (%.6g)\n", timestamp, value, fixedpoint.ToFloat(value, bpmFrac))
}
