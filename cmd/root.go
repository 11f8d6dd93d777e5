// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/fofbsim/internal/config"
	"github.com/Thermoquad/fofbsim/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Server flags
	address    string
	port       int
	transport  string
	gainFrac   int
	coeffsFrac int
	bpmFrac    int

	// WebSocket flags
	wsPath     string
	wsUsername string

	// Serial flags
	device   string
	baudRate int

	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "fofbsim",
	Short: "FOFB co-simulation server",
	Long: `fofbsim - A line protocol server that feeds a Fast Orbit Feedback (FOFB)
hardware simulation with coefficients, gain, BPM positions and set-points.

A client sends newline terminated commands (coefficients, bpm_setpoints,
bpm_positions, gain, clear_acc, debug, disconnect, exit) and receives one
decimal set-point per line in reply. Values are converted to 32 bit fixed
point with the configured fractional widths.

Connection modes:
  TCP:       --transport tcp [--address 127.0.0.1] [--port 14000]
  WebSocket: --transport websocket [--ws-path /fofb] [--username user]
  Serial:    --transport serial --device /dev/ttyUSB0 [--baud 115200]

For WebSocket authentication, the password is read from the FOFBSIM_PASSWORD
environment variable. The send command prompts for it when it is not set.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "TOML config file (default $FOFBSIM_CONFIG)")

	pf.StringVarP(&address, "address", "a", "", "Listen/dial address (default 127.0.0.1)")
	pf.IntVarP(&port, "port", "p", 0, "TCP port (default 14000)")
	pf.StringVarP(&transport, "transport", "t", "", "Transport: tcp, websocket or serial")
	pf.IntVar(&gainFrac, "gain-frac", 0, "Gain fractional width (0-31)")
	pf.IntVar(&coeffsFrac, "coeffs-frac", 0, "Coefficients fractional width (0-31)")
	pf.IntVar(&bpmFrac, "bpm-frac", 0, "BPM position/set-point fractional width (0-31)")

	pf.StringVar(&wsPath, "ws-path", "", "WebSocket endpoint path (default /fofb)")
	pf.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth (websocket only)")

	pf.StringVarP(&device, "device", "d", "", "Serial port device (serial only)")
	pf.IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only, default 115200)")

	pf.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")
}

// loadConfig reads the config file and applies flags the user set explicitly
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Server.Address = address
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("transport") {
		cfg.Server.Transport = transport
	}
	if flags.Changed("gain-frac") {
		cfg.FixedPoint.GainFracWidth = gainFrac
	}
	if flags.Changed("coeffs-frac") {
		cfg.FixedPoint.CoeffsFracWidth = coeffsFrac
	}
	if flags.Changed("bpm-frac") {
		cfg.FixedPoint.BPMFracWidth = bpmFrac
	}
	if flags.Changed("ws-path") {
		cfg.Server.WebSocket.Path = wsPath
	}
	if flags.Changed("username") {
		cfg.Server.WebSocket.Username = wsUsername
	}
	if flags.Changed("device") {
		cfg.Server.Serial.Device = device
	}
	if flags.Changed("baud") {
		cfg.Server.Serial.Baud = baudRate
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setup loads the configuration and installs the global logger
func setup(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("configuration: %w", err)
	}
	logger := logging.Configure(cfg.LoggingOptions())
	return cfg, logger, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
