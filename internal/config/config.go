// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads fofbsim settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/fofbsim/internal/logging"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/Thermoquad/fofbsim/pkg/fofbserver"
)

const (
	EnvConfig    = "FOFBSIM_CONFIG"
	EnvPort      = "FOFBSIM_PORT"
	EnvTransport = "FOFBSIM_TRANSPORT"
	EnvPassword  = "FOFBSIM_PASSWORD"
)

// ErrInvalidConfig is wrapped by all validation failures
var ErrInvalidConfig = errors.New("config: invalid")

// Config is the on-disk configuration layout
type Config struct {
	Server     ServerSection     `toml:"server"`
	FixedPoint FixedPointSection `toml:"fixed_point"`
	Log        LogSection        `toml:"log"`
	Debug      DebugSection      `toml:"debug"`
}

type ServerSection struct {
	Transport string           `toml:"transport"`
	Address   string           `toml:"address"`
	Port      int              `toml:"port"`
	WebSocket WebSocketSection `toml:"websocket"`
	Serial    SerialSection    `toml:"serial"`
}

type WebSocketSection struct {
	Path     string `toml:"path"`
	Username string `toml:"username"`
}

type SerialSection struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

type FixedPointSection struct {
	GainFracWidth   int `toml:"gain_frac_width"`
	CoeffsFracWidth int `toml:"coeffs_frac_width"`
	BPMFracWidth    int `toml:"bpm_frac_width"`
}

type LogSection struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
}

type DebugSection struct {
	// Snapshot is a file that receives a CBOR state snapshot on every "debug"
	Snapshot string `toml:"snapshot"`
}

// Default returns the settings used by the reference testbench
func Default() Config {
	return Config{
		Server: ServerSection{
			Transport: string(fofbserver.TransportTCP),
			Address:   fofbserver.DefaultAddress,
			Port:      fofbserver.DefaultPort,
			WebSocket: WebSocketSection{Path: fofbserver.DefaultWebSocketPath},
			Serial:    SerialSection{Baud: 115200},
		},
		FixedPoint: FixedPointSection{
			GainFracWidth:   12,
			CoeffsFracWidth: 31,
			BPMFracWidth:    0,
		},
		Log: LogSection{
			Level:     "info",
			Timestamp: true,
		},
	}
}

// Load reads the TOML file at path on top of the defaults.
// An empty path falls back to $FOFBSIM_CONFIG, and to defaults only if that
// is unset too. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvPort, raw)
		}
		cfg.Server.Port = port
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTransport)); raw != "" {
		cfg.Server.Transport = raw
	}
	return nil
}

// Validate checks ranges and enumerations
func (c Config) Validate() error {
	transport, err := fofbserver.ParseTransport(c.Server.Transport)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range (0-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if err := c.Widths().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if transport == fofbserver.TransportSerial && c.Server.Serial.Device == "" {
		return fmt.Errorf("%w: serial transport needs server.serial.device", ErrInvalidConfig)
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok && c.Log.Level != "" {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// Widths returns the configured fractional widths
func (c Config) Widths() fofb.FracWidths {
	return fofb.FracWidths{
		Gain:   c.FixedPoint.GainFracWidth,
		Coeffs: c.FixedPoint.CoeffsFracWidth,
		BPM:    c.FixedPoint.BPMFracWidth,
	}
}

// ServerConfig converts the file layout to a fofbserver.Config.
// The websocket password comes from $FOFBSIM_PASSWORD.
func (c Config) ServerConfig() fofbserver.Config {
	transport, _ := fofbserver.ParseTransport(c.Server.Transport)
	return fofbserver.Config{
		Transport: transport,
		Address:   c.Server.Address,
		Port:      uint16(c.Server.Port),
		Widths:    c.Widths(),
		WebSocket: fofbserver.WebSocketConfig{
			Path:     c.Server.WebSocket.Path,
			Username: c.Server.WebSocket.Username,
			Password: os.Getenv(EnvPassword),
		},
		Serial: fofbserver.SerialConfig{
			Device:   c.Server.Serial.Device,
			BaudRate: c.Server.Serial.Baud,
		},
	}
}

// LoggingOptions converts the log section
func (c Config) LoggingOptions() logging.Options {
	opts := logging.DefaultOptions()
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		opts.Level = lvl
	}
	opts.Timestamp = c.Log.Timestamp
	opts.NoColor = c.Log.NoColor
	return opts
}
