// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/Thermoquad/fofbsim/pkg/fofbserver"
	"github.com/rs/zerolog"
)

// ============================================================
// Test Helpers
// ============================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfig, EnvPort, EnvTransport, EnvPassword} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fofbsim.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// ============================================================
// Load Tests
// ============================================================

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}

	want := fofb.FracWidths{Gain: 12, Coeffs: 31, BPM: 0}
	if cfg.Widths() != want {
		t.Errorf("Widths() = %+v, want %+v", cfg.Widths(), want)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[server]
transport = "websocket"
address = "0.0.0.0"
port = 15000

[server.websocket]
path = "/sim"
username = "bench"

[fixed_point]
gain_frac_width = 8
coeffs_frac_width = 20
bpm_frac_width = 2

[log]
level = "debug"
no_color = true

[debug]
snapshot = "/tmp/state.cbor"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 15000 || cfg.Server.Address != "0.0.0.0" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Debug.Snapshot != "/tmp/state.cbor" {
		t.Errorf("Debug.Snapshot = %q", cfg.Debug.Snapshot)
	}
	// Keys absent from the file keep their defaults
	if cfg.Server.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %d, want default 115200", cfg.Server.Serial.Baud)
	}

	srv := cfg.ServerConfig()
	if srv.Transport != fofbserver.TransportWebSocket {
		t.Errorf("Transport = %q, want websocket", srv.Transport)
	}
	if srv.WebSocket.Path != "/sim" || srv.WebSocket.Username != "bench" {
		t.Errorf("WebSocket = %+v", srv.WebSocket)
	}
	if srv.Widths != (fofb.FracWidths{Gain: 8, Coeffs: 20, BPM: 2}) {
		t.Errorf("Widths = %+v", srv.Widths)
	}

	opts := cfg.LoggingOptions()
	if opts.Level != zerolog.DebugLevel || !opts.NoColor || opts.Timestamp != true {
		t.Errorf("LoggingOptions = %+v", opts)
	}
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[server]\nport = 16000\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 16000 {
		t.Errorf("Port = %d, want 16000", cfg.Server.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[server]\nport = 16000\ntransport = \"tcp\"\n")
	t.Setenv(EnvPort, "17000")
	t.Setenv(EnvTransport, "ws")
	t.Setenv(EnvPassword, "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 17000 {
		t.Errorf("Port = %d, want 17000", cfg.Server.Port)
	}

	srv := cfg.ServerConfig()
	if srv.Transport != fofbserver.TransportWebSocket {
		t.Errorf("Transport = %q, want websocket", srv.Transport)
	}
	if srv.WebSocket.Password != "secret" {
		t.Errorf("Password = %q, want from environment", srv.WebSocket.Password)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		invalid bool // wraps ErrInvalidConfig
	}{
		{name: "unknown key", body: "[server]\nprot = 1\n", invalid: true},
		{name: "bad toml", body: "[server\n"},
		{name: "width too large", body: "[fixed_point]\ngain_frac_width = 32\n", invalid: true},
		{name: "negative width", body: "[fixed_point]\nbpm_frac_width = -1\n", invalid: true},
		{name: "port out of range", body: "[server]\nport = 70000\n", invalid: true},
		{name: "unknown transport", body: "[server]\ntransport = \"udp\"\n", invalid: true},
		{name: "serial without device", body: "[server]\ntransport = \"serial\"\n", invalid: true},
		{name: "unknown log level", body: "[log]\nlevel = \"loud\"\n", invalid: true},
		{name: "bad port env", body: "", env: map[string]string{EnvPort: "abc"}, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if tt.invalid && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
