// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/rs/zerolog"
)

// Transport selects how the single client reaches the server
type Transport string

const (
	TransportTCP       Transport = "tcp"
	TransportWebSocket Transport = "websocket"
	TransportSerial    Transport = "serial"
)

// Defaults used by the reference testbench
const (
	DefaultAddress       = "127.0.0.1"
	DefaultPort          = 14000
	DefaultWebSocketPath = "/fofb"
	DefaultBaudRate      = 115200
)

// ErrUnknownTransport is returned by ParseTransport
var ErrUnknownTransport = errors.New("fofbserver: unknown transport")

// ParseTransport parses a transport name ("tcp", "websocket"/"ws", "serial")
func ParseTransport(name string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tcp":
		return TransportTCP, nil
	case "websocket", "ws":
		return TransportWebSocket, nil
	case "serial":
		return TransportSerial, nil
	default:
		return "", fmt.Errorf("%w: %q (use tcp, websocket or serial)", ErrUnknownTransport, name)
	}
}

// WebSocketConfig configures the websocket transport
type WebSocketConfig struct {
	Path string
	// Username and Password enable HTTP Basic auth when both are set
	Username string
	Password string
}

// SerialConfig configures the serial transport
type SerialConfig struct {
	Device   string
	BaudRate int
}

// Config configures a Server
type Config struct {
	Transport Transport
	Address   string // listen address for tcp and websocket
	Port      uint16 // 0 picks a free port
	Widths    fofb.FracWidths

	WebSocket WebSocketConfig
	Serial    SerialConfig

	// DebugOut receives the state dump on "debug" (default os.Stdout)
	DebugOut io.Writer
	// OnDebug is called after the dump with the server lock held.
	// It must not call back into the Server.
	OnDebug func(st *fofb.State)

	Logger *zerolog.Logger // default: disabled
}

func (c Config) withDefaults() Config {
	if c.Transport == "" {
		c.Transport = TransportTCP
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = DefaultWebSocketPath
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = DefaultBaudRate
	}
	if c.DebugOut == nil {
		c.DebugOut = os.Stdout
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
