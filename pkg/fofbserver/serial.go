// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.bug.st/serial"
)

// serialListener treats a serial device as a listener whose only client is
// whatever is attached to the line. Accept opens the port.
type serialListener struct {
	cfg    SerialConfig
	mu     sync.Mutex
	closed bool
}

func listenSerial(cfg SerialConfig) (*serialListener, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial transport needs a device")
	}
	return &serialListener{cfg: cfg}, nil
}

func (l *serialListener) Accept() (Conn, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, "", net.ErrClosed
	}

	mode := &serial.Mode{
		BaudRate: l.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(l.cfg.Device, mode)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open serial port %s: %w", l.cfg.Device, err)
	}
	return port, l.Addr(), nil
}

func (l *serialListener) Addr() string {
	return fmt.Sprintf("%s@%d", l.cfg.Device, l.cfg.BaudRate)
}

func (l *serialListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
