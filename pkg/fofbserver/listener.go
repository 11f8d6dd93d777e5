// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"fmt"
	"net"
	"strconv"
)

// Listener hands out client connections one at a time
type Listener interface {
	// Accept blocks until a client connects and returns the connection and
	// a description of the peer
	Accept() (Conn, string, error)
	// Addr describes where the listener is reachable
	Addr() string
	Close() error
}

// Listen creates the listener for cfg.Transport
func Listen(cfg Config) (Listener, error) {
	cfg = cfg.withDefaults()
	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(int(cfg.Port)))

	switch cfg.Transport {
	case TransportTCP:
		return listenTCP(addr)
	case TransportWebSocket:
		return listenWebSocket(addr, cfg.WebSocket)
	case TransportSerial:
		return listenSerial(cfg.Serial)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}

// tcpListener accepts plain TCP clients
type tcpListener struct {
	ln net.Listener
}

func listenTCP(addr string) (*tcpListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{ln: ln}, nil
}

func (l *tcpListener) Accept() (Conn, string, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, "", err
	}
	// Set-point replies are tiny and latency bound
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return conn, conn.RemoteAddr().String(), nil
}

func (l *tcpListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}
