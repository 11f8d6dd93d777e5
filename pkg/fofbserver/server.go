// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fofbserver is the session a simulation host drives: it listens for
// one FOFB client, reads protocol lines on request, keeps the decoded state
// and writes set-points back.
//
// Every operation blocks the caller until it completes. A typical host loop:
//
//	srv, err := fofbserver.New(cfg)
//	defer srv.Close()
//	srv.Accept()
//	for {
//		msg, err := srv.WaitData()
//		switch msg {
//		case fofb.MsgPositions:
//			srv.ReadPosition(i, &vec)
//		...
//		}
//		srv.WriteSetPoint(sp)
//	}
package fofbserver

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/rs/zerolog"
)

// Server owns the listener, the decoded state and at most one client
// connection.
//
// mu guards state and conn. ioMu serializes the blocking calls (Accept and
// the read in WaitData) without holding mu, so accessors, WriteSetPoint and
// Disconnect can run from other goroutines while a read is pending.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	listener Listener

	ioMu sync.Mutex

	mu     sync.Mutex
	state  *fofb.State
	conn   *lineConn
	closed bool
}

// New validates the fractional widths and starts listening
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	state, err := fofb.NewState(cfg.Widths)
	if err != nil {
		return nil, err
	}

	listener, err := Listen(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: listen: %v", ErrConnectionFault, err)
	}

	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("transport", string(cfg.Transport)).Logger(),
		listener: listener,
		state:    state,
	}
	s.log.Info().Str("addr", listener.Addr()).
		Int("gain_frac", cfg.Widths.Gain).
		Int("coeffs_frac", cfg.Widths.Coeffs).
		Int("bpm_frac", cfg.Widths.BPM).
		Msg("Listening")
	return s, nil
}

// Addr returns the address the server is reachable at
func (s *Server) Addr() string {
	return s.listener.Addr()
}

// Widths returns the fractional widths of the session
func (s *Server) Widths() fofb.FracWidths {
	return s.cfg.Widths
}

// Accept blocks until a client connects
func (s *Server) Accept() error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.conn != nil:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	conn, remote, err := s.listener.Accept()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if conn != nil {
			conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("%w: accept: %v", ErrConnectionFault, err)
	}

	s.conn = newLineConn(conn, remote)
	s.log.Info().Str("remote", remote).Msg("Connected")
	return nil
}

// Connected reports whether a client is attached
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// RemoteAddr describes the attached client, or "" when disconnected
func (s *Server) RemoteAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.remote
}

// WaitData blocks until the client sends a line, then parses it.
//
// Without a client it returns MsgDisconnected immediately. End of stream
// detaches the client and returns MsgDisconnected with a nil error. Read
// failures also detach it and return MsgDisconnected with an error wrapping
// ErrConnectionFault.
func (s *Server) WaitData() (fofb.MsgType, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fofb.MsgDisconnected, nil
	}

	line, err := conn.readLine()
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conn != conn {
			// Disconnected or closed while the read was pending
			return fofb.MsgDisconnected, nil
		}
		s.releaseLocked()
		if errors.Is(err, io.EOF) {
			s.log.Info().Str("remote", conn.remote).Msg("Client closed the connection")
			return fofb.MsgDisconnected, nil
		}
		s.log.Error().Err(err).Str("remote", conn.remote).Msg("Read failed")
		return fofb.MsgDisconnected, fmt.Errorf("%w: read: %v", ErrConnectionFault, err)
	}

	return s.HandleLine(line), nil
}

// HandleLine parses one protocol line against the session state and performs
// the session side effects: "debug" dumps the state, "disconnect" drops the
// client.
func (s *Server) HandleLine(line string) fofb.MsgType {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgType := fofb.ParseLine(s.state, line)
	switch msgType {
	case fofb.MsgDebug:
		if err := fofb.FormatState(s.cfg.DebugOut, s.state); err != nil {
			s.log.Warn().Err(err).Msg("State dump failed")
		}
		if s.cfg.OnDebug != nil {
			s.cfg.OnDebug(s.state)
		}
	case fofb.MsgDisconnected:
		s.disconnectLocked()
	case fofb.MsgParseError:
		s.log.Debug().Int("len", len(line)).Msg("Parse error")
	}

	s.log.Trace().Stringer("msg_type", msgType).Msg("Line handled")
	return msgType
}

// Disconnect shuts down and releases the client connection, if any
func (s *Server) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

func (s *Server) disconnectLocked() {
	if s.conn == nil {
		return
	}
	s.log.Info().Str("remote", s.conn.remote).Msg("Disconnecting")
	s.releaseLocked()
}

func (s *Server) releaseLocked() {
	if err := s.conn.shutdown(); err != nil {
		s.log.Debug().Err(err).Msg("Shutdown")
	}
	s.conn = nil
}

// Close disconnects the client and stops listening. Close is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.disconnectLocked()
	s.log.Info().Msg("Closed")
	return s.listener.Close()
}

// Snapshot copies the current state
func (s *Server) Snapshot() fofb.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Restore loads the values of a snapshot taken with the same widths
func (s *Server) Restore(snap fofb.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Restore(snap)
}

// WithState calls fn with the state while holding the server lock.
// fn must not retain st or call back into the Server.
func (s *Server) WithState(fn func(st *fofb.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}
