// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/fofbsim/internal/config"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/Thermoquad/fofbsim/pkg/fofbserver"
	"github.com/rs/zerolog"
)

// Session event kinds
type eventKind int

const (
	eventListening eventKind = iota
	eventConnected
	eventMessage
	eventSetPoint
	eventFault
	eventSnapshot
)

// sessionEvent is reported by the session loop for every step it takes
type sessionEvent struct {
	kind     eventKind
	time     time.Time
	remote   string
	msgType  fofb.MsgType
	setPoint int32
	err      error
}

// sessionOptions are the loop settings shared by serve and monitor
type sessionOptions struct {
	once         bool   // stop after the first client leaves
	fixedReply   bool   // reply with replyValue instead of the corrector output
	replyValue   int32
	snapshotPath string // CBOR snapshot on every "debug"
	restorePath  string // CBOR snapshot loaded before the first accept
}

// session drives a Server: accept, wait for lines, reply on positions
type session struct {
	srv       *fofbserver.Server
	opts      sessionOptions
	log       zerolog.Logger
	corrector fofb.Corrector
	emit      func(sessionEvent)
}

// newSession creates the server described by cfg.
// debugOut receives the "debug" state dump.
func newSession(cfg config.Config, opts sessionOptions, logger zerolog.Logger, debugOut io.Writer, emit func(sessionEvent)) (*session, error) {
	if opts.snapshotPath == "" {
		opts.snapshotPath = cfg.Debug.Snapshot
	}

	s := &session{opts: opts, log: logger, emit: emit}

	srvCfg := cfg.ServerConfig()
	srvCfg.Logger = &logger
	srvCfg.DebugOut = debugOut
	if opts.snapshotPath != "" {
		srvCfg.OnDebug = s.writeSnapshot
	}

	srv, err := fofbserver.New(srvCfg)
	if err != nil {
		return nil, err
	}
	s.srv = srv

	if opts.restorePath != "" {
		snap, err := fofb.ReadSnapshotFile(opts.restorePath)
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("failed to read snapshot %s: %w", opts.restorePath, err)
		}
		if err := srv.Restore(snap); err != nil {
			srv.Close()
			return nil, err
		}
		logger.Info().Str("file", opts.restorePath).Msg("State restored")
	}

	return s, nil
}

// writeSnapshot runs with the server lock held
func (s *session) writeSnapshot(st *fofb.State) {
	err := fofb.WriteSnapshotFile(s.opts.snapshotPath, st)
	if err != nil {
		s.log.Error().Err(err).Str("file", s.opts.snapshotPath).Msg("Snapshot failed")
	} else {
		s.log.Debug().Str("file", s.opts.snapshotPath).Msg("Snapshot written")
	}
	s.report(sessionEvent{kind: eventSnapshot, err: err})
}

func (s *session) report(ev sessionEvent) {
	if s.emit == nil {
		return
	}
	ev.time = time.Now()
	s.emit(ev)
}

// run accepts clients until ctx is done, a client sends "exit", or the
// first client leaves in once mode
func (s *session) run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.srv.Close() })
	defer stop()

	for {
		s.report(sessionEvent{kind: eventListening, remote: s.srv.Addr()})
		if err := s.srv.Accept(); err != nil {
			if errors.Is(err, fofbserver.ErrClosed) {
				return nil
			}
			return err
		}
		s.report(sessionEvent{kind: eventConnected, remote: s.srv.RemoteAddr()})

		if exit := s.serveClient(); exit {
			s.log.Info().Msg("Client requested exit")
			return nil
		}
		if s.opts.once || ctx.Err() != nil {
			return nil
		}
	}
}

// serveClient handles one connection and reports whether the client sent
// "exit"
func (s *session) serveClient() bool {
	for {
		msgType, err := s.srv.WaitData()
		s.report(sessionEvent{kind: eventMessage, msgType: msgType, err: err})
		if err != nil {
			s.report(sessionEvent{kind: eventFault, err: err})
			return false
		}

		switch msgType {
		case fofb.MsgPositions:
			s.reply()
		case fofb.MsgClearAccumulator:
			s.corrector.Clear()
		case fofb.MsgDisconnected:
			return false
		case fofb.MsgExit:
			return true
		}
	}
}

func (s *session) reply() {
	sp := s.opts.replyValue
	if !s.opts.fixedReply {
		s.srv.WithState(func(st *fofb.State) {
			sp = s.corrector.Update(st)
		})
	}
	s.sendSetPoint(sp)
}

func (s *session) sendSetPoint(sp int32) {
	if err := s.srv.WriteSetPoint(sp); err != nil {
		s.report(sessionEvent{kind: eventFault, err: err})
		return
	}
	s.report(sessionEvent{kind: eventSetPoint, setPoint: sp})
}

// close stops listening
func (s *session) close() error {
	return s.srv.Close()
}
