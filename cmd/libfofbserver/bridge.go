// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package main

import (
	"github.com/Thermoquad/fofbsim/internal/logging"
	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/Thermoquad/fofbsim/pkg/fofbserver"
	"github.com/rs/zerolog"
)

// bridge holds the servers handed to the simulator. The exported C functions
// are thin wrappers around its methods.
type bridge struct {
	registry *fofbserver.Registry
	log      zerolog.Logger
}

func newBridge(logger zerolog.Logger) *bridge {
	return &bridge{
		registry: fofbserver.NewRegistry(),
		log:      logger,
	}
}

var lib = newBridge(logging.Configure(logging.DefaultOptions()))

// create listens on 127.0.0.1:port and returns the handle, or 0 on failure
func (b *bridge) create(port uint32, gainFW, coeffsFW, bpmFW int32) uint64 {
	cfg := fofbserver.Config{
		Transport: fofbserver.TransportTCP,
		Address:   fofbserver.DefaultAddress,
		Port:      uint16(port),
		Widths: fofb.FracWidths{
			Gain:   int(gainFW),
			Coeffs: int(coeffsFW),
			BPM:    int(bpmFW),
		},
		Logger: &b.log,
	}

	srv, err := fofbserver.New(cfg)
	if err != nil {
		b.log.Error().Err(err).Uint32("port", port).Msg("Failed to create server")
		return 0
	}
	return uint64(b.registry.Register(srv))
}

func (b *bridge) lookup(h uint64, op string) (*fofbserver.Server, bool) {
	srv, ok := b.registry.Lookup(fofbserver.Handle(h))
	if !ok {
		b.log.Warn().Uint64("handle", h).Str("op", op).Msg("Unknown handle")
	}
	return srv, ok
}

func (b *bridge) waitCon(h uint64) {
	srv, ok := b.lookup(h, "wait_con")
	if !ok {
		return
	}
	if err := srv.Accept(); err != nil {
		b.log.Error().Err(err).Msg("Accept failed")
	}
}

func (b *bridge) waitData(h uint64) fofb.MsgType {
	srv, ok := b.lookup(h, "wait_data")
	if !ok {
		return fofb.MsgDisconnected
	}
	msgType, err := srv.WaitData()
	if err != nil {
		b.log.Error().Err(err).Msg("Read failed")
	}
	return msgType
}

// readVector writes channel index of the selected array into out
func (b *bridge) readVector(h uint64, op string, index uint32, out *[fixedpoint.VectorWidth]byte,
	read func(*fofbserver.Server, int, *fixedpoint.LogicVector)) {
	srv, ok := b.lookup(h, op)
	if !ok || out == nil || index >= fofb.NumChannels {
		return
	}
	var vec fixedpoint.LogicVector
	read(srv, int(index), &vec)
	*out = vec.Bytes()
}

func (b *bridge) readGain(h uint64) (int32, bool) {
	srv, ok := b.lookup(h, "read_gain")
	if !ok {
		return 0, false
	}
	return srv.ReadGain(), true
}

func (b *bridge) writeSetPoint(h uint64, value int32) {
	srv, ok := b.lookup(h, "write_sp")
	if !ok {
		return
	}
	if err := srv.WriteSetPoint(value); err != nil {
		b.log.Error().Err(err).Msg("Write failed")
	}
}

func (b *bridge) release(h uint64) {
	if err := b.registry.Release(fofbserver.Handle(h)); err != nil {
		b.log.Debug().Err(err).Uint64("handle", h).Msg("Release")
	}
}
