// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fofb implements the FOFB co-simulation line protocol.
//
// Clients drive a simulated fast orbit feedback processing core by sending
// newline terminated ASCII commands (inverse response matrix coefficients,
// BPM set-points and positions, loop gain). This package tokenizes and
// dispatches those lines, converts every value to the fixed point format of
// the gateware, and keeps the decoded state.
package fofb

// NumChannels is the number of coefficient / BPM channels in the state arrays
const NumChannels = 512

// Protocol verbs
const (
	VerbCoefficients = "coefficients"
	VerbSetPoints    = "bpm_setpoints"
	VerbPositions    = "bpm_positions"
	VerbGain         = "gain"
	VerbClearAcc     = "clear_acc"
	VerbDebug        = "debug"
	VerbDisconnect   = "disconnect"
	VerbExit         = "exit"
)

// MsgType classifies a received protocol line.
// The ordinals match t_fofb_server_msg_type on the VHDL side.
type MsgType int32

const (
	MsgCoefficients MsgType = iota
	MsgSetPoints
	MsgPositions
	MsgGain
	MsgClearAccumulator
	MsgDebug
	MsgDisconnected
	MsgParseError
	MsgExit
)

// numMsgTypes is the number of MsgType values
const numMsgTypes = int(MsgExit) + 1
