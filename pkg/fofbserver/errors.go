// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import "errors"

var (
	// ErrConnectionFault wraps I/O failures on the listener or the client
	// connection. The connection is released; the server can accept again.
	ErrConnectionFault  = errors.New("fofbserver: connection fault")
	ErrAlreadyConnected = errors.New("fofbserver: a client is already connected")
	ErrClosed           = errors.New("fofbserver: server closed")
	ErrIndexOutOfRange  = errors.New("fofbserver: channel index out of range")
	ErrUnknownHandle    = errors.New("fofbserver: unknown handle")
)
