// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"errors"
	"sync"
)

// Handle identifies a Server across a foreign function boundary.
// The zero Handle is never issued.
type Handle uint64

// Registry owns the servers handed out as handles. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	next    Handle
	servers map[Handle]*Server
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{servers: make(map[Handle]*Server)}
}

// Register takes ownership of srv and returns its handle
func (r *Registry) Register(srv *Server) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.servers[r.next] = srv
	return r.next
}

// Lookup returns the server for h
func (r *Registry) Lookup(h Handle) (*Server, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	srv, ok := r.servers[h]
	return srv, ok
}

// Release removes h and closes its server
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	srv, ok := r.servers[h]
	delete(r.servers, h)
	r.mu.Unlock()

	if !ok {
		return ErrUnknownHandle
	}
	return srv.Close()
}

// Len returns the number of live handles
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.servers)
}

// CloseAll releases every handle
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	servers := r.servers
	r.servers = make(map[Handle]*Server)
	r.mu.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
