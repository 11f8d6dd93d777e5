// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	a := newTestServer(t, Config{})
	b := newTestServer(t, Config{})

	ha := reg.Register(a)
	hb := reg.Register(b)
	if ha == 0 || hb == 0 || ha == hb {
		t.Fatalf("handles = %d, %d; want distinct and non-zero", ha, hb)
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}

	if srv, ok := reg.Lookup(ha); !ok || srv != a {
		t.Errorf("Lookup(%d) = %p, %v", ha, srv, ok)
	}
	if _, ok := reg.Lookup(0); ok {
		t.Error("Lookup(0) succeeded")
	}

	if err := reg.Release(ha); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := a.Accept(); !errors.Is(err, ErrClosed) {
		t.Errorf("released server Accept err = %v, want ErrClosed", err)
	}
	if err := reg.Release(ha); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("double Release err = %v, want ErrUnknownHandle", err)
	}

	if err := reg.CloseAll(); err != nil {
		t.Errorf("CloseAll: %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len after CloseAll = %d", reg.Len())
	}
	if err := b.Accept(); !errors.Is(err, ErrClosed) {
		t.Errorf("Accept after CloseAll err = %v, want ErrClosed", err)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := NewRegistry()
	srv := newTestServer(t, Config{})

	var wg sync.WaitGroup
	handles := make(chan Handle, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles <- reg.Register(srv)
		}()
	}
	wg.Wait()
	close(handles)

	seen := make(map[Handle]bool)
	for h := range handles {
		if seen[h] {
			t.Fatalf("handle %d issued twice", h)
		}
		seen[h] = true
	}
	if reg.Len() != 100 {
		t.Errorf("Len = %d, want 100", reg.Len())
	}
}
