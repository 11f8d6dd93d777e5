// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/Thermoquad/fofbsim/pkg/fofbserver"
	"github.com/rs/zerolog"
)

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("gain 1\r\n\ndebug"))
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	want := []string{"gain 1\n", "\n", "debug\n"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestBuildLines(t *testing.T) {
	cmd := sendCmd
	t.Cleanup(func() {
		sendGain, sendCoefficients, sendPositions, sendRepeat = 0, nil, nil, 1
		cmd.Flags().Lookup("gain").Changed = false
	})

	if err := cmd.Flags().Set("gain", "0.5"); err != nil {
		t.Fatalf("Set gain: %v", err)
	}
	sendCoefficients = []float64{1, -0.25}
	sendPositions = []float64{3}
	sendRepeat = 2

	got := buildLines(cmd, []string{"debug", "exit\n"})
	want := []string{
		"gain 0.5\n",
		"coefficients 1 -0.25\n",
		"bpm_positions 3\n",
		"bpm_positions 3\n",
		"debug\n",
		"exit\n",
	}
	if strings.Join(got, "") != strings.Join(want, "") {
		t.Errorf("buildLines = %q, want %q", got, want)
	}
}

func TestOpenConnection_WebSocket(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Transport = string(fofbserver.TransportWebSocket)

	logger := zerolog.Nop()
	srvCfg := cfg.ServerConfig()
	srvCfg.Logger = &logger
	srvCfg.DebugOut = io.Discard
	srv, err := fofbserver.New(srvCfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	errc := make(chan error, 1)
	go func() { errc <- srv.Accept() }()

	conn, info, err := OpenConnection(cfg, "ws://"+srv.Addr()+cfg.Server.WebSocket.Path, false)
	if err != nil {
		t.Fatalf("OpenConnection: %v", err)
	}
	defer conn.Close()
	if !strings.HasPrefix(info, "WebSocket: ") {
		t.Errorf("info = %q", info)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Accept timed out")
	}

	io.WriteString(conn, fofb.PositionsLine([]float64{0.5}))
	if msg, err := srv.WaitData(); msg != fofb.MsgPositions || err != nil {
		t.Fatalf("WaitData = (%v, %v)", msg, err)
	}

	srv.WriteSetPoint(8)
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if v, err := fofb.ParseReply(line); err != nil || v != 8 {
		t.Errorf("reply = %d, %v; want 8", v, err)
	}
}

func TestOpenConnection_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Transport = "udp"
	if _, _, err := OpenConnection(cfg, "", false); err == nil {
		t.Error("unknown transport accepted")
	}

	if _, err := OpenWebSocketConnection("http://127.0.0.1:1/fofb", "", "", false); err == nil {
		t.Error("http scheme accepted")
	}
}
