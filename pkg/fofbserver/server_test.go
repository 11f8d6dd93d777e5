// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
)

// ============================================================
// Test Helpers
// ============================================================

var testWidths = fofb.FracWidths{Gain: 12, Coeffs: 16, BPM: 4}

const testTimeout = 5 * time.Second

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Widths == (fofb.FracWidths{}) {
		cfg.Widths = testWidths
	}
	if cfg.DebugOut == nil {
		cfg.DebugOut = io.Discard
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

// acceptAsync runs Accept in the background
func acceptAsync(srv *Server) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Accept() }()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out")
		return nil
	}
}

type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

// connectTCP attaches a TCP client to srv
func connectTCP(t *testing.T, srv *Server) *testClient {
	t.Helper()
	errc := acceptAsync(srv)
	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return &testClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(t *testing.T, text string) {
	t.Helper()
	if _, err := io.WriteString(c.conn, text); err != nil {
		t.Fatalf("client write: %v", err)
	}
}

func (c *testClient) readLine(t *testing.T) (string, error) {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	return c.reader.ReadString('\n')
}

func waitData(t *testing.T, srv *Server) fofb.MsgType {
	t.Helper()
	msg, err := srv.WaitData()
	if err != nil {
		t.Fatalf("WaitData: %v", err)
	}
	return msg
}

// ============================================================
// Lifecycle Tests
// ============================================================

func TestNew_InvalidWidths(t *testing.T) {
	for _, widths := range []fofb.FracWidths{
		{Gain: 32},
		{Coeffs: -1},
		{BPM: 40},
	} {
		if _, err := New(Config{Widths: widths}); !errors.Is(err, fofb.ErrInvalidFracWidth) {
			t.Errorf("New(%+v) err = %v, want ErrInvalidFracWidth", widths, err)
		}
	}
}

func TestNew_UnknownTransport(t *testing.T) {
	_, err := New(Config{Transport: "udp", Widths: testWidths})
	if !errors.Is(err, ErrConnectionFault) {
		t.Errorf("err = %v, want ErrConnectionFault", err)
	}
}

func TestServer_WaitDataWithoutClient(t *testing.T) {
	srv := newTestServer(t, Config{})

	done := make(chan fofb.MsgType, 1)
	go func() {
		msg, _ := srv.WaitData()
		done <- msg
	}()

	select {
	case msg := <-done:
		if msg != fofb.MsgDisconnected {
			t.Errorf("WaitData = %v, want DISCONNECTED", msg)
		}
	case <-time.After(testTimeout):
		t.Fatal("WaitData blocked without a client")
	}

	if err := srv.WriteSetPoint(1); err != nil {
		t.Errorf("WriteSetPoint without client: %v", err)
	}
}

func TestServer_AlreadyConnected(t *testing.T) {
	srv := newTestServer(t, Config{})
	connectTCP(t, srv)

	if err := srv.Accept(); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Accept err = %v, want ErrAlreadyConnected", err)
	}
	if !srv.Connected() || srv.RemoteAddr() == "" {
		t.Error("server lost its client after a refused Accept")
	}
}

func TestServer_Close(t *testing.T) {
	srv := newTestServer(t, Config{})
	client := connectTCP(t, srv)

	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := srv.Accept(); !errors.Is(err, ErrClosed) {
		t.Errorf("Accept after Close err = %v, want ErrClosed", err)
	}
	if _, err := client.readLine(t); err != io.EOF {
		t.Errorf("client read after Close err = %v, want EOF", err)
	}
}

func TestServer_CloseUnblocksAccept(t *testing.T) {
	srv := newTestServer(t, Config{})
	errc := acceptAsync(srv)

	// Give Accept a moment to block in the listener
	time.Sleep(50 * time.Millisecond)
	srv.Close()

	if err := waitErr(t, errc); !errors.Is(err, ErrClosed) {
		t.Errorf("Accept err = %v, want ErrClosed", err)
	}
}

// ============================================================
// Session Tests
// ============================================================

func TestServer_Session(t *testing.T) {
	srv := newTestServer(t, Config{})
	client := connectTCP(t, srv)

	client.send(t, "coefficients 1.0 2.0\n")
	if msg := waitData(t, srv); msg != fofb.MsgCoefficients {
		t.Fatalf("WaitData = %v, want COEFF_DATA", msg)
	}

	want := fixedpoint.ToLogicVector(fixedpoint.ToFixed(2.0, testWidths.Coeffs))
	var got fixedpoint.LogicVector
	srv.ReadCoefficient(1, &got)
	if got != want {
		t.Errorf("ReadCoefficient(1) = %s, want %s", got, want)
	}
	srv.ReadCoefficient(2, &got)
	if v, _ := got.Int32(); v != 0 {
		t.Errorf("ReadCoefficient(2) = %d, want 0", v)
	}

	client.send(t, "gain 0.5\r\n")
	if msg := waitData(t, srv); msg != fofb.MsgGain {
		t.Fatalf("WaitData = %v, want GAIN_DATA", msg)
	}
	if g := srv.ReadGain(); g != 2048 {
		t.Errorf("ReadGain = %d, want 2048", g)
	}

	client.send(t, "bpm_positions -1.5 3\nbpm_setpoints 0.25\n")
	if msg := waitData(t, srv); msg != fofb.MsgPositions {
		t.Fatalf("WaitData = %v, want BPMPOS_DATA", msg)
	}
	if msg := waitData(t, srv); msg != fofb.MsgSetPoints {
		t.Fatalf("WaitData = %v, want SETPOINT_DATA", msg)
	}

	pos, err := srv.PositionAt(0)
	if err != nil {
		t.Fatalf("PositionAt: %v", err)
	}
	if v, _ := pos.Int32(); v != -24 {
		t.Errorf("PositionAt(0) = %d, want -24", v)
	}
	sp, err := srv.SetPointAt(0)
	if err != nil {
		t.Fatalf("SetPointAt: %v", err)
	}
	if v, _ := sp.Int32(); v != 4 {
		t.Errorf("SetPointAt(0) = %d, want 4", v)
	}

	if err := srv.WriteSetPoint(-42); err != nil {
		t.Fatalf("WriteSetPoint: %v", err)
	}
	line, err := client.readLine(t)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if line != "-42\n" {
		t.Errorf("reply = %q, want %q", line, "-42\n")
	}

	client.send(t, "foobar\nclear_acc\nexit\n")
	for _, want := range []fofb.MsgType{fofb.MsgParseError, fofb.MsgClearAccumulator, fofb.MsgExit} {
		if msg := waitData(t, srv); msg != want {
			t.Errorf("WaitData = %v, want %v", msg, want)
		}
	}
}

func TestServer_DisconnectCommand(t *testing.T) {
	srv := newTestServer(t, Config{})
	client := connectTCP(t, srv)

	client.send(t, "disconnect\n")
	if msg := waitData(t, srv); msg != fofb.MsgDisconnected {
		t.Fatalf("WaitData = %v, want DISCONNECTED", msg)
	}
	if srv.Connected() {
		t.Error("Connected after disconnect")
	}

	// Detached: no blocking, no writes
	if msg := waitData(t, srv); msg != fofb.MsgDisconnected {
		t.Errorf("WaitData after disconnect = %v, want DISCONNECTED", msg)
	}
	if err := srv.WriteSetPoint(7); err != nil {
		t.Errorf("WriteSetPoint after disconnect: %v", err)
	}
	if _, err := client.readLine(t); err != io.EOF {
		t.Errorf("client read err = %v, want EOF", err)
	}
}

func TestServer_ClientCloseAndReaccept(t *testing.T) {
	srv := newTestServer(t, Config{})
	client := connectTCP(t, srv)

	// Unterminated fragment before end of stream is still a line
	client.send(t, "gain 1.5")
	client.conn.Close()

	if msg := waitData(t, srv); msg != fofb.MsgGain {
		t.Fatalf("WaitData = %v, want GAIN_DATA", msg)
	}
	if g := srv.ReadGain(); g != 6144 {
		t.Errorf("ReadGain = %d, want 6144", g)
	}
	if msg := waitData(t, srv); msg != fofb.MsgDisconnected {
		t.Fatalf("WaitData at EOF = %v, want DISCONNECTED", msg)
	}
	if srv.Connected() {
		t.Fatal("Connected after end of stream")
	}

	// State survives the connection
	second := connectTCP(t, srv)
	second.send(t, "bpm_positions 1\n")
	if msg := waitData(t, srv); msg != fofb.MsgPositions {
		t.Errorf("WaitData = %v, want BPMPOS_DATA", msg)
	}
	if g := srv.ReadGain(); g != 6144 {
		t.Errorf("ReadGain after reconnect = %d, want 6144", g)
	}
}

func TestServer_DisconnectUnblocksWaitData(t *testing.T) {
	srv := newTestServer(t, Config{})
	connectTCP(t, srv)

	type result struct {
		msg fofb.MsgType
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := srv.WaitData()
		done <- result{msg, err}
	}()

	time.Sleep(50 * time.Millisecond)
	srv.Disconnect()

	select {
	case r := <-done:
		if r.msg != fofb.MsgDisconnected || r.err != nil {
			t.Errorf("WaitData = (%v, %v), want (DISCONNECTED, nil)", r.msg, r.err)
		}
	case <-time.After(testTimeout):
		t.Fatal("WaitData still blocked after Disconnect")
	}
}

func TestServer_Debug(t *testing.T) {
	var out bytes.Buffer
	var hookGain int32
	srv := newTestServer(t, Config{
		DebugOut: &out,
		OnDebug:  func(st *fofb.State) { hookGain = st.Gain },
	})
	client := connectTCP(t, srv)

	client.send(t, "gain 1\ndebug\n")
	waitData(t, srv)
	if msg := waitData(t, srv); msg != fofb.MsgDebug {
		t.Fatalf("WaitData = %v, want DEBUG", msg)
	}

	dump := out.String()
	for _, want := range []string{"Gain Fraction: 12", "Gain: 4096", "Coefficients: "} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q", want)
		}
	}
	if hookGain != 4096 {
		t.Errorf("OnDebug saw gain %d, want 4096", hookGain)
	}
}

func TestServer_SnapshotRestore(t *testing.T) {
	srv := newTestServer(t, Config{})
	srv.HandleLine("coefficients 3 4")
	snap := srv.Snapshot()

	other := newTestServer(t, Config{})
	if err := other.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, _ := other.CoefficientAt(1)
	want, _ := srv.CoefficientAt(1)
	if got != want {
		t.Errorf("restored coefficient = %s, want %s", got, want)
	}
}

// ============================================================
// Accessor Tests
// ============================================================

func TestAccessors_OutOfRange(t *testing.T) {
	srv := newTestServer(t, Config{})
	srv.HandleLine("coefficients 1 1 1")

	sentinel := fixedpoint.LogicVector{}
	for i := range sentinel {
		sentinel[i] = fixedpoint.LogicU
	}

	readers := map[string]func(int, *fixedpoint.LogicVector){
		"coefficient": srv.ReadCoefficient,
		"setpoint":    srv.ReadSetPoint,
		"position":    srv.ReadPosition,
	}
	strict := map[string]func(int) (fixedpoint.LogicVector, error){
		"coefficient": srv.CoefficientAt,
		"setpoint":    srv.SetPointAt,
		"position":    srv.PositionAt,
	}

	for name, read := range readers {
		t.Run(name, func(t *testing.T) {
			for _, index := range []int{-1, fofb.NumChannels, 1 << 20} {
				out := sentinel
				read(index, &out)
				if out != sentinel {
					t.Errorf("index %d modified the output", index)
				}
				if _, err := strict[name](index); !errors.Is(err, ErrIndexOutOfRange) {
					t.Errorf("index %d err = %v, want ErrIndexOutOfRange", index, err)
				}
			}

			out := sentinel
			read(fofb.NumChannels-1, &out)
			if _, ok := out.Int32(); !ok {
				t.Error("last channel not written as a driven vector")
			}
			read(0, nil)
		})
	}
}

func TestAccessors_ConcurrentWithWaitData(t *testing.T) {
	srv := newTestServer(t, Config{})
	client := connectTCP(t, srv)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if msg, err := srv.WaitData(); msg != fofb.MsgPositions || err != nil {
				t.Errorf("WaitData = (%v, %v), want BPMPOS_DATA", msg, err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		client.send(t, "bpm_positions 1 2 3\n")
		var out fixedpoint.LogicVector
		srv.ReadPosition(i, &out)
		srv.ReadGain()
	}
	wg.Wait()
}

// ============================================================
// Transport Tests
// ============================================================

func TestParseTransport(t *testing.T) {
	tests := []struct {
		in      string
		want    Transport
		wantErr bool
	}{
		{"", TransportTCP, false},
		{"tcp", TransportTCP, false},
		{"TCP", TransportTCP, false},
		{"ws", TransportWebSocket, false},
		{"websocket", TransportWebSocket, false},
		{" serial ", TransportSerial, false},
		{"udp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTransport(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTransport) {
					t.Errorf("err = %v, want ErrUnknownTransport", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseTransport(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestSerial_OpenFailure(t *testing.T) {
	if _, err := New(Config{Transport: TransportSerial, Widths: testWidths}); err == nil {
		t.Fatal("serial transport without a device succeeded")
	}

	srv := newTestServer(t, Config{
		Transport: TransportSerial,
		Serial:    SerialConfig{Device: "/dev/fofbsim-does-not-exist"},
	})
	if got := srv.Addr(); got != "/dev/fofbsim-does-not-exist@115200" {
		t.Errorf("Addr = %q", got)
	}
	if err := srv.Accept(); !errors.Is(err, ErrConnectionFault) {
		t.Errorf("Accept err = %v, want ErrConnectionFault", err)
	}
	if srv.Connected() {
		t.Error("Connected after a failed open")
	}
}
