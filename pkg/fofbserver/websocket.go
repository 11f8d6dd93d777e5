// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"crypto/subtle"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsListener serves a websocket endpoint and queues at most one pending
// client for Accept. Further clients are refused while one is pending.
type wsListener struct {
	ln       net.Listener
	srv      *http.Server
	cfg      WebSocketConfig
	upgrader websocket.Upgrader
	pending  chan *wsConn
	done     chan struct{}
	once     sync.Once
}

func listenWebSocket(addr string, cfg WebSocketConfig) (*wsListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &wsListener{
		ln:  ln,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 4096,
			// Simulation peers are local tools, not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pending: make(chan *wsConn, 1),
		done:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, l.handle)
	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go l.srv.Serve(ln)

	return l, nil
}

func (l *wsListener) authorized(r *http.Request) bool {
	if l.cfg.Username == "" || l.cfg.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(l.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(l.cfg.Password)) == 1
	return userOK && passOK
}

func (l *wsListener) handle(w http.ResponseWriter, r *http.Request) {
	if !l.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="fofbsim"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		return
	}

	wc := &wsConn{conn: conn, remote: r.RemoteAddr}
	select {
	case l.pending <- wc:
	default:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "a client is already queued"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

func (l *wsListener) Accept() (Conn, string, error) {
	select {
	case <-l.done:
		return nil, "", net.ErrClosed
	default:
	}

	select {
	case wc := <-l.pending:
		return wc, wc.remote, nil
	case <-l.done:
		return nil, "", net.ErrClosed
	}
}

func (l *wsListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *wsListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.srv.Close()
		select {
		case wc := <-l.pending:
			wc.Close()
		default:
		}
	})
	return err
}

// wsConn exposes a websocket as a byte stream.
// Text and binary messages are concatenated; writes are sent as text
// messages.
type wsConn struct {
	conn      *websocket.Conn
	remote    string
	buf       []byte
	bufOffset int
	closed    bool // Track if connection has failed/closed
}

func (w *wsConn) Read(p []byte) (int, error) {
	if w.closed {
		return 0, io.EOF
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		if len(data) == 0 {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal closure frame and closes the socket
func (w *wsConn) Close() error {
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}
