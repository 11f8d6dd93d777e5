// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofbserver

import (
	"bufio"
	"io"
)

// Conn is a byte stream to the client, independent of the transport
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// halfCloser is implemented by *net.TCPConn
type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// lineConn reads and writes newline terminated lines on a Conn
type lineConn struct {
	conn   Conn
	reader *bufio.Reader
	remote string
}

func newLineConn(conn Conn, remote string) *lineConn {
	return &lineConn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 64*1024),
		remote: remote,
	}
}

// readLine blocks until a full line is available.
// An unterminated fragment before end of stream is returned as a line; the
// following call reports io.EOF.
func (c *lineConn) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

// writeLine writes text followed by a newline in a single write
func (c *lineConn) writeLine(text string) error {
	buf := make([]byte, 0, len(text)+1)
	buf = append(buf, text...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

// shutdown shuts down both directions and releases the connection
func (c *lineConn) shutdown() error {
	if hc, ok := c.conn.(halfCloser); ok {
		hc.CloseRead()
		hc.CloseWrite()
	}
	return c.conn.Close()
}
