// Package conn provides helpers around the TCP connections transfers run over.
package conn

import (
	"errors"
	"net"
	"time"
)

// Idle is a connection whose every read and write must make progress within
// Timeout. The deadline is pushed forward before each operation.
type Idle struct {
	net.Conn
	Timeout time.Duration
}

// WithIdleTimeout wraps the connection so that a stalled peer results in a
// timeout error. A timeout of zero or less returns the connection unchanged.
func WithIdleTimeout(c net.Conn, timeout time.Duration) net.Conn {
	if timeout <= 0 {
		return c
	}
	return &Idle{Conn: c, Timeout: timeout}
}

func (c *Idle) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.Timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *Idle) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.Timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// CloseWrite half-closes the underlying connection.
func (c *Idle) CloseWrite() error {
	return CloseWrite(c.Conn)
}

// CloseWrite shuts down the writing side of the connection, signalling end of
// stream to the peer while still allowing reads. Connections without half-close
// support are left untouched.
func CloseWrite(c net.Conn) error {
	cw, ok := c.(interface{ CloseWrite() error })
	if !ok {
		return nil
	}
	return cw.CloseWrite()
}

// IsClosed reports whether the error stems from using an already closed connection.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
