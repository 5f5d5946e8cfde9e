// File: client/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client is a thin blocking dialer used by tests to drive
// a TcpServer as a peer. It never touches a Channel or Poller — it is
// not part of the reactor core, just a convenience for exercising it.

package client

import (
	"fmt"
	"net"
	"time"

	"github.com/momentics/tcpreactor/pool"
)

// Client wraps a plain blocking net.Conn.
type Client struct {
	conn net.Conn
}

// Dial connects to addr with the given timeout.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes data in full, blocking until it is all written or an
// error occurs.
func (c *Client) Send(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// Recv reads up to len(buf) bytes, blocking until at least one byte
// arrives or an error occurs.
func (c *Client) Recv(buf []byte) (int, error) {
	return c.conn.Read(buf)
}

// RecvN blocks until exactly n bytes have been read, or an error
// occurs. Short-lived callers like this one share the process-wide
// default pool rather than each keeping a dedicated BufferPoolManager.
func (c *Client) RecvN(n int) ([]byte, error) {
	b := pool.DefaultPool(-1).Get(n, -1)
	defer b.Release()

	data := b.Bytes()
	read := 0
	for read < n {
		m, err := c.conn.Read(data[read:])
		if err != nil {
			return b.Copy()[:read], err
		}
		read += m
	}
	return b.Copy(), nil
}

// SetDeadline forwards to the underlying net.Conn.
func (c *Client) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
