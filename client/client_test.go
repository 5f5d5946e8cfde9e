// File: client/client_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client_test

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/tcpreactor/client"
)

func startEchoListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 256)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						if _, werr := c.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestDialSendRecv(t *testing.T) {
	addr := startEchoListener(t)

	c, err := client.Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Send([]byte("abc")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = c.SetDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 8)
	n, err := c.Recv(buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("Recv() = %q, want %q", buf[:n], "abc")
	}
}

func TestRecvNBlocksUntilExactCount(t *testing.T) {
	addr := startEchoListener(t)

	c, err := client.Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Send([]byte("hello world")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = c.SetDeadline(time.Now().Add(time.Second))
	got, err := c.RecvN(11)
	if err != nil {
		t.Fatalf("RecvN: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("RecvN() = %q, want %q", got, "hello world")
	}
}

func TestDialToClosedPortFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := client.Dial(addr, 500*time.Millisecond); err == nil {
		t.Fatalf("expected Dial to a closed port to fail")
	}
}
