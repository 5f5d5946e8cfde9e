// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/tcpreactor/buffer"
	"github.com/momentics/tcpreactor/client"
	"github.com/momentics/tcpreactor/server"
	"github.com/momentics/tcpreactor/tcp"
)

// waitForAddr polls until the server has bound its listen socket, or
// fails the test after a generous timeout. Start() does not return
// until Stop is called, so the address can only be observed this way.
func waitForAddr(t *testing.T, s *server.TcpServer) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := s.Addr(); a != nil {
			return a.String()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server did not bind a listen address in time")
	return ""
}

func startEchoServer(t *testing.T) (*server.TcpServer, string) {
	t.Helper()
	cfg := server.Config{
		ListenAddr:          "127.0.0.1:0",
		NumEventLoopThreads: 1,
		HighWaterMark:       1 << 20,
		ReuseAddr:           true,
		NUMAPreferred:       -1,
	}
	srv, err := server.NewTcpServer(cfg,
		server.WithMessageCallback(func(conn *tcp.Connection, in *buffer.Buffer, _ time.Time) {
			conn.Send([]byte(in.RetrieveAllString()))
		}),
	)
	if err != nil {
		t.Fatalf("NewTcpServer: %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			t.Errorf("Start: %v", err)
		}
	}()

	addr := waitForAddr(t, srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, addr
}

func TestEchoRoundTrip(t *testing.T) {
	_, addr := startEchoServer(t)

	c, err := client.Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Send([]byte("ping\n")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	got, err := c.RecvN(5)
	if err != nil {
		t.Fatalf("RecvN: %v", err)
	}
	if string(got) != "ping\n" {
		t.Fatalf("echoed %q, want %q", got, "ping\n")
	}
}

func TestMultipleConnectionsEachEchoIndependently(t *testing.T) {
	_, addr := startEchoServer(t)

	clients := make([]*client.Client, 3)
	for i := range clients {
		c, err := client.Dial(addr, time.Second)
		if err != nil {
			t.Fatalf("Dial %d: %v", i, err)
		}
		clients[i] = c
		defer c.Close()
	}

	for i, c := range clients {
		msg := []byte{'a' + byte(i), '\n'}
		if err := c.Send(msg); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	for i, c := range clients {
		_ = c.SetDeadline(time.Now().Add(2 * time.Second))
		got, err := c.RecvN(2)
		if err != nil {
			t.Fatalf("RecvN %d: %v", i, err)
		}
		want := []byte{'a' + byte(i), '\n'}
		if string(got) != string(want) {
			t.Fatalf("client %d echoed %q, want %q", i, got, want)
		}
	}
}

func TestStopClosesListenerAndConnections(t *testing.T) {
	srv, addr := startEchoServer(t)

	c, err := client.Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := c.Recv(buf); err == nil {
		t.Fatalf("expected the peer connection to be closed after Stop")
	}
}

func TestMetricsCountBytesAndConnections(t *testing.T) {
	srv, addr := startEchoServer(t)

	c, err := client.Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Send([]byte("hello\n")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.RecvN(6); err != nil {
		t.Fatalf("RecvN: %v", err)
	}

	counter := func(snap map[string]any, key string) int64 {
		v, _ := snap[key].(int64)
		return v
	}

	deadline := time.Now().Add(2 * time.Second)
	var snap map[string]any
	for time.Now().Before(deadline) {
		snap = srv.Control().Metrics.GetSnapshot()
		if counter(snap, "bytes.read") > 0 && counter(snap, "bytes.written") > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := counter(snap, "connections.total"); got < 1 {
		t.Fatalf("connections.total = %d, want >= 1", got)
	}
	if got := counter(snap, "bytes.read"); got < 6 {
		t.Fatalf("bytes.read = %d, want >= 6", got)
	}
	if got := counter(snap, "bytes.written"); got < 6 {
		t.Fatalf("bytes.written = %d, want >= 6", got)
	}
}
