// File: tcp/connection_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/tcpreactor/buffer"
	"github.com/momentics/tcpreactor/internal/iomux"
	"github.com/momentics/tcpreactor/pool"
)

// socketPair returns two connected, stream-oriented fds: ours (made
// non-blocking, as Acceptor would deliver it) and a peer fd the test
// drives directly with blocking reads/writes.
func socketPair(t *testing.T) (ours, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newTestConnection(t *testing.T, loop *iomux.EventLoop, fd int) *Connection {
	t.Helper()
	bp := pool.NewBufferPoolManager().GetPool(-1)
	var local, remote net.Addr = &net.UnixAddr{Name: "local"}, &net.UnixAddr{Name: "remote"}
	return NewConnection(loop, "test-conn-1", fd, local, remote, bp, -1)
}

func newTestEventLoop(t *testing.T) *iomux.EventLoop {
	t.Helper()
	l := iomux.NewEventLoop()
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestConnectEstablishedTransitionsStateAndFiresCallback(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, _ := socketPair(t)
	c := newTestConnection(t, loop, fd)

	var fired bool
	c.SetConnectionCallback(func(conn *Connection) { fired = conn.Connected() })

	c.ConnectEstablished()

	if c.State() != StateConnected {
		t.Fatalf("State() = %v, want %v", c.State(), StateConnected)
	}
	if !fired {
		t.Fatalf("connection callback did not observe Connected state")
	}
}

func TestHandleReadDeliversDataToMessageCallback(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, peer := socketPair(t)
	c := newTestConnection(t, loop, fd)
	c.ConnectEstablished()

	var got string
	c.SetMessageCallback(func(conn *Connection, in *buffer.Buffer, _ time.Time) {
		got = in.RetrieveAllString()
	})

	if _, err := unix.Write(peer, []byte("hello reactor")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	c.handleRead(time.Now())

	if got != "hello reactor" {
		t.Fatalf("message callback received %q, want %q", got, "hello reactor")
	}
}

func TestHandleReadEOFTriggersClose(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, peer := socketPair(t)
	c := newTestConnection(t, loop, fd)
	c.ConnectEstablished()

	closed := false
	c.SetCloseCallback(func(*Connection) { closed = true })

	_ = unix.Close(peer)
	time.Sleep(10 * time.Millisecond)

	c.handleRead(time.Now())

	if !closed {
		t.Fatalf("close callback did not fire after peer closed its side")
	}
	if c.State() != StateDisconnected {
		t.Fatalf("State() = %v, want %v after EOF", c.State(), StateDisconnected)
	}
}

func TestSendOnLoopThreadWritesDirectly(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, peer := socketPair(t)
	c := newTestConnection(t, loop, fd)
	c.ConnectEstablished()

	c.Send([]byte("ping"))

	buf := make([]byte, 16)
	_ = unix.SetNonblock(peer, false)
	n, err := unix.Read(peer, buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("peer received %q, want %q", buf[:n], "ping")
	}
}

func TestSendDropsOnDisconnectedConnection(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, peer := socketPair(t)
	c := newTestConnection(t, loop, fd)
	c.ConnectEstablished()
	c.handleClose()

	c.Send([]byte("should not arrive"))

	_ = unix.SetNonblock(peer, true)
	buf := make([]byte, 16)
	_, err := unix.Read(peer, buf)
	if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		t.Fatalf("peer read after dropped send: err = %v, want EAGAIN", err)
	}
}

func TestConnectDestroyedAfterHandleCloseIsNoop(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, _ := socketPair(t)
	c := newTestConnection(t, loop, fd)
	c.ConnectEstablished()

	var fires int
	c.SetConnectionCallback(func(*Connection) { fires++ })

	c.handleClose()
	if c.State() != StateDisconnected {
		t.Fatalf("State() = %v after handleClose, want %v", c.State(), StateDisconnected)
	}
	firesAfterClose := fires

	c.ConnectDestroyed()
	c.ConnectDestroyed()

	if fires != firesAfterClose {
		t.Fatalf("ConnectDestroyed after handleClose fired the connection callback again: %d calls, want %d", fires, firesAfterClose)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("State() = %v after ConnectDestroyed, want %v", c.State(), StateDisconnected)
	}
}

func TestShutdownFlushesQueuedDataBeforeHalfClose(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, peer := socketPair(t)
	c := newTestConnection(t, loop, fd)
	c.ConnectEstablished()

	// Force the direct-write fast path to skip: queue through the
	// output buffer so Shutdown races against a non-empty write queue.
	c.channel.EnableWriting()
	payload := make([]byte, 64<<10)
	for i := range payload {
		payload[i] = byte(i)
	}
	c.sendInLoop(payload)

	c.Shutdown()
	if c.State() != StateDisconnecting {
		t.Fatalf("State() = %v immediately after Shutdown, want %v", c.State(), StateDisconnecting)
	}

	// Drain the output buffer on the loop thread the way the real event
	// loop would, via repeated handleWrite calls, until it empties and
	// shutdownInLoop's deferred half-close finally runs.
	_ = unix.SetNonblock(peer, false)
	got := make([]byte, 0, len(payload))
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for len(got) < len(payload) {
			n, err := unix.Read(peer, buf)
			if n > 0 {
				got = append(got, buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for c.output.ReadableBytes() > 0 && time.Now().Before(deadline) {
		c.handleWrite()
		time.Sleep(time.Millisecond)
	}
	<-done

	if len(got) != len(payload) {
		t.Fatalf("peer observed %d bytes before shutdown, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], payload[i])
		}
	}
}

func TestHighWaterMarkFiresOnUpwardCrossing(t *testing.T) {
	loop := newTestEventLoop(t)
	fd, _ := socketPair(t)
	c := newTestConnection(t, loop, fd)
	c.ConnectEstablished()

	var crossed int
	c.SetHighWaterMarkCallback(func(conn *Connection, currentOutputSize int) {
		crossed = currentOutputSize
	}, 8)

	// Force the direct-write path off by enabling writing first (sendInLoop
	// writes directly only while the channel is not already writing), and
	// reason purely about the buffered-residual accounting: append enough
	// to cross 8 bytes via two sends.
	c.channel.EnableWriting()
	c.sendInLoop(make([]byte, 5))
	c.sendInLoop(make([]byte, 5))

	if crossed < 8 {
		t.Fatalf("high water mark callback fired with size %d, want >= 8", crossed)
	}
}
