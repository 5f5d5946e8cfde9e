// File: tcp/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection is the per-connection state machine: one connected socket,
// one Channel, bound to exactly one worker loop for its entire life,
// driving the input/output Buffer pair through the five user callbacks.

package tcp

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/buffer"
	"github.com/momentics/tcpreactor/internal/iomux"
	"github.com/momentics/tcpreactor/internal/logging"
	"github.com/momentics/tcpreactor/netutil"
)

// State is a Connection's position in its connect/disconnect state
// machine.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is one accepted, connected socket bound to a single
// worker EventLoop. Send, Shutdown, StartRead and StopRead are safe
// from any goroutine (they hand their work to the loop via RunInLoop);
// its other mutating methods must only be invoked on that loop.
type Connection struct {
	loop *iomux.EventLoop
	name string

	fd      int
	channel *iomux.Channel

	localAddr net.Addr
	peerAddr  net.Addr

	state atomic.Int32

	reading bool

	input  *buffer.Buffer
	output *buffer.Buffer

	highWaterMark int

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
	closeCallback         CloseCallback

	bytesReadHook    func(n int)
	bytesWrittenHook func(n int)
}

// SetByteMetricsHooks installs optional callbacks fired with the byte
// count of every successful read and write. Either may be nil.
func (c *Connection) SetByteMetricsHooks(onRead, onWritten func(n int)) {
	c.bytesReadHook = onRead
	c.bytesWrittenHook = onWritten
}

// NewConnection constructs a Connecting-state Connection for an already
// accepted fd. The caller (the server layer) must set the five
// callbacks and then RunInLoop(connectEstablished) on loop before any
// event can be dispatched.
func NewConnection(loop *iomux.EventLoop, name string, fd int, localAddr, peerAddr net.Addr, pool api.BufferPool, numaPreferred int) *Connection {
	c := &Connection{
		loop:      loop,
		name:      name,
		fd:        fd,
		localAddr: localAddr,
		peerAddr:  peerAddr,
		input:     buffer.New(pool, numaPreferred),
		output:    buffer.New(pool, numaPreferred),
	}
	c.state.Store(int32(StateConnecting))

	c.channel = iomux.NewChannel(loop, fd)
	iomux.Tie(c.channel, c)
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)

	_ = netutil.SetNoDelay(fd, true)
	_ = netutil.SetKeepAlive(fd, true)

	return c
}

func (c *Connection) Name() string           { return c.name }
func (c *Connection) Loop() *iomux.EventLoop { return c.loop }
func (c *Connection) LocalAddr() net.Addr    { return c.localAddr }
func (c *Connection) PeerAddr() net.Addr     { return c.peerAddr }
func (c *Connection) State() State           { return State(c.state.Load()) }
func (c *Connection) Connected() bool        { return c.State() == StateConnected }

func (c *Connection) SetConnectionCallback(cb ConnectionCallback)       { c.connectionCallback = cb }
func (c *Connection) SetMessageCallback(cb MessageCallback)             { c.messageCallback = cb }
func (c *Connection) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.writeCompleteCallback = cb }
func (c *Connection) SetCloseCallback(cb CloseCallback)                 { c.closeCallback = cb }

// SetHighWaterMarkCallback installs cb, fired on the upward crossing of
// highWaterMark bytes queued in the output buffer.
func (c *Connection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, highWaterMark int) {
	c.highWaterMarkCallback = cb
	c.highWaterMark = highWaterMark
}

// ConnectEstablished transitions Connecting -> Connected, enables
// readability, and invokes the connection callback. Must run on
// c.Loop(); the server layer calls this once, immediately after
// NewConnection, via RunInLoop.
func (c *Connection) ConnectEstablished() {
	c.connectEstablished()
}

func (c *Connection) connectEstablished() {
	c.loop.AssertInLoopThread()
	if c.State() != StateConnecting {
		panic(fmt.Sprintf("tcp: connectEstablished on connection %s in state %s", c.name, c.State()))
	}
	c.state.Store(int32(StateConnected))
	c.reading = true
	c.channel.EnableReading()
	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
}

// ConnectDestroyed unregisters the Channel and releases buffers.
// Idempotent relative to handleClose: calling it twice, or after
// handleClose already ran, is a no-op beyond the first call. The
// server layer calls this once, from the CloseCallback, via RunInLoop.
func (c *Connection) ConnectDestroyed() {
	c.connectDestroyed()
}

func (c *Connection) connectDestroyed() {
	c.loop.AssertInLoopThread()
	if c.fd < 0 {
		return
	}
	if c.State() == StateConnected {
		c.state.Store(int32(StateDisconnected))
		c.channel.DisableAll()
		if c.connectionCallback != nil {
			c.connectionCallback(c)
		}
	}
	c.channel.DisableAll()
	c.channel.Remove()
	_ = netutil.CloseFD(c.fd)
	c.fd = -1
	c.input.Release()
	c.output.Release()
}

func (c *Connection) handleRead(receiveTime time.Time) {
	c.loop.AssertInLoopThread()

	n, err := c.input.ReadFD(c.fd)
	switch {
	case n > 0:
		if c.bytesReadHook != nil {
			c.bytesReadHook(n)
		}
		if c.messageCallback != nil {
			c.messageCallback(c, c.input, receiveTime)
		}
	case n == 0:
		c.handleClose()
	default:
		if isWouldBlock(err) || isInterrupted(err) {
			return
		}
		logging.Default().Errorf("tcp: connection %s read error: %v", c.name, err)
		c.handleError()
	}
}

func (c *Connection) handleWrite() {
	c.loop.AssertInLoopThread()
	if !c.channel.IsWriting() {
		return
	}

	n, err := writeFD(c.fd, c.output.Peek())
	if err != nil {
		if isWouldBlock(err) || isInterrupted(err) {
			return
		}
		logging.Default().Errorf("tcp: connection %s write error: %v", c.name, err)
		return
	}
	if c.bytesWrittenHook != nil && n > 0 {
		c.bytesWrittenHook(n)
	}

	c.output.Retrieve(n)
	if c.output.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.writeCompleteCallback != nil {
			c.writeCompleteCallback(c)
		}
		if c.State() == StateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

func (c *Connection) handleClose() {
	c.loop.AssertInLoopThread()
	if c.State() == StateDisconnected {
		return
	}
	c.state.Store(int32(StateDisconnected))
	c.channel.DisableAll()

	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
	if c.closeCallback != nil {
		c.closeCallback(c)
	}
}

func (c *Connection) handleError() {
	err := netutil.SOError(c.fd)
	logging.Default().Errorf("tcp: connection %s socket error: %v", c.name, err)
	c.handleClose()
}

// Send queues data for writing. Safe from any goroutine: on a foreign
// thread the bytes are copied and re-dispatched via RunInLoop.
func (c *Connection) Send(data []byte) {
	if c.loop.IsInLoopThread() {
		c.sendInLoop(data)
		return
	}
	cp := append([]byte(nil), data...)
	c.loop.RunInLoop(func() { c.sendInLoop(cp) })
}

func (c *Connection) sendInLoop(data []byte) {
	if c.State() != StateConnected {
		logging.Default().Warnf("tcp: connection %s: send on non-connected connection dropped", c.name)
		return
	}

	var (
		nwrote     int
		err        error
		faultError bool
	)

	if !c.channel.IsWriting() && c.output.ReadableBytes() == 0 {
		nwrote, err = writeFD(c.fd, data)
		if err != nil {
			if !isWouldBlock(err) {
				logging.Default().Errorf("tcp: connection %s write error: %v", c.name, err)
				faultError = true
			}
			nwrote = 0
		} else if nwrote > 0 && c.bytesWrittenHook != nil {
			c.bytesWrittenHook(nwrote)
		}
	}

	if faultError {
		return
	}

	remaining := len(data) - nwrote
	if remaining <= 0 {
		if c.writeCompleteCallback != nil {
			c.loop.QueueInLoop(func() { c.writeCompleteCallback(c) })
		}
		return
	}

	oldLen := c.output.ReadableBytes()
	c.output.Append(data[nwrote:])
	if oldLen < c.highWaterMark && oldLen+remaining >= c.highWaterMark && c.highWaterMarkCallback != nil {
		c.highWaterMarkCallback(c, oldLen+remaining)
	}
	if !c.channel.IsWriting() {
		c.channel.EnableWriting()
	}
}

// StopRead disables readability interest without closing the
// connection, letting a MessageCallback pause a fast producer.
func (c *Connection) StopRead() {
	c.loop.RunInLoop(func() {
		if c.reading {
			c.reading = false
			c.channel.DisableReading()
		}
	})
}

// StartRead re-enables readability interest after StopRead.
func (c *Connection) StartRead() {
	c.loop.RunInLoop(func() {
		if !c.reading {
			c.reading = true
			c.channel.EnableReading()
		}
	})
}

// Shutdown half-closes the write side once any queued output has
// drained. Permitted only in state Connected.
func (c *Connection) Shutdown() {
	if c.State() != StateConnected {
		return
	}
	c.state.Store(int32(StateDisconnecting))
	c.loop.RunInLoop(c.shutdownInLoop)
}

func (c *Connection) shutdownInLoop() {
	c.loop.AssertInLoopThread()
	if c.channel.IsWriting() {
		// Output buffer still draining; handleWrite re-invokes this
		// once it empties.
		return
	}
	if err := shutdownWrite(c.fd); err != nil {
		logging.Default().Errorf("tcp: connection %s shutdown: %v", c.name, err)
	}
}
