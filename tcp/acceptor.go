// File: tcp/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor owns the listening socket on the accepting loop: a Channel
// watching the listen fd for readability, an accept-until-would-block
// loop, and an EMFILE grace-fd technique for surviving file-descriptor
// exhaustion without dropping the accept loop itself.

package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/internal/iomux"
	"github.com/momentics/tcpreactor/internal/logging"
	"github.com/momentics/tcpreactor/netutil"
)

// Acceptor listens on the accepting loop and hands off accepted sockets
// via NewConnectionCallback.
type Acceptor struct {
	loop *iomux.EventLoop

	listenFd int
	laddr    net.Addr
	channel  *iomux.Channel

	idleFd int

	listening bool

	NewConnectionCallback NewConnectionCallback
}

// NewAcceptor creates an Acceptor bound to loop, listening on addr with
// the given backlog and reuse options. The socket is created, bound and
// put into the listening state immediately; Listen below only enables
// readability interest, so no connection is accepted before it runs.
func NewAcceptor(loop *iomux.EventLoop, addr string, backlog int, reuseAddr, reusePort bool) (*Acceptor, error) {
	fd, laddr, err := netutil.ListenTCP(addr, backlog, reuseAddr, reusePort)
	if err != nil {
		return nil, fmt.Errorf("tcp: acceptor listen: %w", err)
	}

	idleFd, err := netutil.IdleFD()
	if err != nil {
		logging.Default().Warnf("tcp: acceptor: could not reserve idle fd for EMFILE recovery: %v", err)
		idleFd = -1
	}

	a := &Acceptor{
		loop:     loop,
		listenFd: fd,
		laddr:    laddr,
		idleFd:   idleFd,
	}
	a.channel = iomux.NewChannel(loop, fd)
	a.channel.SetReadCallback(func(time.Time) { a.handleRead() })
	return a, nil
}

// Addr returns the bound listen address, resolved even if the caller
// requested an ephemeral port.
func (a *Acceptor) Addr() net.Addr { return a.laddr }

// Listen enables readability interest on the listen Channel. Must be
// called on the accepting loop.
func (a *Acceptor) Listen() {
	a.loop.RunInLoop(func() {
		a.listening = true
		a.channel.EnableReading()
	})
}

func (a *Acceptor) Listening() bool { return a.listening }

func (a *Acceptor) handleRead() {
	for {
		connFd, peer, err := netutil.Accept4(a.listenFd)
		if err != nil {
			if isWouldBlock(err) {
				return
			}
			if isEMFILE(err) && a.idleFd >= 0 {
				logging.Default().Warnf("tcp: acceptor: %v, shedding one connection", api.ErrResourceExhausted)
				a.shedOneConnection()
				continue
			}
			logging.Default().Errorf("tcp: acceptor accept: %v", err)
			return
		}
		if a.NewConnectionCallback != nil {
			a.NewConnectionCallback(connFd, peer)
		} else {
			_ = netutil.CloseFD(connFd)
		}
	}
}

// shedOneConnection implements the EMFILE grace-fd trick: close the
// one spare fd we were holding open, accept (and
// immediately drop) the connection that was stuck at the kernel's
// accept queue, then reopen the spare for next time.
func (a *Acceptor) shedOneConnection() {
	_ = netutil.CloseFD(a.idleFd)
	connFd, _, err := netutil.Accept4(a.listenFd)
	if err == nil {
		_ = netutil.CloseFD(connFd)
	}
	idleFd, err := netutil.IdleFD()
	if err != nil {
		logging.Default().Warnf("tcp: acceptor: failed to reopen idle fd after EMFILE: %v", err)
		a.idleFd = -1
		return
	}
	a.idleFd = idleFd
}

// Close stops listening and releases the listen socket and idle fd.
// Must be called on the accepting loop.
func (a *Acceptor) Close() {
	a.loop.AssertInLoopThread()
	a.channel.DisableAll()
	a.channel.Remove()
	_ = netutil.CloseFD(a.listenFd)
	if a.idleFd >= 0 {
		_ = netutil.CloseFD(a.idleFd)
	}
}
