//go:build windows
// +build windows

// File: netutil/socket_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows has no accept4; the listen socket is opened with ws2_32
// directly via syscall.Handle-based helpers, generalized to the full
// listen/accept surface.

package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/windows"
)

func ListenTCP(addr string, backlog int, reuseAddr, reusePort bool) (fd int, laddr net.Addr, err error) {
	tcpAddr, err := ParseListenAddr(addr)
	if err != nil {
		return -1, nil, err
	}

	h, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, nil, fmt.Errorf("netutil: socket: %w", err)
	}

	if reuseAddr {
		if err := windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
			windows.Closesocket(h)
			return -1, nil, fmt.Errorf("netutil: SO_REUSEADDR: %w", err)
		}
	}
	// reusePort has no SO_REUSEPORT analog on Windows; SO_REUSEADDR
	// already permits rebind, so the flag is accepted but otherwise
	// unused here.
	_ = reusePort

	sa := &windows.SockaddrInet4{Port: tcpAddr.Port}
	if tcpAddr.IP != nil {
		copy(sa.Addr[:], tcpAddr.IP.To4())
	}
	if err := windows.Bind(h, sa); err != nil {
		windows.Closesocket(h)
		return -1, nil, fmt.Errorf("netutil: bind %s: %w", addr, err)
	}
	if err := windows.Listen(h, backlog); err != nil {
		windows.Closesocket(h)
		return -1, nil, fmt.Errorf("netutil: listen: %w", err)
	}
	if err := windows.SetNonblock(h, true); err != nil {
		windows.Closesocket(h)
		return -1, nil, fmt.Errorf("netutil: set nonblock: %w", err)
	}

	return int(h), tcpAddr, nil
}

func Accept4(fd int) (connFd int, peer net.Addr, err error) {
	nh, sa, err := windows.Accept(windows.Handle(fd))
	if err != nil {
		return -1, nil, err
	}
	if err := windows.SetNonblock(nh, true); err != nil {
		windows.Closesocket(nh)
		return -1, nil, err
	}

	var p net.Addr
	if s4, ok := sa.(*windows.SockaddrInet4); ok {
		p = &net.TCPAddr{IP: net.IP(s4.Addr[:]), Port: s4.Port}
	}
	return int(nh), p, nil
}

func SetKeepAlive(fd int, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_KEEPALIVE, v)
}

func SetNoDelay(fd int, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_TCP, windows.TCP_NODELAY, v)
}

func SOError(fd int) error {
	errno, err := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return windows.Errno(errno)
}

func CloseFD(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

// IdleFD has no direct Windows analog to holding a spare fd against an
// EMFILE-class failure (Windows sockets exhaust a different resource,
// the handle table, which this core does not special-case); returns a
// closed/no-op handle so Acceptor's grace-fd logic compiles uniformly
// but never actually triggers the Linux-specific recovery path here.
func IdleFD() (int, error) {
	return -1, nil
}
