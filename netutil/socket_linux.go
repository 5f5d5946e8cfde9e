//go:build linux
// +build linux

// File: netutil/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux raw-fd socket helpers: non-blocking listen with SO_REUSEADDR/
// SO_REUSEPORT, accept4 with SOCK_NONBLOCK|SOCK_CLOEXEC in one syscall,
// and the keepalive/nodelay/SO_ERROR options a production TCP core sets
// on every accepted socket.

package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ListenTCP creates a non-blocking, close-on-exec IPv4/IPv6 listen
// socket bound to addr, with the given backlog and reuse options.
func ListenTCP(addr string, backlog int, reuseAddr, reusePort bool) (fd int, laddr net.Addr, err error) {
	tcpAddr, err := ParseListenAddr(addr)
	if err != nil {
		return -1, nil, err
	}

	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, fmt.Errorf("netutil: socket: %w", err)
	}

	if reuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return -1, nil, fmt.Errorf("netutil: SO_REUSEADDR: %w", err)
		}
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return -1, nil, fmt.Errorf("netutil: SO_REUSEPORT: %w", err)
		}
	}

	sa, err := sockaddrFromTCPAddr(domain, tcpAddr)
	if err != nil {
		unix.Close(fd)
		return -1, nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("netutil: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("netutil: listen: %w", err)
	}

	boundSA, err := unix.Getsockname(fd)
	if err == nil {
		if resolved := tcpAddrFromSockaddr(boundSA); resolved != nil {
			laddr = resolved
		}
	}
	if laddr == nil {
		laddr = tcpAddr
	}
	return fd, laddr, nil
}

func sockaddrFromTCPAddr(domain int, a *net.TCPAddr) (unix.Sockaddr, error) {
	if domain == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: a.Port}
		if a.IP != nil {
			copy(sa.Addr[:], a.IP.To16())
		}
		return sa, nil
	}
	sa := &unix.SockaddrInet4{Port: a.Port}
	if a.IP != nil {
		copy(sa.Addr[:], a.IP.To4())
	}
	return sa, nil
}

func tcpAddrFromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	}
	return nil
}

// Accept4 accepts one connection from the listening fd, returning a
// non-blocking, close-on-exec connection fd in a single syscall.
func Accept4(fd int) (connFd int, peer net.Addr, err error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	return nfd, tcpAddrFromSockaddr(sa), nil
}

// SetKeepAlive enables TCP keepalive on fd.
func SetKeepAlive(fd int, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v)
}

// SetNoDelay toggles TCP_NODELAY (disabling Nagle's algorithm) on fd.
func SetNoDelay(fd int, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// SOError reads and clears SO_ERROR on fd, for use from Channel's error
// callback.
func SOError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

// CloseFD closes a raw socket fd.
func CloseFD(fd int) error {
	return unix.Close(fd)
}

// IdleFD opens /dev/null, used by Acceptor's EMFILE grace-fd technique:
// held open normally, reserving one fd slot, and only closed-then-reopened
// momentarily during EMFILE recovery so a pending connection can be
// accepted and immediately dropped.
func IdleFD() (int, error) {
	return unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
}
