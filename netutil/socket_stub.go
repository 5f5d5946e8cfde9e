//go:build !linux && !windows
// +build !linux,!windows

// File: netutil/socket_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netutil

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("netutil: this platform is not supported")

func ListenTCP(addr string, backlog int, reuseAddr, reusePort bool) (int, net.Addr, error) {
	return -1, nil, errUnsupported
}

func Accept4(fd int) (int, net.Addr, error) { return -1, nil, errUnsupported }

func SetKeepAlive(fd int, enable bool) error { return errUnsupported }

func SetNoDelay(fd int, enable bool) error { return errUnsupported }

func SOError(fd int) error { return nil }

func CloseFD(fd int) error { return errUnsupported }

func IdleFD() (int, error) { return -1, errUnsupported }
