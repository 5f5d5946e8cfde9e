//go:build linux
// +build linux

// File: tcp/errors_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func isEMFILE(err error) bool {
	return errors.Is(err, unix.EMFILE) || errors.Is(err, unix.ENFILE)
}

func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
