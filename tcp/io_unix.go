//go:build !linux && !windows
// +build !linux,!windows

// File: tcp/io_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import "golang.org/x/sys/unix"

func writeFD(fd int, data []byte) (int, error) {
	return unix.Write(fd, data)
}

func shutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}
