//go:build windows
// +build windows

// File: tcp/io_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import "golang.org/x/sys/windows"

func writeFD(fd int, data []byte) (int, error) {
	return windows.Write(windows.Handle(fd), data)
}

func shutdownWrite(fd int) error {
	return windows.Shutdown(windows.Handle(fd), windows.SHUT_WR)
}
