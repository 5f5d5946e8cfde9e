//go:build !linux && !windows
// +build !linux,!windows

// File: internal/iomux/wakeup_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package iomux

func createWakeFd() (readFd, writeFd int, err error) {
	return -1, -1, nil
}

func writeWake(fd int) error { return nil }

func drainWake(fd int) {}

func closeWakeFd(readFd, writeFd int) error { return nil }
