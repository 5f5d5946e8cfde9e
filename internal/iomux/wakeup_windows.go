//go:build windows
// +build windows

// File: internal/iomux/wakeup_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WSAPoll has no native cross-thread wake primitive analogous to
// eventfd. EventLoop on this platform falls back to waking the blocked
// WSAPoll call with a short poll timeout instead of a registered wake
// fd; createWakeFd returns -1 to signal the loop to skip fd-based
// wakeup registration entirely, using sentinel values rather than real
// descriptors.

package iomux

func createWakeFd() (readFd, writeFd int, err error) {
	return -1, -1, nil
}

func writeWake(fd int) error { return nil }

func drainWake(fd int) {}

func closeWakeFd(readFd, writeFd int) error { return nil }
