//go:build linux
// +build linux

// File: internal/iomux/wakeup_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux wake-up descriptor backed by eventfd(2): a single fd serves as
// both read and write end, and each write adds to an internal 64-bit
// counter that EventLoop drains with one 8-byte read.

package iomux

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

func createWakeFd() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func writeWake(fd int) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	n, err := unix.Write(fd, buf[:])
	if err != nil {
		return err
	}
	if n != 8 {
		return ErrWakeupShortWrite
	}
	return nil
}

func drainWake(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

func closeWakeFd(readFd, writeFd int) error {
	return unix.Close(readFd)
}
