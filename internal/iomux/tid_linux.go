//go:build linux
// +build linux

// File: internal/iomux/tid_linux.go
// Author: momentics <momentics@gmail.com>
//
// Native OS thread identity, used to realize the "owning thread" half of
// the single-threaded-per-loop invariant. On Linux this is the kernel tid
// from gettid(2), which is stable for the lifetime of the goroutine once
// it has been pinned with runtime.LockOSThread.

package iomux

import "golang.org/x/sys/unix"

func currentThreadID() int64 {
	return int64(unix.Gettid())
}
