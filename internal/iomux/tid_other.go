//go:build !linux
// +build !linux

// File: internal/iomux/tid_other.go
// Author: momentics <momentics@gmail.com>
//
// On platforms without a cheap native-thread-id syscall exposed by
// golang.org/x/sys, fall back to parsing the "goroutine N" header that
// runtime.Stack always emits. This is the same approach every pure-Go
// per-goroutine-identity helper uses; it is slower than gettid(2), and
// EventLoop calls it on every loop-thread check (IsInLoopThread and
// AssertInLoopThread), which includes each RunInLoop/QueueInLoop call
// and each connection read or write event.
// Accurate enough because, once pinned with runtime.LockOSThread, a
// loop's goroutine never migrates, so its goroutine id is a stable proxy
// for its OS thread for the lifetime of the loop.

package iomux

import (
	"bytes"
	"runtime"
	"strconv"
)

func currentThreadID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
