//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity, via
// sched_setaffinity(2) through golang.org/x/sys/unix rather than cgo —
// keeps the package cgo-free so EventLoopThreadPool workers can be
// pinned without complicating cross-compilation.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setAffinityPlatform sets the calling OS thread's affinity to cpuID.
// Callers must have already pinned the calling goroutine to its OS
// thread (runtime.LockOSThread) or the affinity may migrate with it.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity: %w", err)
	}
	return nil
}
