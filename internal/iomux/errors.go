// File: internal/iomux/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package iomux

import "errors"

// ErrLoopAlreadyStopped names the condition of a loop that has already
// returned from Loop(). No function in this package returns it, and Loop
// does not check whether it has run before: calling Loop again on the
// owning goroutine starts another run.
var ErrLoopAlreadyStopped = errors.New("iomux: event loop already stopped")

// ErrWakeupShortWrite is logged, not returned, since a short write on
// the wake-up descriptor is non-fatal — kept here for tests that want
// to assert on the diagnostic without duplicating the string.
var ErrWakeupShortWrite = errors.New("iomux: short write to wake-up descriptor")
