// File: internal/iomux/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poller is the platform-specific half of the reactor: it owns the OS
// multiplexing primitive (epoll on Linux) and translates between native
// readiness notifications and Channel.revents. EventLoop owns exactly one
// Poller for its lifetime and calls it only from its own goroutine.

package iomux

import "time"

// poller is implemented once per platform: poller_linux.go (epoll),
// poller_windows.go (WSAPoll) and poller_stub.go (returns an error on
// other platforms).
type poller interface {
	// poll blocks for up to timeout waiting for readiness, appending every
	// ready Channel to active (after setting its revents), and returns the
	// time the wait returned.
	poll(timeout time.Duration, active *[]*Channel) (time.Time, error)

	// updateChannel registers ch if new, or updates its interest set (and
	// removes it from the poller, without forgetting it, if its interest
	// set is now empty). Mirrors Channel's pollerIndex tri-state.
	updateChannel(ch *Channel) error

	// removeChannel forgets ch entirely. ch must have an empty interest
	// set (DisableAll) before this is called.
	removeChannel(ch *Channel) error

	hasChannel(fd int) bool

	close() error
}
