// Package iomux implements the reactor core: Channel, Poller, EventLoop,
// the Thread wrapper, and EventLoopThreadPool. Every exported type here
// enforces the single invariant the rest of the library depends on — a
// Channel, and anything registered on its EventLoop, is mutated only from
// that loop's own goroutine, which is pinned for its lifetime to a single
// OS thread via runtime.LockOSThread.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package iomux
