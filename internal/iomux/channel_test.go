// File: internal/iomux/channel_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package iomux

import (
	"testing"
	"time"
)

// newTestLoop builds a real EventLoop without starting Loop(), so tests
// can drive Channel dispatch directly on the calling goroutine (which
// becomes the loop's pinned thread, satisfying assertInLoopThread).
func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	l := NewEventLoop()
	t.Cleanup(func() {
		_ = l.Close()
	})
	return l
}

func TestHandleEventOrdersReadBeforeClose(t *testing.T) {
	l := newTestLoop(t)
	ch := NewChannel(l, 99)

	var order []string
	ch.SetReadCallback(func(time.Time) { order = append(order, "read") })
	ch.SetCloseCallback(func() { order = append(order, "close") })

	// A hangup observed alongside readable data must still deliver the
	// readable data first: draining what's already buffered takes
	// priority over tearing the connection down.
	ch.SetRevents(EventHangup | EventReadable)
	ch.HandleEvent(time.Now())

	if len(order) != 1 || order[0] != "read" {
		t.Fatalf("dispatch order = %v, want [read] (hangup with pending data suppresses close)", order)
	}
}

func TestHandleEventFiresCloseWhenNoReadable(t *testing.T) {
	l := newTestLoop(t)
	ch := NewChannel(l, 99)

	var closed bool
	ch.SetReadCallback(func(time.Time) { t.Fatalf("read callback should not fire") })
	ch.SetCloseCallback(func() { closed = true })

	ch.SetRevents(EventHangup)
	ch.HandleEvent(time.Now())

	if !closed {
		t.Fatalf("close callback did not fire for a pure hangup")
	}
}

func TestHandleEventDispatchesErrorAndReadableTogether(t *testing.T) {
	l := newTestLoop(t)
	ch := NewChannel(l, 99)

	var order []string
	ch.SetErrorCallback(func() { order = append(order, "error") })
	ch.SetReadCallback(func(time.Time) { order = append(order, "read") })

	ch.SetRevents(EventError | EventReadable)
	ch.HandleEvent(time.Now())

	if len(order) != 2 || order[0] != "error" || order[1] != "read" {
		t.Fatalf("dispatch order = %v, want [error read]", order)
	}
}

func TestHandleEventWriteCallback(t *testing.T) {
	l := newTestLoop(t)
	ch := NewChannel(l, 99)

	fired := false
	ch.SetWriteCallback(func() { fired = true })
	ch.SetRevents(EventWritable)
	ch.HandleEvent(time.Now())

	if !fired {
		t.Fatalf("write callback did not fire for EventWritable")
	}
}

func TestTieDispatchesWhileOwnerAlive(t *testing.T) {
	l := newTestLoop(t)
	ch := NewChannel(l, 99)

	type owner struct{ n int }
	o := &owner{n: 1}
	Tie(ch, o)

	fired := false
	ch.SetReadCallback(func(time.Time) { fired = true })
	ch.SetRevents(EventReadable)

	// With the owner still alive and reachable from this frame, dispatch
	// must proceed normally.
	ch.HandleEvent(time.Now())
	if !fired {
		t.Fatalf("tied channel with live owner did not dispatch")
	}
}

func TestEnableDisableReadingTogglesInterest(t *testing.T) {
	l := newTestLoop(t)
	ch := NewChannel(l, 100)

	if ch.IsReading() {
		t.Fatalf("new channel should not be reading")
	}
	ch.EnableReading()
	if !ch.IsReading() {
		t.Fatalf("EnableReading did not set the readable interest bit")
	}
	ch.DisableReading()
	if ch.IsReading() {
		t.Fatalf("DisableReading did not clear the readable interest bit")
	}
	if !ch.IsNoneEvent() {
		t.Fatalf("channel should have no interest after DisableReading from a read-only state")
	}
}

func TestEventsStringRendersKnownBits(t *testing.T) {
	e := EventReadable | EventWritable
	s := e.String()
	if s != "RW" {
		t.Fatalf("Events.String() = %q, want %q", s, "RW")
	}
	if EventNone.String() != "-" {
		t.Fatalf("EventNone.String() = %q, want %q", EventNone.String(), "-")
	}
}
