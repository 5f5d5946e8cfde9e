// File: internal/iomux/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel binds one file descriptor to its interest set and its four
// per-event callbacks. It is the unit the Poller tracks and the unit
// through which the EventLoop dispatches readiness. A Channel is mutated
// only on its EventLoop's goroutine.

package iomux

import "time"

// Events is a bitmask of readiness conditions, platform-neutral so the
// Poller backends (epoll on Linux, WSAPoll on Windows) can translate to and
// from their native representation without leaking it into this type.
type Events uint32

const (
	EventNone     Events = 0
	EventReadable Events = 1 << iota
	EventWritable Events = 1 << iota
	EventError    Events = 1 << iota
	EventHangup   Events = 1 << iota
	EventPriority Events = 1 << iota // urgent / out-of-band data
)

func (e Events) String() string {
	s := ""
	for _, b := range []struct {
		bit  Events
		name string
	}{
		{EventReadable, "R"}, {EventWritable, "W"}, {EventError, "E"},
		{EventHangup, "H"}, {EventPriority, "P"},
	} {
		if e&b.bit != 0 {
			s += b.name
		}
	}
	if s == "" {
		return "-"
	}
	return s
}

// pollerIndex tracks a Channel's registration tri-state in its Poller,
// per spec: new (never registered), added (currently registered),
// deleted (registered once, currently has empty interest, still present
// in the Poller's fd map so re-enabling re-adds instead of duplicating).
type pollerIndex int8

const (
	indexNew pollerIndex = iota
	indexAdded
	indexDeleted
)

// tieFunc upgrades a Channel's weak owner reference to a strong one for
// the duration of one HandleEvent call, returning ok=false if the owner
// has already been collected. Produced by the generic Tie function below
// so Channel itself stays free of the owner's concrete type.
type tieFunc func() (owner any, ok bool)

// Channel is identified by (loop, fd).
type Channel struct {
	loop *EventLoop
	fd   int

	events  Events // interest set
	revents Events // last observed readiness, set by the Poller

	index pollerIndex

	readCallback  func(receiveTime time.Time)
	writeCallback func()
	closeCallback func()
	errorCallback func()

	tie  tieFunc
	tied bool
}

// NewChannel creates a Channel for fd on loop, with an empty interest
// set. The caller must call loop.UpdateChannel after setting callbacks
// and enabling interest.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: indexNew}
}

func (c *Channel) Fd() int       { return c.fd }
func (c *Channel) Loop() *EventLoop { return c.loop }

func (c *Channel) SetReadCallback(fn func(receiveTime time.Time)) { c.readCallback = fn }
func (c *Channel) SetWriteCallback(fn func())                     { c.writeCallback = fn }
func (c *Channel) SetCloseCallback(fn func())                     { c.closeCallback = fn }
func (c *Channel) SetErrorCallback(fn func())                     { c.errorCallback = fn }

// Tie installs a weak back-reference from c to owner. HandleEvent
// upgrades it to a strong local value for the duration of dispatch, so
// owner cannot be garbage-collected mid-callback, without the Channel
// holding a strong (and therefore cyclic, since owner holds the Channel
// too) reference the rest of the time.
func Tie[T any](c *Channel, owner *T) {
	c.loop.assertInLoopThread()
	wp := weakMake(owner)
	c.tie = func() (any, bool) {
		v := wp.value()
		if v == nil {
			return nil, false
		}
		return v, true
	}
	c.tied = true
}

// interestChanged pushes the current interest set to the Poller via the
// owning loop. Must run on the loop thread.
func (c *Channel) interestChanged() {
	c.loop.assertInLoopThread()
	c.loop.updateChannel(c)
}

func (c *Channel) EnableReading() {
	c.events |= EventReadable
	c.interestChanged()
}

func (c *Channel) DisableReading() {
	c.events &^= EventReadable
	c.interestChanged()
}

func (c *Channel) EnableWriting() {
	c.events |= EventWritable
	c.interestChanged()
}

func (c *Channel) DisableWriting() {
	c.events &^= EventWritable
	c.interestChanged()
}

func (c *Channel) DisableAll() {
	c.events = EventNone
	c.interestChanged()
}

func (c *Channel) IsWriting() bool { return c.events&EventWritable != 0 }
func (c *Channel) IsReading() bool { return c.events&EventReadable != 0 }
func (c *Channel) IsNoneEvent() bool { return c.events == EventNone }

func (c *Channel) Events() Events    { return c.events }
func (c *Channel) Revents() Events   { return c.revents }
func (c *Channel) SetRevents(r Events) { c.revents = r }

func (c *Channel) index_() pollerIndex     { return c.index }
func (c *Channel) setIndex(i pollerIndex)  { c.index = i }

// Remove unregisters c from its Poller. Must be called before c is
// discarded; the Poller does not own the Channel and will not do this
// for you.
func (c *Channel) Remove() {
	c.loop.assertInLoopThread()
	c.loop.removeChannel(c)
}

// HandleEvent dispatches c.revents to the appropriate callbacks. If c is
// tied, the owner reference is upgraded first; dispatch is skipped
// entirely if the upgrade fails (owner already collected).
func (c *Channel) HandleEvent(receiveTime time.Time) {
	if c.tied {
		owner, ok := c.tie()
		if !ok {
			return
		}
		c.handleEventGuarded(receiveTime)
		_ = owner // kept live in this frame for the duration of dispatch
		return
	}
	c.handleEventGuarded(receiveTime)
}

func (c *Channel) handleEventGuarded(receiveTime time.Time) {
	if c.revents&EventHangup != 0 && c.revents&EventReadable == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if c.revents&EventError != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if c.revents&(EventReadable|EventPriority) != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}
	if c.revents&EventWritable != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
