// File: internal/iomux/eventloop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop runs on exactly one OS thread for its entire life and is the
// only goroutine allowed to touch the Channels registered on it. Cross
// thread handoff happens through QueueInLoop plus the wake-up descriptor.

package iomux

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/tcpreactor/internal/logging"
)

// defaultPollTimeout bounds how long a blocking poll can wait when
// nothing else would otherwise wake the loop.
const defaultPollTimeout = 10 * time.Second

// loopRegistry enforces one EventLoop per OS thread, keyed by the
// goroutine's native thread id once pinned via runtime.LockOSThread.
var loopRegistry sync.Map // map[int64]*EventLoop

// EventLoop is the reactor's run-loop: Poller ownership, Channel
// dispatch, and a deferred-task queue for cross-thread work.
type EventLoop struct {
	p poller

	threadID int64

	looping                atomic.Bool
	quit                   atomic.Bool
	callingPendingFunctors atomic.Bool

	activeChannels []*Channel

	wakeReadFd, wakeWriteFd int
	wakeChannel             *Channel

	mu      sync.Mutex
	pending *queue.Queue

	pollTimeout time.Duration

	onWakeup    func()
	onQueueTask func()
}

// SetMetricsHooks installs optional callbacks fired on every real
// wake-up write and every task handed to QueueInLoop. Either may be
// nil. Intended for a server layer to feed an external counters
// registry without EventLoop depending on one directly.
func (l *EventLoop) SetMetricsHooks(onWakeup, onQueueTask func()) {
	l.onWakeup = onWakeup
	l.onQueueTask = onQueueTask
}

// NewEventLoop constructs an EventLoop bound to the calling goroutine's
// OS thread. It calls runtime.LockOSThread itself and never unlocks, so
// the calling goroutine stays on that thread for good; NewEventLoop
// panics if another EventLoop is already bound to this thread.
func NewEventLoop() *EventLoop {
	runtime.LockOSThread()
	tid := currentThreadID()
	if _, dup := loopRegistry.Load(tid); dup {
		panic(fmt.Sprintf("iomux: another EventLoop already exists on thread %d", tid))
	}

	p, err := newPoller()
	if err != nil {
		panic(fmt.Sprintf("iomux: newPoller: %v", err))
	}

	readFd, writeFd, err := createWakeFd()
	if err != nil {
		panic(fmt.Sprintf("iomux: createWakeFd: %v", err))
	}

	loop := &EventLoop{
		p:           p,
		threadID:    tid,
		wakeReadFd:  readFd,
		wakeWriteFd: writeFd,
		pending:     queue.New(),
		pollTimeout: defaultPollTimeout,
	}

	if readFd >= 0 {
		loop.wakeChannel = NewChannel(loop, readFd)
		loop.wakeChannel.SetReadCallback(func(time.Time) { loop.handleWakeRead() })
		loop.wakeChannel.EnableReading()
	}

	loopRegistry.Store(tid, loop)
	logging.Default().Debugf("iomux: event loop created on thread %d", tid)
	return loop
}

func (l *EventLoop) handleWakeRead() {
	drainWake(l.wakeReadFd)
}

// Loop runs until Quit is called, either from this goroutine or another.
// Must run on the same goroutine that called NewEventLoop.
func (l *EventLoop) Loop() {
	l.assertInLoopThread()
	l.looping.Store(true)
	l.quit.Store(false)

	logging.Default().Infof("iomux: event loop %d start looping", l.threadID)

	for !l.quit.Load() {
		l.activeChannels = l.activeChannels[:0]
		timeout := l.pollTimeout
		if l.wakeChannel == nil {
			// Platforms with no real wake fd (Windows WSAPoll fallback)
			// must poll at a bounded interval so a cross-thread
			// QueueInLoop is not stuck behind a long blocking wait.
			timeout = 50 * time.Millisecond
		}
		_, err := l.p.poll(timeout, &l.activeChannels)
		if err != nil {
			logging.Default().Errorf("iomux: poll: %v", err)
			continue
		}
		for _, ch := range l.activeChannels {
			ch.HandleEvent(time.Now())
		}
		l.doPendingFunctors()
	}

	logging.Default().Infof("iomux: event loop %d stop looping", l.threadID)
	l.looping.Store(false)
	loopRegistry.Delete(l.threadID)
}

// Quit stops the loop. Safe to call from any goroutine.
func (l *EventLoop) Quit() {
	l.quit.Store(true)
	if !l.IsInLoopThread() {
		l.Wakeup()
	}
}

// RunInLoop executes fn on the loop's goroutine, synchronously if the
// caller is already on it, or deferred via QueueInLoop otherwise.
func (l *EventLoop) RunInLoop(fn func()) {
	if l.IsInLoopThread() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop always defers fn to the end of the loop's current (or
// next) iteration, waking the loop if necessary so fn does not wait
// behind an indefinite poll.
func (l *EventLoop) QueueInLoop(fn func()) {
	l.mu.Lock()
	l.pending.Add(fn)
	l.mu.Unlock()
	if l.onQueueTask != nil {
		l.onQueueTask()
	}

	if !l.IsInLoopThread() || l.callingPendingFunctors.Load() {
		l.Wakeup()
	}
}

func (l *EventLoop) doPendingFunctors() {
	l.callingPendingFunctors.Store(true)
	defer l.callingPendingFunctors.Store(false)

	l.mu.Lock()
	n := l.pending.Length()
	fns := make([]func(), 0, n)
	for i := 0; i < n; i++ {
		fns = append(fns, l.pending.Remove().(func()))
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Wakeup breaks the loop out of a blocking poll. No-op on platforms with
// no real wake descriptor, where Loop instead polls at a bounded
// interval.
func (l *EventLoop) Wakeup() {
	if l.wakeWriteFd < 0 {
		return
	}
	if err := writeWake(l.wakeWriteFd); err != nil {
		logging.Default().Errorf("iomux: wakeup: %v", err)
		return
	}
	if l.onWakeup != nil {
		l.onWakeup()
	}
}

func (l *EventLoop) updateChannel(ch *Channel) {
	l.assertInLoopThread()
	if err := l.p.updateChannel(ch); err != nil {
		logging.Default().Errorf("iomux: updateChannel fd=%d: %v", ch.Fd(), err)
	}
}

func (l *EventLoop) removeChannel(ch *Channel) {
	l.assertInLoopThread()
	if err := l.p.removeChannel(ch); err != nil {
		logging.Default().Errorf("iomux: removeChannel fd=%d: %v", ch.Fd(), err)
	}
}

// HasChannel reports whether fd is currently registered with this
// loop's Poller.
func (l *EventLoop) HasChannel(fd int) bool {
	l.assertInLoopThread()
	return l.p.hasChannel(fd)
}

// IsInLoopThread reports whether the calling goroutine is running on
// this loop's pinned OS thread.
func (l *EventLoop) IsInLoopThread() bool {
	return currentThreadID() == l.threadID
}

func (l *EventLoop) assertInLoopThread() {
	l.AssertInLoopThread()
}

// AssertInLoopThread panics if the calling goroutine is not running on
// this loop's pinned OS thread. This assertion is the linchpin of the
// whole concurrency model: every exported mutator on Channel, Poller,
// and TcpConnection routes through it, directly or via RunInLoop.
func (l *EventLoop) AssertInLoopThread() {
	if !l.IsInLoopThread() {
		panic(fmt.Sprintf("iomux: operation invoked from thread %d, loop owned by thread %d",
			currentThreadID(), l.threadID))
	}
}

// ThreadID returns the native OS thread id this loop is pinned to.
func (l *EventLoop) ThreadID() int64 { return l.threadID }

// SetPollTimeout overrides the default poll-wait ceiling. Must be
// called before Loop starts.
func (l *EventLoop) SetPollTimeout(d time.Duration) {
	if d > 0 {
		l.pollTimeout = d
	}
}

// Close releases the Poller and wake-up descriptor. Must be called
// after Loop returns.
func (l *EventLoop) Close() error {
	if l.wakeChannel != nil {
		l.wakeChannel.DisableAll()
		l.wakeChannel.Remove()
	}
	_ = closeWakeFd(l.wakeReadFd, l.wakeWriteFd)
	return l.p.close()
}

// lockAndRunOnNewThread is used by Thread to guarantee LockOSThread is
// called before the loop it owns is constructed.
func lockAndRunOnNewThread(fn func()) {
	runtime.LockOSThread()
	fn()
}
