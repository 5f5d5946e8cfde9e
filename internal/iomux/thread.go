// File: internal/iomux/thread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread runs a function on a freshly spawned, OS-thread-pinned
// goroutine and publishes that thread's native id synchronously before
// Start returns, using an unbuffered "started" channel as the
// hand-off instead of a POSIX semaphore.

package iomux

import (
	"fmt"
	"sync/atomic"
)

var threadSeq atomic.Int64

// Thread wraps a single goroutine pinned to its own OS thread for its
// entire life, used to host one EventLoop.
type Thread struct {
	name string
	fn   func()

	started atomic.Bool
	joined  atomic.Bool

	tid  atomic.Int64
	done chan struct{}
}

// NewThread creates a Thread that will run fn once Start is called. If
// name is empty, a sequential default ("Thread1", "Thread2", ...) is
// assigned.
func NewThread(fn func(), name string) *Thread {
	if name == "" {
		name = fmt.Sprintf("Thread%d", threadSeq.Add(1))
	}
	return &Thread{name: name, fn: fn, done: make(chan struct{})}
}

func (t *Thread) Name() string { return t.name }

// Start spawns the goroutine and blocks until its native thread id has
// been published, so Tid is guaranteed valid for any caller that has
// observed Start's return.
func (t *Thread) Start() {
	t.started.Store(true)
	tidReady := make(chan struct{})

	go func() {
		defer close(t.done)
		lockAndRunOnNewThread(func() {
			t.tid.Store(currentThreadID())
			close(tidReady)
			t.fn()
		})
	}()

	<-tidReady
}

// Join blocks until the thread's function has returned.
func (t *Thread) Join() {
	t.joined.Store(true)
	<-t.done
}

// Tid returns the native OS thread id, valid only after Start has
// returned.
func (t *Thread) Tid() int64 { return t.tid.Load() }
