// File: internal/iomux/thread_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package iomux

import (
	"testing"
)

func TestThreadStartPublishesTidBeforeReturning(t *testing.T) {
	done := make(chan struct{})
	th := NewThread(func() {
		<-done
	}, "")
	th.Start()

	if th.Tid() == 0 {
		t.Fatalf("Tid() = 0 after Start returned, want a published native thread id")
	}
	close(done)
	th.Join()
}

func TestThreadDefaultNamingIsSequential(t *testing.T) {
	done1, done2 := make(chan struct{}), make(chan struct{})
	a := NewThread(func() { <-done1 }, "")
	b := NewThread(func() { <-done2 }, "")

	if a.Name() == "" || b.Name() == "" {
		t.Fatalf("default thread names must not be empty")
	}
	if a.Name() == b.Name() {
		t.Fatalf("two unnamed threads got the same default name %q", a.Name())
	}
	close(done1)
	close(done2)
}

func TestThreadExplicitNameIsPreserved(t *testing.T) {
	th := NewThread(func() {}, "worker-7")
	if th.Name() != "worker-7" {
		t.Fatalf("Name() = %q, want %q", th.Name(), "worker-7")
	}
}

func TestThreadJoinWaitsForCompletion(t *testing.T) {
	var ran bool
	th := NewThread(func() { ran = true }, "")
	th.Start()
	th.Join()
	if !ran {
		t.Fatalf("Join returned before the thread function ran")
	}
}
