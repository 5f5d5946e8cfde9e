//go:build linux
// +build linux

// File: buffer/readfd_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer_test

import (
	"testing"

	"golang.org/x/sys/unix"
)

func socketPairForRead(t *testing.T) (ours, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestReadFDFillsFromAFreshBuffer(t *testing.T) {
	ours, peer := socketPairForRead(t)
	b := newTestBuffer(t)

	if _, err := unix.Write(peer, []byte("short message")); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := b.ReadFD(ours)
	if err != nil {
		t.Fatalf("ReadFD: %v", err)
	}
	if n != len("short message") {
		t.Fatalf("ReadFD returned n=%d, want %d", n, len("short message"))
	}
	if b.RetrieveAllString() != "short message" {
		t.Fatalf("buffer contents = %q, want %q", b.Peek(), "short message")
	}
}

func TestReadFDWithNoWritableTailDoesNotPanic(t *testing.T) {
	ours, peer := socketPairForRead(t)
	b := newTestBuffer(t)

	// Drive WritableBytes() to exactly zero without draining, the way a
	// framing handler that deliberately leaves bytes in the input buffer
	// would: fill the buffer to capacity via Append, then read more.
	b.Append(make([]byte, b.WritableBytes()))
	if b.WritableBytes() != 0 {
		t.Fatalf("WritableBytes() = %d after filling, want 0", b.WritableBytes())
	}

	if _, err := unix.Write(peer, []byte("spill")); err != nil {
		t.Fatalf("write: %v", err)
	}

	before := b.ReadableBytes()
	n, err := b.ReadFD(ours)
	if err != nil {
		t.Fatalf("ReadFD: %v", err)
	}
	if n != len("spill") {
		t.Fatalf("ReadFD returned n=%d, want %d", n, len("spill"))
	}
	if b.ReadableBytes() != before+n {
		t.Fatalf("ReadableBytes() = %d, want %d", b.ReadableBytes(), before+n)
	}
}

func TestReadFDSpillsIntoExtensionBuffer(t *testing.T) {
	ours, peer := socketPairForRead(t)
	b := newTestBuffer(t)

	// Exceed the buffer's initial writable capacity so ReadFD must use
	// its extension iovec and append the remainder via Append.
	big := make([]byte, 200000)
	for i := range big {
		big[i] = byte('a' + i%26)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		off := 0
		for off < len(big) {
			n, err := unix.Write(peer, big[off:])
			if err != nil {
				return
			}
			off += n
		}
	}()

	total := 0
	got := make([]byte, 0, len(big))
	for total < len(big) {
		n, err := b.ReadFD(ours)
		if err != nil {
			t.Fatalf("ReadFD: %v", err)
		}
		if n <= 0 {
			continue
		}
		total += n
		got = append(got, []byte(b.RetrieveAllString())...)
	}
	<-done

	if len(got) != len(big) {
		t.Fatalf("read %d bytes total, want %d", len(got), len(big))
	}
	for i := range big {
		if got[i] != big[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], big[i])
		}
	}
}
