//go:build linux
// +build linux

// File: buffer/readfd_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ReadFD performs a two-iovec readv trick: the first iovec is the
// buffer's writable tail, the second a fixed-size on-stack extension
// array. A single syscall reads into both, and bytes landing in the
// extension are appended only when the first iovec filled up, avoiding
// a pre-emptive grow for the common small-message case.

package buffer

import "golang.org/x/sys/unix"

const extensionSize = 65536

func (b *Buffer) ReadFD(fd int) (int, error) {
	var extrabuf [extensionSize]byte

	writable := b.WritableBytes()

	var iovs [][]byte
	switch {
	case writable == 0:
		// The writable tail is completely full: b.buf[b.writeIndex:] is
		// an empty slice, so read into the extension buffer only.
		iovs = [][]byte{extrabuf[:]}
	case writable >= extensionSize:
		// The buffer already has ample room, don't bother with the
		// second iovec at all.
		iovs = [][]byte{b.buf[b.writeIndex : b.writeIndex+writable]}
	default:
		iovs = [][]byte{
			b.buf[b.writeIndex : b.writeIndex+writable],
			extrabuf[:],
		}
	}

	n, err := unix.Readv(fd, iovs)
	if n <= 0 {
		return n, err
	}

	if n <= writable {
		b.writeIndex += n
	} else {
		b.writeIndex += writable
		b.Append(extrabuf[:n-writable])
	}
	return n, err
}
