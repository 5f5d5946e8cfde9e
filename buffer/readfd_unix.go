//go:build !linux && !windows
// +build !linux,!windows

// File: buffer/readfd_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BSD/Darwin fallback: a single unix.Read into the writable tail,
// growing first if the tail is smaller than the extension size the
// Linux backend would have scattered into. Simpler than the readv
// trick, at the cost of one extra grow on the first large message.

package buffer

import "golang.org/x/sys/unix"

const extensionSize = 65536

func (b *Buffer) ReadFD(fd int) (int, error) {
	if b.WritableBytes() < extensionSize {
		b.ensureWritableBytes(extensionSize)
	}
	n, err := unix.Read(fd, b.buf[b.writeIndex:])
	if n > 0 {
		b.writeIndex += n
	}
	return n, err
}
