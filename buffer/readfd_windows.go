//go:build windows
// +build windows

// File: buffer/readfd_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "golang.org/x/sys/windows"

const extensionSize = 65536

func (b *Buffer) ReadFD(fd int) (int, error) {
	if b.WritableBytes() < extensionSize {
		b.ensureWritableBytes(extensionSize)
	}
	var n uint32
	h := windows.Handle(fd)
	buf := b.buf[b.writeIndex:]
	err := windows.ReadFile(h, buf, &n, nil)
	if n > 0 {
		b.writeIndex += int(n)
	}
	return int(n), err
}
