// File: buffer/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer is a growable byte-stream container for one TcpConnection's
// input or output side: an append-only write cursor and a drain-only
// read cursor over a single backing slice, laid out as the classic
// prependable/readable/writable region triple, and reusing the
// NUMA-aware api.BufferPool for the backing allocation instead of a
// bare make([]byte, ...).

package buffer

import (
	"github.com/momentics/tcpreactor/api"
)

const (
	// kCheapPrepend reserves front slack so a protocol layer above this
	// core can prepend a length header without reallocating. Nothing in
	// this core uses it directly.
	kCheapPrepend = 8
	kInitialSize  = 1024
)

// Buffer holds one direction (read or write) of a connection's byte
// stream. Not safe for concurrent use — per the concurrency model, a
// connection's buffers are touched only from its owning EventLoop.
type Buffer struct {
	pool          api.BufferPool
	numaPreferred int

	backing    api.Buffer
	buf        []byte
	readIndex  int
	writeIndex int
}

// New creates an empty Buffer backed by pool, preferring allocations
// from numaPreferred (-1 for "no preference").
func New(pool api.BufferPool, numaPreferred int) *Buffer {
	b := &Buffer{pool: pool, numaPreferred: numaPreferred}
	b.backing = pool.Get(kCheapPrepend+kInitialSize, numaPreferred)
	b.buf = b.backing.Bytes()
	b.readIndex = kCheapPrepend
	b.writeIndex = kCheapPrepend
	return b
}

// Release returns the backing allocation to its pool. The Buffer must
// not be used afterward.
func (b *Buffer) Release() {
	if b.backing != nil {
		b.pool.Put(b.backing)
		b.backing = nil
		b.buf = nil
	}
}

func (b *Buffer) ReadableBytes() int      { return b.writeIndex - b.readIndex }
func (b *Buffer) WritableBytes() int      { return len(b.buf) - b.writeIndex }
func (b *Buffer) PrependableBytes() int   { return b.readIndex }

// Peek returns a view of the readable region. The caller must not
// retain it past the next mutating call on b.
func (b *Buffer) Peek() []byte {
	return b.buf[b.readIndex:b.writeIndex]
}

// Retrieve advances the read cursor by n, which must not exceed
// ReadableBytes. Resets both cursors to the front of the buffer once it
// empties, bounding unbounded growth from a read-drain-refill pattern.
func (b *Buffer) Retrieve(n int) {
	if n < b.ReadableBytes() {
		b.readIndex += n
		return
	}
	b.RetrieveAll()
}

// RetrieveAll discards every readable byte.
func (b *Buffer) RetrieveAll() {
	b.readIndex = kCheapPrepend
	b.writeIndex = kCheapPrepend
}

// RetrieveAllString drains and returns every readable byte as a string.
func (b *Buffer) RetrieveAllString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// Append copies data onto the writable tail, growing the backing slice
// first if necessary.
func (b *Buffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.ensureWritableBytes(len(data))
	copy(b.buf[b.writeIndex:], data)
	b.writeIndex += len(data)
}

// ensureWritableBytes guarantees at least n writable bytes, compacting
// the existing readable region toward the front before growing rather
// than allocating a larger backing slice outright.
func (b *Buffer) ensureWritableBytes(n int) {
	if b.WritableBytes() >= n {
		return
	}

	readable := b.ReadableBytes()
	if b.PrependableBytes()+b.WritableBytes() >= kCheapPrepend+n {
		copy(b.buf[kCheapPrepend:], b.buf[b.readIndex:b.writeIndex])
		b.readIndex = kCheapPrepend
		b.writeIndex = b.readIndex + readable
		return
	}

	newSize := kCheapPrepend + readable + n
	if newSize < 2*len(b.buf) {
		newSize = 2 * len(b.buf)
	}
	next := b.pool.Get(newSize, b.numaPreferred)
	nbuf := next.Bytes()
	copy(nbuf[kCheapPrepend:], b.buf[b.readIndex:b.writeIndex])

	b.pool.Put(b.backing)
	b.backing = next
	b.buf = nbuf
	b.readIndex = kCheapPrepend
	b.writeIndex = b.readIndex + readable
}
