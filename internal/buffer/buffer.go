// Package buffer implements the growable byte buffer every connection
// reads into and writes out of: a contiguous slice split into three
// regions, "| prependable | readable | writable |", with scatter-read
// and single-shot-write helpers.
package buffer

import (
	"golang.org/x/sys/unix"
)

// extraBufSize is the stack-local scratch space ReadFrom uses when the
// writable region runs out mid-read.
const extraBufSize = 65536

// Buffer is a non-thread-safe growable byte store. A Connection owns one
// for reads and one for writes; only the worker task holding that
// connection for the duration of a unit of work touches it.
type Buffer struct {
	buf      []byte
	readPos  int
	writePos int
}

// New returns a Buffer with the given initial capacity.
func New(size int) *Buffer {
	return &Buffer{buf: make([]byte, size)}
}

// ReadableBytes returns the number of unread bytes.
func (b *Buffer) ReadableBytes() int { return b.writePos - b.readPos }

// WritableBytes returns the remaining capacity after the write position.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writePos }

// PrependableBytes returns the reclaimable slack before the read position.
func (b *Buffer) PrependableBytes() int { return b.readPos }

// Peek returns the readable region without consuming it.
func (b *Buffer) Peek() []byte { return b.buf[b.readPos:b.writePos] }

// Retrieve advances the read position by n, clamped to ReadableBytes. If
// the read position catches the write position, both reset to 0 so future
// writes reuse the front of the array.
func (b *Buffer) Retrieve(n int) {
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.readPos += n
}

// RetrieveAll resets both positions to the start of the array.
func (b *Buffer) RetrieveAll() {
	b.readPos = 0
	b.writePos = 0
}

// RetrieveUntil advances the read position up to (but not past) offset,
// measured from the start of the underlying array. offset is clamped to
// [readPos, writePos] rather than trusted, so a caller passing a stale
// or out-of-range offset can't corrupt the buffer's invariants.
func (b *Buffer) RetrieveUntil(offset int) {
	if offset < b.readPos {
		return
	}
	if offset > b.writePos {
		offset = b.writePos
	}
	b.Retrieve(offset - b.readPos)
}

// RetrieveAsString copies out and retrieves up to n bytes.
func (b *Buffer) RetrieveAsString(n int) string {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	s := string(b.buf[b.readPos : b.readPos+n])
	b.Retrieve(n)
	return s
}

// BeginWrite returns the writable region.
func (b *Buffer) BeginWrite() []byte { return b.buf[b.writePos:] }

// EnsureWritable guarantees at least n writable bytes, compacting or
// growing the underlying array as needed.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// Append copies p into the writable region, growing as needed.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.EnsureWritable(len(p))
	copy(b.buf[b.writePos:], p)
	b.writePos += len(p)
}

// AppendString is a convenience wrapper over Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

func (b *Buffer) makeSpace(n int) {
	if b.PrependableBytes()+b.WritableBytes() < n {
		grown := make([]byte, b.writePos+n)
		copy(grown, b.buf[:b.writePos])
		b.buf = grown
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf, b.buf[b.readPos:b.writePos])
	b.readPos = 0
	b.writePos = readable
}

// ReadFrom performs one scatter-read from fd into the writable region plus
// a 64KiB stack extra, growing the buffer if the extra was needed.
func (b *Buffer) ReadFrom(fd int) (int, error) {
	var extra [extraBufSize]byte
	writable := b.WritableBytes()

	var iov [][]byte
	if writable > 0 {
		iov = append(iov, b.buf[b.writePos:b.writePos+writable])
	}
	iov = append(iov, extra[:])

	n, err := unix.Readv(fd, iov)
	if err != nil {
		return 0, err
	}
	if n <= writable {
		b.writePos += n
	} else {
		b.writePos = len(b.buf)
		b.Append(extra[:n-writable])
	}
	return n, nil
}

// WriteTo performs a single write(2) of the readable region and advances
// the read position by what made it out.
func (b *Buffer) WriteTo(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if n > 0 {
		b.Retrieve(n)
	}
	return n, err
}
