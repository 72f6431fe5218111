/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package bytebuffer

import (
	"golang.org/x/sys/unix"
)

const defaultInitSize = 1024

// stackBufSize is the size of the on-stack overflow buffer used by Fill to
// absorb a read larger than the buffer's current writable tail in a single
// syscall, instead of growing the buffer speculatively before knowing how
// much data is actually pending.
const stackBufSize = 65536

// Buffer is a single contiguous byte slice split into three regions:
//
//	[0, readIdx)            prependable / already consumed
//	[readIdx, writeIdx)     readable — data available to the caller
//	[writeIdx, len(buf))    writable — free space for the next fill
//
// It is not safe for concurrent use; each connection owns one Buffer.
type Buffer struct {
	buf      []byte
	readIdx  int
	writeIdx int
}

// New returns an empty Buffer with the given initial capacity.
func New(initSize int) *Buffer {
	if initSize <= 0 {
		initSize = defaultInitSize
	}
	return &Buffer{buf: make([]byte, initSize)}
}

// ReadableBytes returns the number of bytes available to Peek/Retrieve.
func (b *Buffer) ReadableBytes() int {
	return b.writeIdx - b.readIdx
}

// WritableBytes returns the number of bytes free at the tail of the buffer.
func (b *Buffer) WritableBytes() int {
	return len(b.buf) - b.writeIdx
}

// PrependableBytes returns the number of already-consumed bytes at the
// head of the buffer, reclaimable by a compaction.
func (b *Buffer) PrependableBytes() int {
	return b.readIdx
}

// Peek returns the readable region without consuming it.
func (b *Buffer) Peek() []byte {
	return b.buf[b.readIdx:b.writeIdx]
}

// EnsureWritable grows or compacts the buffer so that at least n bytes are
// writable at the tail.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	b.makeSpace(n)
}

// HasWritten advances the write cursor after external code has filled n
// bytes into the slice returned by BeginWrite.
func (b *Buffer) HasWritten(n int) {
	b.writeIdx += n
}

// Retrieve consumes n bytes from the head of the readable region. Once the
// readable region is fully drained, both cursors reset to zero so the next
// write starts from the front of the backing array.
func (b *Buffer) Retrieve(n int) {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	b.readIdx += n
	if b.readIdx == b.writeIdx {
		b.readIdx = 0
		b.writeIdx = 0
	}
}

// RetrieveAll discards every readable byte.
func (b *Buffer) RetrieveAll() {
	b.readIdx = 0
	b.writeIdx = 0
}

// RetrieveAllString consumes and returns every readable byte as a string.
func (b *Buffer) RetrieveAllString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// BeginWrite returns the writable tail for external code (e.g. syscall.Read)
// to fill directly; the caller must follow up with HasWritten.
func (b *Buffer) BeginWrite() []byte {
	return b.buf[b.writeIdx:]
}

// Append copies p into the writable tail, growing the buffer if needed.
func (b *Buffer) Append(p []byte) {
	b.EnsureWritable(len(p))
	copy(b.buf[b.writeIdx:], p)
	b.HasWritten(len(p))
}

// AppendString is a convenience wrapper around Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// makeSpace grows the backing array, first trying to reclaim the
// prependable region by sliding the readable bytes down to offset zero
// before allocating anything new.
func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n {
		newBuf := make([]byte, b.writeIdx+n)
		copy(newBuf, b.buf[b.readIdx:b.writeIdx])
		b.buf = newBuf
		b.writeIdx -= b.readIdx
		b.readIdx = 0
		return
	}

	readable := b.ReadableBytes()
	copy(b.buf, b.buf[b.readIdx:b.writeIdx])
	b.readIdx = 0
	b.writeIdx = readable
}

// Fill performs one readiness-triggered read from fd, using a stack buffer
// to absorb any overflow past the buffer's current writable tail so that a
// single large datagram never forces a speculative grow before the actual
// size is known. It returns the number of bytes read, or an error — io.EOF
// on orderly close, syscall.EAGAIN when the socket is not actually ready
// (relevant for level-triggered epoll).
func (b *Buffer) Fill(fd int) (int, error) {
	var stackBuf [stackBufSize]byte

	iov := make([][]byte, 0, 2)
	iov = append(iov, b.buf[b.writeIdx:])
	iov = append(iov, stackBuf[:])

	n, err := readv(fd, iov)
	if n <= 0 {
		return n, err
	}

	tailLen := len(b.buf) - b.writeIdx
	if n <= tailLen {
		b.writeIdx += n
	} else {
		b.writeIdx = len(b.buf)
		b.Append(stackBuf[:n-tailLen])
	}

	return n, err
}

// Drain performs one write of the entire readable region to fd, retrying
// on a partial write, and retrieves exactly what was written.
func (b *Buffer) Drain(fd int) (int, error) {
	total := 0
	for b.ReadableBytes() > 0 {
		n, err := unix.Write(fd, b.Peek())
		if n > 0 {
			b.Retrieve(n)
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
