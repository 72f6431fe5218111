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

package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/nabbar/reactord/bytebuffer"
	"github.com/nabbar/reactord/httpproto"
)

// connection holds the per-socket state the reactor threads through one
// readiness event at a time: its buffers, the request currently being
// assembled, and the timer id tracking its idle deadline.
type connection struct {
	fd int

	readBuf  *bytebuffer.Buffer
	writeBuf *bytebuffer.Buffer

	req  *httpproto.Request
	resp *httpproto.Response

	timerID uint64

	// writing is true once a response has been fully built and queued;
	// the reactor then waits for EPOLLOUT instead of EPOLLIN on this fd.
	writing bool

	// headersSent and bodyOffset track progress of a response that spans
	// more than one writable event.
	headersSent bool
	bodyOffset  int

	// closed is set by close and checked by every worker-pool callback
	// before it touches fd again, so a buildResponse still running after
	// the timer (or a peer hangup) has closed and possibly recycled fd
	// can't re-arm or write to it.
	closed bool
}

// reset prepares the connection for the next pipelined request on a
// keep-alive socket.
func (c *connection) reset(resourceDir string) {
	_ = c.resp.Unmap()

	c.req = httpproto.New()
	c.resp = httpproto.NewResponse(resourceDir)
	c.writing = false
	c.headersSent = false
	c.bodyOffset = 0
}

func newConnection(fd int, resourceDir string, timerID uint64) *connection {
	return &connection{
		fd:       fd,
		readBuf:  bytebuffer.New(2048),
		writeBuf: bytebuffer.New(2048),
		req:      httpproto.New(),
		resp:     httpproto.NewResponse(resourceDir),
		timerID:  timerID,
	}
}

// close releases the connection's resources and marks it closed. It is
// idempotent: a second call (e.g. a timer firing after the write path
// already closed fd) is a no-op rather than double-closing a recycled fd.
func (c *connection) close() {
	if c.closed {
		return
	}
	c.closed = true

	if c.resp != nil {
		_ = c.resp.Unmap()
	}
	_ = unix.Close(c.fd)
}
