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

	liberr "github.com/nabbar/reactord/errors"
)

// epoller wraps one epoll instance, equivalent to the legacy Epoller
// class's AddFd/ModFd/DelFd/Wait over an epoll_event array.
type epoller struct {
	fd     int
	events []unix.EpollEvent
}

func newEpoller(maxEvents int) (*epoller, liberr.Error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		e := ErrorEpollCreate.Error(nil)
		e.Add(err)
		return nil, e
	}

	return &epoller{fd: fd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

func (e *epoller) add(fd int, events uint32) liberr.Error {
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events}); err != nil {
		ce := ErrorEpollCtl.Error(nil)
		ce.Add(err)
		return ce
	}
	return nil
}

func (e *epoller) modify(fd int, events uint32) liberr.Error {
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events}); err != nil {
		ce := ErrorEpollCtl.Error(nil)
		ce.Add(err)
		return ce
	}
	return nil
}

func (e *epoller) remove(fd int) liberr.Error {
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		ce := ErrorEpollCtl.Error(nil)
		ce.Add(err)
		return ce
	}
	return nil
}

// wait blocks up to timeoutMs (-1 forever, 0 non-blocking) and returns the
// ready slice of this call's events, reusing its internal buffer.
func (e *epoller) wait(timeoutMs int) ([]unix.EpollEvent, liberr.Error) {
	n, err := unix.EpollWait(e.fd, e.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		ce := ErrorEpollWait.Error(nil)
		ce.Add(err)
		return nil, ce
	}
	return e.events[:n], nil
}

func (e *epoller) close() error {
	return unix.Close(e.fd)
}

// triggerFlags translates a TriggerMode into the epoll bits to OR onto
// EPOLLIN: edge mode adds EPOLLET, and oneshot (set by the reactor for every
// accepted connection, in either mode) adds one-shot re-arming so a burst
// of readiness on one fd can't be handled by two worker goroutines at once.
func triggerFlags(mode TriggerMode, oneshot bool) uint32 {
	var flags uint32 = unix.EPOLLIN | unix.EPOLLRDHUP
	if mode == EdgeTriggered {
		flags |= unix.EPOLLET
	}
	if oneshot {
		flags |= unix.EPOLLONESHOT
	}
	return flags
}
