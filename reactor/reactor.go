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
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactord/dbpool"
	liberr "github.com/nabbar/reactord/errors"
	liblog "github.com/nabbar/reactord/logger"
	"github.com/nabbar/reactord/timer"
	"github.com/nabbar/reactord/workerpool"
)

// Reactor is the single-thread readiness loop. It owns the listening
// socket, the epoll interest set, the idle-connection timer heap, and
// dispatches the blocking parts of request handling (stat, mmap, DB
// verification) onto a worker pool so the loop itself does not stat, mmap
// or query the database. Submitting to the pool blocks the loop while
// every worker is busy.
type Reactor struct {
	cfg  Config
	log  func() liblog.Logger
	db   *dbpool.Pool
	pool *workerpool.Pool

	listenFd int
	ep       *epoller
	timers   *timer.Heap

	mu    sync.Mutex
	conns map[int]*connection

	nextID uint64

	stop chan struct{}
}

// New builds a Reactor bound to cfg, ready for Run. db may be nil when no
// login/register endpoint is exposed.
func New(cfg Config, db *dbpool.Pool, log func() liblog.Logger) (*Reactor, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Reactor{
		cfg:    cfg,
		log:    log,
		db:     db,
		pool:   workerpool.New(cfg.WorkerCount, log),
		timers: timer.New(),
		conns:  make(map[int]*connection, cfg.MaxConnections),
		stop:   make(chan struct{}),
	}, nil
}

// Run opens the listening socket and blocks, servicing readiness events
// until Shutdown is called or an unrecoverable error occurs.
func (r *Reactor) Run() liberr.Error {
	if err := r.listen(); err != nil {
		return err
	}
	defer unix.Close(r.listenFd)

	ep, err := newEpoller(r.cfg.MaxConnections)
	if err != nil {
		return err
	}
	r.ep = ep
	defer ep.close()

	if err = ep.add(r.listenFd, triggerFlags(r.cfg.ListenTrigger, false)); err != nil {
		return err
	}

	for {
		select {
		case <-r.stop:
			r.pool.Stop()
			return nil
		default:
		}

		timeoutMs := r.nextTimeoutMs()
		events, err := ep.wait(timeoutMs)
		if err != nil {
			return err
		}

		for _, ev := range events {
			fd := int(ev.Fd)

			switch {
			case fd == r.listenFd:
				r.acceptLoop()
			case ev.Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0:
				r.closeConnection(fd)
			case ev.Events&unix.EPOLLOUT != 0:
				r.handleWritable(fd)
			case ev.Events&unix.EPOLLIN != 0:
				r.handleReadable(fd)
			}
		}

		r.timers.Tick()
	}
}

// Shutdown stops the reactor loop after the current wait returns.
func (r *Reactor) Shutdown() {
	close(r.stop)
}

func (r *Reactor) nextTimeoutMs() int {
	d := r.timers.GetNextTick()
	if d < 0 {
		return -1
	}
	ms := int(d / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	return ms
}

func (r *Reactor) listen() liberr.Error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		e := ErrorSocketCreate.Error(nil)
		e.Add(err)
		return e
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		e := ErrorSocketCreate.Error(nil)
		e.Add(err)
		return e
	}

	if r.cfg.Linger {
		_ = unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0})
	}

	addr := &unix.SockaddrInet4{Port: r.cfg.Port}
	if err = unix.Bind(fd, addr); err != nil {
		e := ErrorSocketBind.Error(nil)
		e.Add(err)
		return e
	}

	if err = unix.Listen(fd, 6); err != nil {
		e := ErrorSocketListen.Error(nil)
		e.Add(err)
		return e
	}

	r.listenFd = fd

	if r.log != nil && r.log() != nil {
		r.log().Info("reactor: listening on port %d", r.cfg.Port)
	}

	return nil
}

// acceptLoop drains the accept queue until EAGAIN, which an edge-triggered
// listening socket requires and which also picks up a burst of connections
// arriving between two epoll_wait calls.
func (r *Reactor) acceptLoop() {
	for {
		fd, _, err := unix.Accept(r.listenFd)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if r.log != nil && r.log() != nil {
				r.log().Warning("reactor: accept failed: %v", err)
			}
			return
		}

		_ = unix.SetNonblock(fd, true)

		r.mu.Lock()
		full := len(r.conns) >= r.cfg.MaxConnections
		r.mu.Unlock()

		if full {
			unix.Close(fd)
			continue
		}

		r.nextID++
		c := newConnection(fd, r.cfg.ResourcesDir, r.nextID)
		r.timers.Add(c.timerID, r.cfg.IdleTimeout, func() { r.closeConnection(fd) })

		r.mu.Lock()
		r.conns[fd] = c
		r.mu.Unlock()

		if err = r.ep.add(fd, triggerFlags(r.cfg.ConnTrigger, true)); err != nil && r.log != nil && r.log() != nil {
			r.log().Warning("reactor: epoll add failed for fd %d: %v", fd, err)
		}
	}
}

func (r *Reactor) getConn(fd int) *connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[fd]
}

func (r *Reactor) closeConnection(fd int) {
	r.mu.Lock()
	c, ok := r.conns[fd]
	if ok {
		delete(r.conns, fd)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	_ = r.ep.remove(fd)
	_ = r.timers.Del(c.timerID)
	c.close()
}

// handleReadable drains fd into the connection's read buffer and, once a
// full request is assembled, hands the blocking part of the response off
// to the worker pool.
func (r *Reactor) handleReadable(fd int) {
	c := r.getConn(fd)
	if c == nil {
		return
	}

	_ = r.timers.Adjust(c.timerID, r.cfg.IdleTimeout)

	for {
		c.readBuf.EnsureWritable(4096)
		_, err := c.readBuf.Fill(fd)
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			if err == io.EOF {
				r.closeConnection(fd)
				return
			}
			r.closeConnection(fd)
			return
		}
		if r.cfg.ConnTrigger == LevelTriggered {
			break
		}
	}

	done, perr := c.req.Parse(c.readBuf)
	if perr != nil {
		_ = r.pool.Submit(func() { r.writeResponse(fd, c, 400, false) })
		return
	}
	if !done {
		_ = r.ep.modify(fd, triggerFlags(r.cfg.ConnTrigger, true))
		return
	}

	_ = r.pool.Submit(func() { r.buildResponse(fd, c) })
}

// buildResponse performs every blocking step of handling one request
// (optional DB verification, stat+mmap of the static resource) off the
// reactor goroutine, then arms the connection for EPOLLOUT. A login or
// register submission rewrites the request path to /welcome.html or
// /error.html before the static resource is resolved, so the verification
// outcome is what actually gets served.
func (r *Reactor) buildResponse(fd int, c *connection) {
	if c.req.Tag >= 0 && r.db != nil {
		isLogin := c.req.Tag == 1
		ok, err := dbpool.VerifyUser(context.Background(), r.db, c.req.PostForm["username"], c.req.PostForm["password"], isLogin)
		if err != nil || !ok {
			c.req.Path = "/error.html"
		} else {
			c.req.Path = "/welcome.html"
		}
	}

	r.writeResponse(fd, c, 200, c.req.IsKeepAlive())
}

// writeResponse resolves c.req.Path under the forced code, writes the
// response headers, and arms fd for EPOLLOUT. c may already have been
// closed by a timer or hangup racing this worker-pool callback, so every
// touch of fd is preceded by a check of c.closed.
func (r *Reactor) writeResponse(fd int, c *connection, code int, keepAlive bool) {
	if c.closed {
		return
	}

	_ = c.resp.Prepare(code, c.req.Path, keepAlive)
	c.resp.WriteHeaders(c.writeBuf)
	c.writing = true

	if c.closed {
		return
	}

	if err := r.ep.modify(fd, epollOutFlags(r.cfg.ConnTrigger)); err != nil && r.log != nil && r.log() != nil {
		r.log().Warning("reactor: epoll modify to EPOLLOUT failed for fd %d: %v", fd, err)
	}
}

func epollOutFlags(mode TriggerMode) uint32 {
	var flags uint32 = unix.EPOLLOUT | unix.EPOLLONESHOT
	if mode == EdgeTriggered {
		flags |= unix.EPOLLET
	}
	return flags
}

// handleWritable drains the header buffer then writes the memory-mapped
// body, resuming from bodyOffset across multiple events.
func (r *Reactor) handleWritable(fd int) {
	c := r.getConn(fd)
	if c == nil || !c.writing {
		return
	}

	_ = r.timers.Adjust(c.timerID, r.cfg.IdleTimeout)

	if !c.headersSent {
		if _, err := c.writeBuf.Drain(fd); err != nil && err != unix.EAGAIN {
			r.closeConnection(fd)
			return
		}
		if c.writeBuf.ReadableBytes() > 0 {
			return
		}
		c.headersSent = true
	}

	body := c.resp.Body()
	for c.bodyOffset < len(body) {
		n, err := unix.Write(fd, body[c.bodyOffset:])
		if n > 0 {
			c.bodyOffset += n
		}
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			r.closeConnection(fd)
			return
		}
		if n == 0 {
			break
		}
	}

	if !c.req.IsKeepAlive() {
		r.closeConnection(fd)
		return
	}

	if c.closed {
		return
	}

	c.reset(r.cfg.ResourcesDir)
	_ = r.ep.modify(fd, triggerFlags(r.cfg.ConnTrigger, true))
}
