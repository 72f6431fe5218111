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

package dbpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	liberr "github.com/nabbar/reactord/errors"
	errpool "github.com/nabbar/reactord/errors/pool"
	liblog "github.com/nabbar/reactord/logger"
)

// Pool is a fixed-size, pre-connected set of MySQL handles. The total
// number of handles never grows past Config.PoolSize: a caller that finds
// the pool exhausted blocks on the semaphore instead of opening a new
// connection, exactly as the legacy connSize-bounded queue did.
//
// The acquire order matters: the semaphore is always acquired before the
// mutex guarding the free list is taken, never the other way around. If
// the mutex were taken first, a goroutine could hold the lock while every
// handle is checked out and block every other acquirer and releaser alike
// behind it; acquiring the semaphore first guarantees the mutex is only
// ever held for the brief free-list splice.
type Pool struct {
	cfg Config
	log func() liblog.Logger

	sem *semaphore.Weighted

	mu     sync.Mutex
	free   []*Handle
	closed bool
}

// New pre-opens cfg.PoolSize handles and returns the ready pool. If any
// handle fails to open, every handle opened so far is closed and an error
// is returned: the pool is all-or-nothing at startup.
func New(cfg Config, log func() liblog.Logger) (*Pool, liberr.Error) {
	return newPool(cfg, log, openHandle)
}

// newPool is the constructor actually doing the work; New binds it to the
// real openHandle, tests bind it to a fake that never dials a database so
// the free-list/semaphore invariants can be exercised in isolation.
func newPool(cfg Config, log func() liblog.Logger, open func(Config, func() liblog.Logger) (*Handle, liberr.Error)) (*Pool, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:  cfg,
		log:  log,
		sem:  semaphore.NewWeighted(int64(cfg.PoolSize)),
		free: make([]*Handle, 0, cfg.PoolSize),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		h, err := open(cfg, log)
		if err != nil {
			_ = p.Close()
			return nil, err
		}

		p.free = append(p.free, h)
	}

	if p.log != nil && p.log() != nil {
		p.log().Info("dbpool: opened %d handles to %s:%d/%s", cfg.PoolSize, cfg.Host, cfg.Port, cfg.DBName)
	}

	return p, nil
}

// Acquire blocks until a handle is available or ctx is done, then removes
// it from the free list. Callers must return it via Release, normally
// through NewLease's deferred Release.
func (p *Pool) Acquire(ctx context.Context) (*Handle, liberr.Error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return nil, ErrorPoolClosed.Error(nil)
	}

	var cancel context.CancelFunc
	if p.cfg.AcquireTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		e := ErrorPoolAcquire.Error(nil)
		e.Add(err)
		return nil, e
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.sem.Release(1)
		return nil, ErrorPoolClosed.Error(nil)
	}

	h := p.free[0]
	p.free = p.free[1:]

	return h, nil
}

// Release returns a handle to the free list and wakes one blocked
// acquirer. The mutex push happens before the semaphore post so a waiter
// released by the semaphore never races ahead of the handle it is meant
// to receive. A handle released after Close has already run is closed
// directly instead of being pushed onto the (already drained) free list.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = h.close()
		return
	}
	p.free = append(p.free, h)
	p.mu.Unlock()

	p.sem.Release(1)
}

// Close drains and closes every handle currently on the free list and
// marks the pool closed. Handles checked out at the time of the call are
// closed as they are returned via Release finding p.closed set — callers
// are expected to stop acquiring before calling Close.
func (p *Pool) Close() liberr.Error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	errs := errpool.New()
	for _, h := range p.free {
		errs.Add(h.close())
	}
	p.free = nil

	if errs.Len() == 0 {
		return nil
	}

	outer := ErrorPoolCloseHandle.Error(nil)
	outer.Add(errs.Slice()...)
	return outer
}

// Len reports the number of handles currently free, for diagnostics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.free)
}
