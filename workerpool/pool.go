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

package workerpool

import (
	"sync"

	liberr "github.com/nabbar/reactord/errors"
	liblog "github.com/nabbar/reactord/logger"
)

// Future is returned by Submit and resolves once the submitted task has
// run, exposing its result the way the legacy ThreadPool::Submit's
// std::future<T> did.
type Future struct {
	done chan struct{}
	res  interface{}
	err  error
}

// Wait blocks until the task completes and returns its result.
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.res, f.err
}

// Pool is a fixed number of goroutines draining a shared, unbuffered task
// channel; no task is queued beyond the one a free worker is receiving.
// Stop closes the channel and waits for every worker to exit,
// mirroring the legacy ThreadPool destructor (stop flag + notify_all +
// join every thread).
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool

	log func() liblog.Logger
}

// New starts n worker goroutines pulling from a shared task channel.
func New(n int, log func() liblog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}

	p := &Pool{
		tasks: make(chan func()),
		log:   log,
	}

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.runSafely(task)
	}
}

// runSafely recovers a panicking task so one bad handler never kills a
// worker goroutine and shrinks the pool's effective concurrency.
func (p *Pool) runSafely(task func()) {
	defer func() {
		if r := recover(); r != nil && p.log != nil && p.log() != nil {
			p.log().Error("workerpool: recovered panic in task: %v", r)
		}
	}()

	task()
}

// Submit hands fn to the next free worker. Because the task channel is
// unbuffered, it blocks until a worker is ready to receive fn.
func (p *Pool) Submit(fn func()) liberr.Error {
	if fn == nil {
		return ErrorParamsEmpty.Error(nil)
	}

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped {
		return ErrorPoolStopped.Error(nil)
	}

	p.tasks <- fn
	return nil
}

// SubmitFuture enqueues fn and returns a Future resolving to its result,
// the Go analogue of Submit<F,Args...>'s std::future return value.
func (p *Pool) SubmitFuture(fn func() (interface{}, error)) (*Future, liberr.Error) {
	f := &Future{done: make(chan struct{})}

	err := p.Submit(func() {
		f.res, f.err = fn()
		close(f.done)
	})
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Stop closes the task queue and blocks until every worker has drained it
// and exited. Submit called after Stop returns ErrorPoolStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}
