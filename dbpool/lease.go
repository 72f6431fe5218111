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

	liberr "github.com/nabbar/reactord/errors"
)

// Lease is the scoped-acquisition wrapper equivalent to the legacy
// SqlConnRAII: it acquires a handle on construction and must be released
// exactly once, normally via a deferred call right after NewLease
// succeeds.
//
//	lease, err := dbpool.NewLease(ctx, pool)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//	lease.Handle().DB().Where(...)
type Lease struct {
	pool *Pool
	h    *Handle
	once sync.Once
}

// NewLease acquires a handle from pool, blocking per Pool.Acquire's rules.
func NewLease(ctx context.Context, pool *Pool) (*Lease, liberr.Error) {
	if pool == nil {
		return nil, ErrorParamsEmpty.Error(nil)
	}

	h, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &Lease{pool: pool, h: h}, nil
}

// Handle returns the leased handle for query building.
func (l *Lease) Handle() *Handle {
	return l.h
}

// Release returns the handle to the pool. Safe to call more than once;
// only the first call has effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.pool.Release(l.h)
	})
}
