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

package timer

import (
	"sync"
	"time"

	liberr "github.com/nabbar/reactord/errors"
)

// node is one scheduled deadline callback, equivalent to the legacy
// TimerNode{id_, expires_, cb_}.
type node struct {
	id      uint64
	expires time.Time
	cb      func()
}

// Heap is a min-heap of node ordered by expires, with an id-to-index map
// so a node can be found and adjusted or deleted in O(log n) without a
// linear scan, exactly like the legacy HeapTimer's ref_ map.
//
// Not safe for concurrent use except through the exported methods, which
// all take the internal lock.
type Heap struct {
	mu   sync.Mutex
	heap []*node
	ref  map[uint64]int
}

// New returns an empty Heap.
func New() *Heap {
	return &Heap{
		heap: make([]*node, 0, 64),
		ref:  make(map[uint64]int, 64),
	}
}

// Add schedules cb to fire after d, registered under id. If id is already
// scheduled, Add behaves like Adjust and reschedules it instead of
// inserting a duplicate entry.
func (h *Heap) Add(id uint64, d time.Duration, cb func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i, ok := h.ref[id]; ok {
		h.heap[i].expires = time.Now().Add(d)
		h.siftDown(i)
		h.siftUp(i)
		return
	}

	n := &node{id: id, expires: time.Now().Add(d), cb: cb}
	h.heap = append(h.heap, n)
	i := len(h.heap) - 1
	h.ref[id] = i
	h.siftUp(i)
}

// Adjust reschedules an existing id to fire after d from now. Returns
// ErrorUnknownID if id is not currently scheduled.
func (h *Heap) Adjust(id uint64, d time.Duration) liberr.Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.ref[id]
	if !ok {
		return ErrorUnknownID.Error(nil)
	}

	h.heap[i].expires = time.Now().Add(d)
	h.siftDown(i)
	h.siftUp(i)
	return nil
}

// Del removes id from the heap without firing its callback.
func (h *Heap) Del(id uint64) liberr.Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.ref[id]
	if !ok {
		return ErrorUnknownID.Error(nil)
	}

	h.remove(i)
	return nil
}

// Tick fires and removes every node whose deadline has passed, returning
// how many were fired. Callbacks run synchronously on the caller's
// goroutine — callers that must not block the reactor loop should
// dispatch through the worker pool from inside cb.
func (h *Heap) Tick() int {
	h.mu.Lock()

	fired := make([]func(), 0)
	now := time.Now()

	for len(h.heap) > 0 && !h.heap[0].expires.After(now) {
		cb := h.heap[0].cb
		h.remove(0)
		fired = append(fired, cb)
	}

	h.mu.Unlock()

	for _, cb := range fired {
		if cb != nil {
			cb()
		}
	}

	return len(fired)
}

// GetNextTick returns the duration until the next deadline, or -1 if the
// heap is empty — the value a reactor passes straight as an epoll_wait
// timeout.
func (h *Heap) GetNextTick() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.heap) == 0 {
		return -1
	}

	d := time.Until(h.heap[0].expires)
	if d < 0 {
		return 0
	}
	return d
}

// Len reports how many deadlines are currently scheduled.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.heap)
}

// remove deletes the node at index i, swapping in the last element and
// re-heapifying, mirroring HeapTimer::Del. Caller must hold h.mu.
func (h *Heap) remove(i int) {
	last := len(h.heap) - 1
	h.swap(i, last)

	delete(h.ref, h.heap[last].id)
	h.heap = h.heap[:last]

	if i < len(h.heap) {
		h.siftDown(i)
		h.siftUp(i)
	}
}

func (h *Heap) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.ref[h.heap[i].id] = i
	h.ref[h.heap[j].id] = j
}

// siftUp restores heap order upward from i. The legacy HeapifyUp loop
// condition (`while (j >= 0)` on a size_t with the parent computed as
// `(j-1)/2`) only avoids wrapping around to SIZE_MAX because the loop body
// checks `i > 0` first via an assert outside the hot path; ported
// literally it underflows on index 0. Guarding the loop on `i > 0` before
// computing the parent index is the direct fix.
func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.heap[i].expires.Before(h.heap[parent].expires) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

// siftDown restores heap order downward from i.
func (h *Heap) siftDown(i int) {
	n := len(h.heap)
	for {
		left := 2*i + 1
		right := 2*i + 2
		smallest := i

		if left < n && h.heap[left].expires.Before(h.heap[smallest].expires) {
			smallest = left
		}
		if right < n && h.heap[right].expires.Before(h.heap[smallest].expires) {
			smallest = right
		}
		if smallest == i {
			return
		}

		h.swap(i, smallest)
		i = smallest
	}
}
