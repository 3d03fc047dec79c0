// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches blocking worker routines off the reactor thread
// onto a fixed-then-resizable pool of goroutines. Each worker drains a
// local, uncontended RingBuffer first; Submit falls back to a shared
// eapache/queue.Queue overflow only once a worker's local ring is full,
// so the common case never touches the global queue at all.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

type TaskFunc func()

const localRingCapacity = 256

// Executor implements api.Executor. mu/cond guard both the shared
// overflow queue and the bookkeeping fields; pushes onto a worker's
// local ring always happen with mu held, so each ring sees a single
// writer at a time even though Submit can be called from many
// goroutines, preserving the single-producer assumption RingBuffer
// requires. Each ring has exactly one reader: the worker that owns it.
type Executor struct {
	mu       sync.Mutex
	cond     *sync.Cond
	overflow *queue.Queue

	rings []*RingBuffer[TaskFunc]
	next  int // round-robin cursor for Submit's ring choice

	workerCount int
	generation  int // bumped by Resize/Close to retire old workers
	closed      bool
	wg          sync.WaitGroup
}

func NewExecutor(numWorkers, numaNode int) *Executor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	e := &Executor{overflow: queue.New()}
	e.cond = sync.NewCond(&e.mu)
	e.spawn(numWorkers)
	return e
}

// spawn must be called with e.mu held.
func (e *Executor) spawn(n int) {
	gen := e.generation
	for i := 0; i < n; i++ {
		ring := NewRingBuffer[TaskFunc](localRingCapacity)
		e.rings = append(e.rings, ring)
		e.workerCount++
		e.wg.Add(1)
		go e.run(gen, ring)
	}
}

func (e *Executor) run(gen int, ring *RingBuffer[TaskFunc]) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for ring.Len() == 0 && e.overflow.Length() == 0 && !e.closed && gen == e.generation {
			e.cond.Wait()
		}
		if e.closed || gen != e.generation {
			e.mu.Unlock()
			return
		}
		task, ok := ring.Dequeue()
		if !ok {
			if item := e.overflow.Remove(); item != nil {
				task, ok = item.(TaskFunc)
			}
		}
		e.mu.Unlock()

		if ok {
			task()
		}
	}
}

// Submit schedules task for execution. It returns ErrExecutorClosed
// once Close has been called. The parameter is plain func() rather
// than TaskFunc so *Executor satisfies api.Executor directly.
func (e *Executor) Submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	if len(e.rings) == 0 {
		e.overflow.Add(TaskFunc(task))
		e.cond.Signal()
		return nil
	}
	ring := e.rings[e.next%len(e.rings)]
	e.next++
	if !ring.Enqueue(TaskFunc(task)) {
		e.overflow.Add(TaskFunc(task))
	}
	e.cond.Signal()
	return nil
}

func (e *Executor) NumWorkers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workerCount
}

// Resize retires every current worker and starts newCount fresh ones.
// Any task still sitting in a retired worker's local ring is
// resubmitted to the shared overflow queue so the new generation picks
// it up; in-flight tasks already dequeued finish on their own.
func (e *Executor) Resize(newCount int) {
	if newCount <= 0 {
		newCount = 1
	}
	e.mu.Lock()
	for _, ring := range e.rings {
		for {
			task, ok := ring.Dequeue()
			if !ok {
				break
			}
			e.overflow.Add(task)
		}
	}
	e.rings = nil
	e.next = 0
	e.generation++
	e.workerCount = 0
	e.cond.Broadcast()
	e.spawn(newCount)
	e.mu.Unlock()
}

// Close stops accepting new work and waits for every worker goroutine
// to exit.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}
