// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SharedOutputBuffer mirrors SharedInputBuffer for the opposite
// direction: a worker goroutine blocks writing response bytes in,
// the reactor thread drains them out through an Encoder without
// blocking.

package iobuf

import (
	"sync"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/pool"
)

type SharedOutputBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	data     []byte
	capacity int
	bufPool  pool.BytePool

	writeCompleted bool // worker has written every response byte
	flushed        bool // encoder has accepted every response byte
	encoderDone    bool // Encoder.Complete has been called
	shutdown       bool

	ioControl api.IOControl
}

// NewSharedOutputBuffer takes its backing array from bufPool, or
// allocates a capacity-sized one when bufPool is nil, in which case the
// array is never recycled.
func NewSharedOutputBuffer(capacity int, ioControl api.IOControl, bufPool pool.BytePool) *SharedOutputBuffer {
	var data []byte
	if bufPool != nil {
		data = bufPool.Get()[:0]
	} else {
		data = make([]byte, 0, capacity)
	}
	b := &SharedOutputBuffer{
		data:      data,
		capacity:  capacity,
		bufPool:   bufPool,
		ioControl: ioControl,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Write copies all of p into the buffer, blocking whenever the buffer
// is full until the reactor drains it. If the connection shuts down
// first it returns the count copied so far and api.ErrInterrupted.
// Called from a worker goroutine.
func (b *SharedOutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for total < len(p) {
		for len(b.data) >= b.capacity && !b.shutdown {
			b.cond.Wait()
		}
		if b.shutdown {
			return total, api.ErrInterrupted
		}
		room := b.capacity - len(b.data)
		n := copy(b.data[len(b.data):cap(b.data)], p[total:minInt(total+room, len(p))])
		b.data = b.data[:len(b.data)+n]
		total += n
		b.ioControl.RequestOutput()
		b.cond.Broadcast()
	}
	return total, nil
}

// WriteCompleted marks every response byte as having been handed to
// Write. Called once by the worker after streaming the entity.
func (b *SharedOutputBuffer) WriteCompleted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeCompleted = true
	b.ioControl.RequestOutput()
	b.cond.Broadcast()
}

// ProduceContent drains as much as currently fits into enc without
// blocking. It is called from the reactor thread. completed becomes
// true exactly once, the call on which the final byte is flushed and
// Encoder.Complete has been invoked.
func (b *SharedOutputBuffer) ProduceContent(enc api.Encoder) (n int, completed bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutdown {
		return 0, false, api.ErrInterrupted
	}

	for len(b.data) > 0 {
		written, werr := enc.Encode(b.data)
		if written > 0 {
			b.data = b.data[:copy(b.data, b.data[written:])]
			n += written
			b.cond.Broadcast()
		}
		if werr != nil {
			return n, false, werr
		}
		if written == 0 {
			break
		}
	}

	if len(b.data) == 0 {
		if b.writeCompleted && !b.encoderDone {
			if err := enc.Complete(); err != nil {
				return n, false, err
			}
			b.encoderDone = true
			b.cond.Broadcast()
			return n, true, nil
		}
		if !b.writeCompleted {
			b.ioControl.SuspendOutput()
		}
	}
	return n, false, nil
}

// WaitDrained blocks until every byte handed to Write has been
// accepted by the encoder and, once WriteCompleted has been called,
// until the encoder has been completed. Callers that never attach an
// entity should not call this; it would wait for a WriteCompleted that
// never comes.
func (b *SharedOutputBuffer) WaitDrained() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.shutdown {
		if len(b.data) == 0 && b.writeCompleted && b.encoderDone {
			return nil
		}
		b.cond.Wait()
	}
	return api.ErrInterrupted
}

// Reset prepares the buffer for the next pipelined response on the
// same connection. Must not be called after Shutdown.
func (b *SharedOutputBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
	b.writeCompleted = false
	b.encoderDone = false
}

// Shutdown wakes any blocked writer with api.ErrInterrupted. The
// backing array, if pooled, is returned for the next connection to
// reuse.
func (b *SharedOutputBuffer) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = true
	if b.bufPool != nil && b.data != nil {
		b.bufPool.Put(b.data[:cap(b.data)])
		b.data = nil
	}
	b.cond.Broadcast()
}

func (b *SharedOutputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
