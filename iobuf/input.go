// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SharedInputBuffer bridges the non-blocking reactor thread, which
// appends decoded entity bytes, and a blocking worker goroutine, which
// consumes them. It is a compacting FIFO rather than a true ring: the
// capacity is small relative to a TCP segment so the extra copy on
// compaction is not a hot-path concern, and it keeps the invariants
// easy to verify.

package iobuf

import (
	"io"
	"sync"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/pool"
)

// SharedInputBuffer is safe for exactly one reactor-thread producer and
// one worker-thread consumer at a time.
type SharedInputBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	data     []byte
	capacity int
	bufPool  pool.BytePool

	eof      bool
	shutdown bool
	full     bool

	ioControl api.IOControl
}

// NewSharedInputBuffer takes its backing array from bufPool, or
// allocates a capacity-sized one when bufPool is nil, in which case the
// array is never recycled.
func NewSharedInputBuffer(capacity int, ioControl api.IOControl, bufPool pool.BytePool) *SharedInputBuffer {
	var data []byte
	if bufPool != nil {
		data = bufPool.Get()[:0]
	} else {
		data = make([]byte, 0, capacity)
	}
	b := &SharedInputBuffer{
		data:      data,
		capacity:  capacity,
		bufPool:   bufPool,
		ioControl: ioControl,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// ConsumeContent drains as much as currently fits from dec into the
// buffer without blocking. It is called from the reactor thread.
// endOfEntity, once observed, marks the buffer EOF after the currently
// buffered bytes are drained by the reader.
func (b *SharedInputBuffer) ConsumeContent(dec api.Decoder) (total int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutdown {
		return 0, api.ErrInterrupted
	}

	for {
		avail := b.capacity - len(b.data)
		if avail <= 0 {
			if !b.full {
				b.full = true
				b.ioControl.SuspendInput()
			}
			return total, nil
		}

		end := len(b.data) + avail
		n, endOfEntity, derr := dec.Decode(b.data[len(b.data):end:end])
		if n > 0 {
			b.data = b.data[:len(b.data)+n]
			total += n
			b.cond.Broadcast()
		}
		if derr != nil {
			return total, derr
		}
		if endOfEntity {
			b.eof = true
			b.cond.Broadcast()
			return total, nil
		}
		if n == 0 {
			return total, nil
		}
	}
}

// Read blocks until at least one byte is available, EOF is reached, or
// the connection is shut down. It is called from a worker goroutine.
// Once the buffer has been full, input is requested again only after
// the reader has drained it to half its capacity or less.
func (b *SharedInputBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.data) == 0 && !b.eof && !b.shutdown {
		b.cond.Wait()
	}
	if b.shutdown {
		return 0, api.ErrInterrupted
	}
	if len(b.data) == 0 && b.eof {
		return 0, io.EOF
	}

	n := copy(p, b.data)
	b.data = b.data[:copy(b.data, b.data[n:])]

	if b.full && len(b.data) <= b.capacity/2 {
		b.full = false
		b.ioControl.RequestInput()
	}
	return n, nil
}

// Reset clears buffered content for reuse by the next pipelined request
// on the same connection. It must not be called after Shutdown.
func (b *SharedInputBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
	b.eof = false
	b.full = false
}

// Shutdown wakes any blocked reader with api.ErrInterrupted and is
// permanent: no further Reset or ConsumeContent has any effect. The
// backing array, if pooled, is returned for the next connection to
// reuse.
func (b *SharedInputBuffer) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = true
	if b.bufPool != nil && b.data != nil {
		b.bufPool.Put(b.data[:cap(b.data)])
		b.data = nil
	}
	b.cond.Broadcast()
}

// Len reports the number of bytes currently buffered, for tests and
// debug probes.
func (b *SharedInputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
