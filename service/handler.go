// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package service wires the reactor's non-blocking FDCallback dispatch
// to a per-connection conn.State and the blocking worker.HandleRequest
// routine, the glue the reactor and worker packages assume exists but
// deliberately don't know about each other.
package service

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/conn"
	"github.com/momentics/htcore/message"
	"github.com/momentics/htcore/pool"
	"github.com/momentics/htcore/reactor"
	"github.com/momentics/htcore/wire"
	"github.com/momentics/htcore/worker"
)

// readerPool and writerPool recycle the bufio.Reader/ResponseWriter
// pair every connEntry needs, so a busy server churning through short
// keep-alive-less connections doesn't reallocate both on every Accept.
// bufio.NewReader(nil)/NewResponseWriter(io.Discard) here are throwaway
// placeholders immediately overwritten by Reset in Accept.
var (
	readerPool = pool.NewSyncPool(func() *bufio.Reader {
		return bufio.NewReader(nil)
	})
	writerPool = pool.NewSyncPool(func() *wire.ResponseWriter {
		return wire.NewResponseWriter(io.Discard)
	})
)

// rawConn is the minimal non-blocking socket contract the handler
// needs; transport.Conn satisfies it.
type rawConn interface {
	io.Reader
	io.Writer
	Fd() uintptr
	Close() error
}

// Handler binds newly accepted raw connections to the reactor and
// drains them through the HTTP/1.x wire codec and worker.HandleRequest.
type Handler struct {
	r              reactor.Reactor
	exec           api.Executor
	deps           worker.Deps
	bufferCapacity int
	ctxFactory     api.ContextFactory
	inBufPool      pool.BytePool
	outBufPool     pool.BytePool

	mu    sync.Mutex
	conns map[uintptr]*connEntry
}

type connEntry struct {
	raw rawConn
	br  *bufio.Reader // persists across pipelined requests on this conn

	state *conn.State
	enc   *wire.ResponseWriter

	// mu guards dec and awaitingHead, touched by the reactor thread's
	// onReadable/onWritable and, on pipelined reuse, by the worker
	// goroutine's continuation hook. Everything else on connEntry is
	// either immutable after Accept or owned by conn.State's own lock.
	mu           sync.Mutex
	dec          api.Decoder
	awaitingHead bool

	// inProbe/outProbe name the per-connection debug probes registered
	// in Accept, so closeEntry can remove exactly those two entries.
	inProbe, outProbe string
}

// poolSlots bounds how many idle backing arrays each direction's byte
// pool holds onto; beyond this a closing connection's array is simply
// left for the garbage collector instead of blocking the close path.
// NewSimpleBytePool pre-allocates this many buffers up front, so the
// count stays modest regardless of bufferCapacity.
const poolSlots = 64

func NewHandler(r reactor.Reactor, exec api.Executor, deps worker.Deps, bufferCapacity int, ctxFactory api.ContextFactory) *Handler {
	return &Handler{
		r:              r,
		exec:           exec,
		deps:           deps.Resolved(),
		bufferCapacity: bufferCapacity,
		ctxFactory:     ctxFactory,
		inBufPool:      pool.NewSimpleBytePool(poolSlots, bufferCapacity),
		outBufPool:     pool.NewSimpleBytePool(poolSlots, bufferCapacity),
		conns:          make(map[uintptr]*connEntry),
	}
}

// Accept registers a freshly accepted connection with the reactor and
// begins the request-line read for its first exchange.
func (h *Handler) Accept(raw rawConn) error {
	fd := raw.Fd()

	ioctl := &fdIOControl{r: h.r, fd: fd, wantRead: true}
	state := conn.NewStateWithPools(h.bufferCapacity, ioctl, h.ctxFactory.NewContext(), h.inBufPool, h.outBufPool)

	br := readerPool.Get()
	br.Reset(raw)
	enc := writerPool.Get()
	enc.Reset(raw)

	entry := &connEntry{
		raw: raw, br: br, state: state, enc: enc, awaitingHead: true,
		inProbe:  fmt.Sprintf("inbuffer.stats.%d", fd),
		outProbe: fmt.Sprintf("outbuffer.stats.%d", fd),
	}
	state.SetCloser(func() error { h.closeEntry(fd, entry); return nil })
	state.SetHeaderWriter(func(resp *message.Response) error { return entry.enc.WriteHead(resp) })
	state.SetContinuation(func() { h.onReadyForNext(fd, entry) })

	h.mu.Lock()
	h.conns[fd] = entry
	h.mu.Unlock()

	h.deps.Listener.ConnectionOpened(state.Context())
	h.deps.Control.IncrMetric("connections.active", 1)
	h.deps.Control.RegisterDebugProbe(entry.inProbe, func() any { return state.InBuffer.Len() })
	h.deps.Control.RegisterDebugProbe(entry.outProbe, func() any { return state.OutBuffer.Len() })

	if err := h.r.Register(fd, reactor.EventRead, func(fd uintptr, events reactor.FDEventType) {
		h.dispatch(fd, events)
	}); err != nil {
		h.closeEntry(fd, entry)
		return err
	}

	h.tryBeginRequest(fd, entry)
	return nil
}

// onReadyForNext is conn.State's continuation hook, invoked synchronously
// by the worker goroutine right after it resets the connection for
// pipelined reuse. Attempting the parse here, under entry.mu, avoids a
// race against the reactor thread observing a half-reset connEntry.
func (h *Handler) onReadyForNext(fd uintptr, entry *connEntry) {
	h.tryBeginRequest(fd, entry)
}

func (h *Handler) entry(fd uintptr) *connEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[fd]
}

func (h *Handler) dispatch(fd uintptr, events reactor.FDEventType) {
	entry := h.entry(fd)
	if entry == nil {
		return
	}
	if events.Has(reactor.EventError) {
		h.deps.Listener.FatalIOException(entry.state.Context(), io.ErrClosedPipe)
		h.closeEntry(fd, entry)
		return
	}
	if events.Has(reactor.EventRead) {
		h.onReadable(fd, entry)
	}
	if events.Has(reactor.EventWrite) {
		h.onWritable(fd, entry)
	}
}

// tryBeginRequest attempts to parse one request line and header block
// off entry.br without blocking. If no complete header block is
// buffered yet it leaves awaitingHead set and returns; onReadable
// retries on the connection's next read-readiness event.
//
// Header parsing assumes the request line and headers arrive within
// the bytes already buffered by the time a full read is possible, true
// of virtually every real client; it is not a resumable incremental
// parser across a request line split mid-header by a would-block, the
// same kind of simplification wire.lineReader documents for chunk-size
// lines.
func (h *Handler) tryBeginRequest(fd uintptr, entry *connEntry) {
	entry.mu.Lock()
	entry.awaitingHead = true
	req, err := wire.ParseRequestLine(entry.br)
	if err != nil {
		entry.mu.Unlock()
		if errors.Is(err, wire.ErrWouldBlock) {
			return
		}
		// A malformed request line still gets a mapped, staged response
		// per the exception callback contract; only a failure to submit
		// that response itself falls back to a bare fatal teardown.
		// Streaming it blocks on OutBuffer, so it must run off the
		// reactor thread.
		if submitErr := h.exec.Submit(func() { worker.HandleProtocolError(entry.state, h.deps, err) }); submitErr != nil {
			h.deps.Listener.FatalProtocolException(entry.state.Context(), err)
			h.closeEntry(fd, entry)
		}
		return
	}
	entry.awaitingHead = false

	if req.HasEntity {
		if req.Header.IsChunked() {
			entry.dec = wire.NewChunkedDecoder(entry.br)
		} else {
			entry.dec = wire.NewContentLengthDecoder(entry.br, req.Header.ContentLength())
		}
	}
	entry.mu.Unlock()

	entry.state.SetRequest(req)
	entry.state.SetInputState(conn.InputRequestReceived)
	if req.HasEntity {
		entry.state.SetInputState(conn.InputBodyStream)
	} else {
		entry.state.SetInputState(conn.InputBodyDone)
	}

	if err := h.exec.Submit(func() { worker.HandleRequest(entry.state, h.deps) }); err != nil {
		h.closeEntry(fd, entry)
	}
}

func (h *Handler) onReadable(fd uintptr, entry *connEntry) {
	entry.mu.Lock()
	awaiting := entry.awaitingHead
	dec := entry.dec
	entry.mu.Unlock()

	if awaiting {
		h.tryBeginRequest(fd, entry)
		return
	}
	if dec == nil {
		return
	}
	if _, err := entry.state.InBuffer.ConsumeContent(dec); err != nil {
		h.deps.Listener.FatalIOException(entry.state.Context(), err)
		h.closeEntry(fd, entry)
	}
}

func (h *Handler) onWritable(fd uintptr, entry *connEntry) {
	if _, _, err := entry.state.OutBuffer.ProduceContent(entry.enc); err != nil {
		h.deps.Listener.FatalIOException(entry.state.Context(), err)
		h.closeEntry(fd, entry)
	}
}

func (h *Handler) closeEntry(fd uintptr, entry *connEntry) {
	h.mu.Lock()
	delete(h.conns, fd)
	h.mu.Unlock()

	_ = h.r.Unregister(fd)
	entry.state.Shutdown()
	_ = entry.raw.Close()
	h.deps.Listener.ConnectionClosed(entry.state.Context())
	h.deps.Control.IncrMetric("connections.active", -1)
	h.deps.Control.UnregisterDebugProbe(entry.inProbe)
	h.deps.Control.UnregisterDebugProbe(entry.outProbe)

	readerPool.Put(entry.br)
	writerPool.Put(entry.enc)
}

// fdIOControl bridges a SharedInputBuffer/SharedOutputBuffer's
// backpressure signals to the reactor's Modify call, toggling read and
// write readiness interest for one connection's fd. Read interest
// (SuspendInput/RequestInput) and write interest (SuspendOutput/
// RequestOutput) are tracked independently, and every call re-applies
// the combined mask; the reactor's readiness model has no notion of
// "paused forever", only "not currently interested".
type fdIOControl struct {
	mu        sync.Mutex
	r         reactor.Reactor
	fd        uintptr
	wantRead  bool
	wantWrite bool
}

func (c *fdIOControl) apply() {
	var mask reactor.FDEventType
	if c.wantRead {
		mask |= reactor.EventRead
	}
	if c.wantWrite {
		mask |= reactor.EventWrite
	}
	_ = c.r.Modify(c.fd, mask)
}

func (c *fdIOControl) SuspendInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wantRead = false
	c.apply()
}

func (c *fdIOControl) RequestInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wantRead = true
	c.apply()
}

func (c *fdIOControl) SuspendOutput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wantWrite = false
	c.apply()
}

func (c *fdIOControl) RequestOutput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wantWrite = true
	c.apply()
}
