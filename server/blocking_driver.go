// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BlockingDriver is the portable fallback for platforms reactor has no
// epoll/IOCP implementation for: it drives the same conn.State and
// worker.HandleRequest machinery the reactor-backed service.Handler
// uses, but off a genuinely blocking net.Conn instead of a raw
// non-blocking socket. Each connection gets a main goroutine that
// parses request lines and drives pipelined reuse, one output pump for
// the connection's lifetime, and an input pump started for each request
// body, taking the place of the reactor thread's onReadable/onWritable
// dispatch.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/conn"
	"github.com/momentics/htcore/message"
	"github.com/momentics/htcore/pool"
	"github.com/momentics/htcore/wire"
	"github.com/momentics/htcore/worker"
)

// blockingPoolSlots mirrors service.poolSlots for the portable driver's
// own byte pools.
const blockingPoolSlots = 64

// BlockingDriver accepts connections off a standard net.Listener and
// serves them without any reactor, for platforms transport.Listen does
// not support (anything other than Linux, at present).
type BlockingDriver struct {
	ln             net.Listener
	exec           api.Executor
	deps           worker.Deps
	bufferCapacity int
	ctxFactory     api.ContextFactory
	inBufPool      pool.BytePool
	outBufPool     pool.BytePool

	closeOnce sync.Once
}

// NewBlockingDriver opens a standard TCP listener on addr and returns a
// driver ready to Serve it.
func NewBlockingDriver(addr string, exec api.Executor, deps worker.Deps, bufferCapacity int, ctxFactory api.ContextFactory) (*BlockingDriver, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return &BlockingDriver{
		ln: ln, exec: exec, deps: deps.Resolved(),
		bufferCapacity: bufferCapacity, ctxFactory: ctxFactory,
		inBufPool:  pool.NewSimpleBytePool(blockingPoolSlots, bufferCapacity),
		outBufPool: pool.NewSimpleBytePool(blockingPoolSlots, bufferCapacity),
	}, nil
}

// Addr returns the listener's bound address.
func (d *BlockingDriver) Addr() net.Addr { return d.ln.Addr() }

// Serve accepts connections until the listener is closed, spawning one
// goroutine per connection. It returns nil after Close stops the
// listener cleanly.
func (d *BlockingDriver) Serve() error {
	for {
		c, err := d.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		go d.serveConn(c)
	}
}

// Close stops accepting new connections. In-flight connections drain
// on their own.
func (d *BlockingDriver) Close() error {
	var err error
	d.closeOnce.Do(func() { err = d.ln.Close() })
	return err
}

// blockingIOControl implements api.IOControl by gating the input and
// output pump goroutines with a condition variable instead of the
// reactor's readiness events.
type blockingIOControl struct {
	mu            sync.Mutex
	cond          *sync.Cond
	inputAllowed  bool
	outputAllowed bool
	closed        bool
}

func newBlockingIOControl() *blockingIOControl {
	c := &blockingIOControl{inputAllowed: true, outputAllowed: true}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *blockingIOControl) SuspendInput()  { c.set(&c.inputAllowed, false) }
func (c *blockingIOControl) RequestInput()  { c.set(&c.inputAllowed, true) }
func (c *blockingIOControl) SuspendOutput() { c.set(&c.outputAllowed, false) }
func (c *blockingIOControl) RequestOutput() { c.set(&c.outputAllowed, true) }

func (c *blockingIOControl) set(flag *bool, v bool) {
	c.mu.Lock()
	*flag = v
	c.cond.Broadcast()
	c.mu.Unlock()
}

// waitInput/waitOutput block the pump goroutines until their direction
// is allowed again, returning false once the connection has closed.
func (c *blockingIOControl) waitInput() bool  { return c.wait(&c.inputAllowed) }
func (c *blockingIOControl) waitOutput() bool { return c.wait(&c.outputAllowed) }

func (c *blockingIOControl) wait(flag *bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !*flag && !c.closed {
		c.cond.Wait()
	}
	return !c.closed
}

func (c *blockingIOControl) close() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// asyncDecoder runs a real body decoder (wire.ContentLengthDecoder or
// wire.ChunkedDecoder, constructed directly against the connection's
// bufio.Reader) in a background goroutine and exposes a non-blocking
// api.Decoder to the foreground that only drains already-decoded
// bytes. The real decoder's own framing (remaining Content-Length,
// chunk-size accounting) governs exactly how many bytes it reads off
// the connection, so it can never read past the body boundary into a
// pipelined next request the way a framing-unaware raw byte pump
// would; running it in the background, rather than calling it directly
// from ConsumeContent, is what keeps SharedInputBuffer's mutex from
// being held across a network wait.
type asyncDecoder struct {
	out        chan asyncChunk
	pending    []byte
	pendingEOF bool
	pendingErr error
}

type asyncChunk struct {
	data []byte
	eof  bool
	err  error
}

func newAsyncDecoder(real api.Decoder) *asyncDecoder {
	d := &asyncDecoder{out: make(chan asyncChunk, 8)}
	go d.run(real)
	return d
}

func (d *asyncDecoder) run(real api.Decoder) {
	buf := make([]byte, 16*1024)
	for {
		n, eof, err := real.Decode(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			d.out <- asyncChunk{data: chunk}
		}
		if err != nil {
			d.out <- asyncChunk{err: err}
			return
		}
		if eof {
			d.out <- asyncChunk{eof: true}
			return
		}
		if n == 0 {
			// real's underlying reader is genuinely blocking, so this
			// only happens for a decoder implementation that can
			// legitimately report "nothing yet" without blocking;
			// avoid a tight spin either way.
			time.Sleep(time.Millisecond)
			continue
		}
	}
}

// Decode implements api.Decoder non-blockingly by draining whatever
// the background goroutine has already produced.
func (d *asyncDecoder) Decode(dst []byte) (int, bool, error) {
	if len(d.pending) == 0 && !d.pendingEOF && d.pendingErr == nil {
		select {
		case c := <-d.out:
			d.pending, d.pendingEOF, d.pendingErr = c.data, c.eof, c.err
		default:
			return 0, false, nil
		}
	}
	if len(d.pending) > 0 {
		n := copy(dst, d.pending)
		d.pending = d.pending[n:]
		return n, false, nil
	}
	if d.pendingErr != nil {
		return 0, false, d.pendingErr
	}
	if d.pendingEOF {
		return 0, true, nil
	}
	return 0, false, nil
}

// awaitData blocks until the background goroutine has produced
// something to drain, or shutdown fires, so the input pump loop
// doesn't spin calling Decode against an empty source. It returns true
// if shutdown fired first.
func (d *asyncDecoder) awaitData(shutdown <-chan struct{}) bool {
	if len(d.pending) > 0 || d.pendingEOF || d.pendingErr != nil {
		return false
	}
	select {
	case c := <-d.out:
		d.pending, d.pendingEOF, d.pendingErr = c.data, c.eof, c.err
		return false
	case <-shutdown:
		return true
	}
}

// blockingEntry is the per-connection bookkeeping the driver's three
// goroutines (main loop, input pump, output pump) share.
type blockingEntry struct {
	conn  net.Conn
	br    *bufio.Reader
	enc   *wire.ResponseWriter
	state *conn.State
	ioctl *blockingIOControl

	shutdown chan struct{}
	next     chan struct{} // buffered 1: continuation/closer wake the main loop
	once     sync.Once

	mu  sync.Mutex
	dec api.Decoder

	inProbe, outProbe string
}

func (d *BlockingDriver) serveConn(c net.Conn) {
	ioctl := newBlockingIOControl()
	state := conn.NewStateWithPools(d.bufferCapacity, ioctl, d.ctxFactory.NewContext(), d.inBufPool, d.outBufPool)

	entry := &blockingEntry{
		conn:     c,
		br:       bufio.NewReader(c),
		enc:      wire.NewResponseWriter(c),
		state:    state,
		ioctl:    ioctl,
		shutdown: make(chan struct{}),
		next:     make(chan struct{}, 1),
		inProbe:  fmt.Sprintf("inbuffer.stats.%s", c.RemoteAddr()),
		outProbe: fmt.Sprintf("outbuffer.stats.%s", c.RemoteAddr()),
	}

	state.SetHeaderWriter(func(resp *message.Response) error { return entry.enc.WriteHead(resp) })
	state.SetContinuation(func() { entry.wake() })
	state.SetCloser(func() error {
		entry.once.Do(func() { close(entry.shutdown) })
		ioctl.close()
		entry.wake()
		return c.Close()
	})

	d.deps.Listener.ConnectionOpened(state.Context())
	d.deps.Control.IncrMetric("connections.active", 1)
	d.deps.Control.RegisterDebugProbe(entry.inProbe, func() any { return state.InBuffer.Len() })
	d.deps.Control.RegisterDebugProbe(entry.outProbe, func() any { return state.OutBuffer.Len() })
	defer func() {
		_ = state.Close()
		d.deps.Listener.ConnectionClosed(state.Context())
		d.deps.Control.IncrMetric("connections.active", -1)
		d.deps.Control.UnregisterDebugProbe(entry.inProbe)
		d.deps.Control.UnregisterDebugProbe(entry.outProbe)
	}()

	go d.pumpOutput(entry)

	for {
		req, err := wire.ParseRequestLine(entry.br)
		if err != nil {
			if err == io.EOF {
				return
			}
			// This goroutine owns the connection outright, so the mapped
			// error response can be staged and streamed inline rather
			// than dispatched to an executor.
			worker.HandleProtocolError(state, d.deps, err)
			return
		}

		if req.HasEntity {
			var real api.Decoder
			if req.Header.IsChunked() {
				real = wire.NewChunkedDecoder(entry.br)
			} else {
				real = wire.NewContentLengthDecoder(entry.br, req.Header.ContentLength())
			}
			async := newAsyncDecoder(real)
			entry.mu.Lock()
			entry.dec = async
			entry.mu.Unlock()
			go d.pumpInput(entry, async)
		}

		state.SetRequest(req)
		state.SetInputState(conn.InputRequestReceived)
		if req.HasEntity {
			state.SetInputState(conn.InputBodyStream)
		} else {
			state.SetInputState(conn.InputBodyDone)
		}

		if err := d.exec.Submit(func() { worker.HandleRequest(state, d.deps) }); err != nil {
			return
		}

		select {
		case <-entry.next:
			entry.mu.Lock()
			entry.dec = nil
			entry.mu.Unlock()
		case <-entry.shutdown:
			return
		}

		select {
		case <-entry.shutdown:
			return
		default:
		}
	}
}

func (e *blockingEntry) wake() {
	select {
	case e.next <- struct{}{}:
	default:
	}
}

// pumpInput drains one request body's bytes into state.InBuffer,
// gated by ioctl so it stops calling ConsumeContent once the buffer
// fills, and exits once the decoder reports end of entity or an error.
func (d *BlockingDriver) pumpInput(entry *blockingEntry, async *asyncDecoder) {
	for {
		if !entry.ioctl.waitInput() {
			return
		}
		if async.awaitData(entry.shutdown) {
			return
		}

		entry.mu.Lock()
		dec := entry.dec
		entry.mu.Unlock()
		if dec == nil {
			return
		}

		_, err := entry.state.InBuffer.ConsumeContent(dec)
		if err != nil {
			d.deps.Listener.FatalIOException(entry.state.Context(), err)
			_ = entry.state.Close()
			return
		}
		// Once the decoder has reached a terminal state (end of entity
		// or an error already surfaced above), there is nothing further
		// for this pump to do for the current exchange; looping here
		// would otherwise spin since awaitData no longer blocks once
		// pendingEOF is set.
		if async.pendingEOF {
			return
		}
	}
}

// pumpOutput drains state.OutBuffer to the connection for the whole
// lifetime of the connection, handling every pipelined response in
// turn. A slow client can stall this goroutine mid-write; that only
// delays this one connection's own output, matching the portable
// driver's documented one-goroutine-pair-per-connection trade-off.
func (d *BlockingDriver) pumpOutput(entry *blockingEntry) {
	for {
		if !entry.ioctl.waitOutput() {
			return
		}
		_, _, err := entry.state.OutBuffer.ProduceContent(entry.enc)
		if err != nil {
			if !errors.Is(err, api.ErrInterrupted) {
				d.deps.Listener.FatalIOException(entry.state.Context(), err)
			}
			_ = entry.state.Close()
			return
		}
	}
}
