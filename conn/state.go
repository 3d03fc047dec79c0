// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package conn holds the per-connection state machine shared between
// the reactor thread and a worker goroutine. A single mutex protects
// the state fields below; the SharedInputBuffer and SharedOutputBuffer
// it references have their own independent locks and must never be
// accessed while holding State's mutex, to avoid the reactor thread
// blocking on a worker-held lock.
package conn

import (
	"sync"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/iobuf"
	"github.com/momentics/htcore/message"
	"github.com/momentics/htcore/pool"
)

var _ api.ConnHandle = (*State)(nil)

type InputState int

const (
	InputReady InputState = iota
	InputRequestReceived
	InputBodyStream
	InputBodyDone
	InputShutdown
)

func (s InputState) String() string {
	switch s {
	case InputReady:
		return "READY"
	case InputRequestReceived:
		return "REQUEST_RECEIVED"
	case InputBodyStream:
		return "REQUEST_BODY_STREAM"
	case InputBodyDone:
		return "REQUEST_BODY_DONE"
	case InputShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

type OutputState int

const (
	OutputReady OutputState = iota
	OutputResponseSent
	OutputBodyStream
	OutputBodyDone
	OutputShutdown
)

func (s OutputState) String() string {
	switch s {
	case OutputReady:
		return "READY"
	case OutputResponseSent:
		return "RESPONSE_SENT"
	case OutputBodyStream:
		return "RESPONSE_BODY_STREAM"
	case OutputBodyDone:
		return "RESPONSE_BODY_DONE"
	case OutputShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// State is the full mutable record for one connection.
type State struct {
	mu   sync.Mutex
	cond *sync.Cond

	InBuffer  *iobuf.SharedInputBuffer
	OutBuffer *iobuf.SharedOutputBuffer

	inputState  InputState
	outputState OutputState

	request           *message.Request
	response          *message.Response
	responseSubmitted bool

	ctx          api.Context
	ioControl    api.IOControl
	closer       func() error
	headerWriter func(*message.Response) error
	continuation func()
}

// NewState allocates a fresh buffer pair sized bufferCapacity. Prefer
// NewStateWithPools when a *pool.SimpleBytePool is available so the
// backing arrays are recycled across connections.
func NewState(bufferCapacity int, ioControl api.IOControl, ctx api.Context) *State {
	return NewStateWithPools(bufferCapacity, ioControl, ctx, nil, nil)
}

// NewStateWithPools is NewState plus the byte pools backing each
// direction's buffer; either may be nil to allocate directly instead.
func NewStateWithPools(bufferCapacity int, ioControl api.IOControl, ctx api.Context, inPool, outPool pool.BytePool) *State {
	s := &State{
		InBuffer:  iobuf.NewSharedInputBuffer(bufferCapacity, ioControl, inPool),
		OutBuffer: iobuf.NewSharedOutputBuffer(bufferCapacity, ioControl, outPool),
		ctx:       ctx,
		ioControl: ioControl,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// SetCloser attaches the transport-level teardown invoked by Close.
// Set once by whatever wires the connection's socket to this State.
func (s *State) SetCloser(closer func() error) {
	s.mu.Lock()
	s.closer = closer
	s.mu.Unlock()
}

// SetContinuation attaches a hook invoked synchronously at the end of
// ResetForNextRequest, once the connection is back in READY/READY and
// safe to start parsing a pipelined next request. Whatever reads the
// next request line off the connection's socket must go through this
// hook rather than polling OutputState from another goroutine, to
// avoid racing the worker goroutine that just performed the reset.
func (s *State) SetContinuation(fn func()) {
	s.mu.Lock()
	s.continuation = fn
	s.mu.Unlock()
}

// SetHeaderWriter attaches the status-line-and-headers transmitter
// invoked synchronously by SubmitResponse. The body, if any, is always
// streamed separately through OutBuffer.
func (s *State) SetHeaderWriter(w func(*message.Response) error) {
	s.mu.Lock()
	s.headerWriter = w
	s.mu.Unlock()
}

func (s *State) Context() api.Context { return s.ctx }

// IOControl delegation lets *State satisfy api.ConnHandle's embedded
// api.IOControl directly.
func (s *State) SuspendInput()  { s.ioControl.SuspendInput() }
func (s *State) RequestInput()  { s.ioControl.RequestInput() }
func (s *State) SuspendOutput() { s.ioControl.SuspendOutput() }
func (s *State) RequestOutput() { s.ioControl.RequestOutput() }

// Request satisfies api.ConnHandle.Request (the accessor api.ConnHandle
// names Request; State also stores the field under the same name, see
// the unexported request field above and the Request method below).

// Read blocks the calling worker goroutine on the input buffer.
func (s *State) Read(p []byte) (int, error) { return s.InBuffer.Read(p) }

// Write blocks the calling worker goroutine on the output buffer.
func (s *State) Write(p []byte) (int, error) { return s.OutBuffer.Write(p) }

// WaitOutputDrained blocks until the output buffer has been fully
// flushed by the reactor, for callers that attached an entity.
func (s *State) WaitOutputDrained() error { return s.OutBuffer.WaitDrained() }

// WriteCompleted marks the response entity fully written.
func (s *State) WriteCompleted() error {
	s.OutBuffer.WriteCompleted()
	return nil
}

// Close tears the connection down from the worker side: shuts down
// both buffers and state, then invokes the transport-level closer if
// one was attached.
func (s *State) Close() error {
	s.Shutdown()
	s.mu.Lock()
	closer := s.closer
	s.mu.Unlock()
	if closer != nil {
		return closer()
	}
	return nil
}

func (s *State) InputState() InputState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputState
}

func (s *State) OutputState() OutputState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputState
}

func (s *State) SetInputState(v InputState) {
	s.mu.Lock()
	s.inputState = v
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *State) SetOutputState(v OutputState) {
	s.mu.Lock()
	s.outputState = v
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *State) SetRequest(req *message.Request) {
	s.mu.Lock()
	s.request = req
	s.mu.Unlock()
}

func (s *State) Request() *message.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

// SubmitResponse records resp as the response for the in-flight
// exchange and, if a header writer is attached, transmits its status
// line and headers synchronously before returning. It returns
// api.ErrResponseAlreadySubmitted if a response was already recorded
// for this exchange.
func (s *State) SubmitResponse(resp *message.Response) error {
	s.mu.Lock()
	if s.responseSubmitted {
		s.mu.Unlock()
		return api.ErrResponseAlreadySubmitted
	}
	s.response = resp
	s.responseSubmitted = true
	s.outputState = OutputResponseSent
	writer := s.headerWriter
	s.cond.Broadcast()
	s.mu.Unlock()

	if writer != nil {
		return writer(resp)
	}
	return nil
}

func (s *State) IsResponseSubmitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseSubmitted
}

func (s *State) Response() *message.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

// WaitForOutputState blocks until outputState equals target or the
// connection reaches OutputShutdown.
func (s *State) WaitForOutputState(target OutputState) OutputState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.outputState != target && s.outputState != OutputShutdown {
		s.cond.Wait()
	}
	return s.outputState
}

// ResetForNextRequest restores READY/READY for pipelined reuse. It must
// only be called after the prior exchange's response has been fully
// flushed (OutputBodyDone or entity-absent RESPONSE_SENT).
func (s *State) ResetForNextRequest() {
	s.mu.Lock()
	s.inputState = InputReady
	s.outputState = OutputReady
	s.request = nil
	s.response = nil
	s.responseSubmitted = false
	s.cond.Broadcast()
	s.mu.Unlock()

	s.InBuffer.Reset()
	s.OutBuffer.Reset()
	s.ctx.ResetRequestScope()

	s.mu.Lock()
	fn := s.continuation
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Shutdown marks the connection permanently closed and wakes any
// goroutine blocked on the state or on either buffer.
func (s *State) Shutdown() {
	s.mu.Lock()
	s.inputState = InputShutdown
	s.outputState = OutputShutdown
	s.cond.Broadcast()
	s.mu.Unlock()

	s.InBuffer.Shutdown()
	s.OutBuffer.Shutdown()
}

// ResetInput discards any buffered request body bytes without touching
// the output side, used when a 100-continue expectation is rejected.
func (s *State) ResetInput() {
	s.InBuffer.Reset()
	s.SetInputState(InputBodyDone)
}

// ResetOutputForContinue reverts the output side to READY after a 100
// Continue interim response has been transmitted, so the worker can
// stage the real final response next. It must only be called after
// WaitForOutputState(OutputResponseSent) has observed the interim
// response drained.
func (s *State) ResetOutputForContinue() {
	s.mu.Lock()
	s.outputState = OutputReady
	s.response = nil
	s.responseSubmitted = false
	s.cond.Broadcast()
	s.mu.Unlock()
	s.OutBuffer.Reset()
}
