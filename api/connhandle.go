// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "github.com/momentics/htcore/message"

// ConnHandle is the worker-side view of a connection: the pieces a
// handler or the worker routine needs that are not the byte buffers
// themselves (those are reached through conn.State, which a ConnHandle
// implementation wraps).
type ConnHandle interface {
	IOControl
	Context() Context

	// Request returns the request parsed for the exchange currently in
	// flight, or nil before one has arrived.
	Request() *message.Request

	// SubmitResponse hands the worker's finished response to the
	// reactor thread for transmission. It returns ErrResponseAlreadySubmitted
	// if called twice for the same exchange.
	SubmitResponse(resp *message.Response) error

	// Read blocks the calling worker goroutine until entity bytes are
	// available, EOF, or the connection shuts down.
	Read(p []byte) (n int, err error)

	// Write blocks the calling worker goroutine until buffer space is
	// available, or the connection shuts down.
	Write(p []byte) (n int, err error)
	// WriteCompleted marks the response entity as fully written.
	WriteCompleted() error

	// IsResponseSubmitted reports whether SubmitResponse has already
	// been called for the exchange in flight.
	IsResponseSubmitted() bool

	// ResetInput discards any buffered or in-flight request body bytes,
	// used when a 100-continue expectation is rejected and the body
	// must not be read.
	ResetInput()

	// Close tears the connection down from the worker side, e.g. after
	// an unrecoverable protocol error.
	Close() error

	// Shutdown marks the connection permanently closed without
	// necessarily tearing down the transport socket itself; Close
	// additionally invokes the transport-level teardown.
	Shutdown()
}

// Handler processes one request/response exchange. Implementations may
// block: they run on a worker goroutine supplied by an Executor, never
// on the reactor thread.
type Handler interface {
	Handle(req *message.Request, resp *message.Response, h ConnHandle) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(req *message.Request, resp *message.Response, h ConnHandle) error

func (f HandlerFunc) Handle(req *message.Request, resp *message.Response, h ConnHandle) error {
	return f(req, resp, h)
}

// HandlerResolver maps a request to the Handler responsible for it.
type HandlerResolver interface {
	Resolve(req *message.Request) (Handler, bool)
}

// HttpProcessor is an inbound or outbound pipeline stage, for example
// logging or a rewrite step applied before resolution or after the
// handler returns.
type HttpProcessor interface {
	Process(req *message.Request, resp *message.Response, ctx Context) error
}

// ExpectationVerifier decides whether a 100-continue request should be
// allowed to send its body. A non-nil response with status 200 or above
// rejects the expectation with that response; a non-nil 1xx response is
// sent as the interim response in place of the default 100 Continue. A
// non-nil error rejects it with the mapped error response.
type ExpectationVerifier interface {
	Verify(req *message.Request, ctx Context) (reject *message.Response, err error)
}

// ConnStrategy decides connection reuse policy after a response has
// been fully sent.
type ConnStrategy interface {
	KeepAlive(req *message.Request, resp *message.Response) bool
}
