// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package worker

import (
	"fmt"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/conn"
	"github.com/momentics/htcore/message"
)

// entityReader adapts a *conn.State's blocking Read into the io.Reader
// a Handler sees as message.Request.Body.
type entityReader struct{ state *conn.State }

func (r entityReader) Read(p []byte) (int, error) { return r.state.Read(p) }

// connWriter adapts a *conn.State's blocking Write into the io.Writer
// an Entity streams itself through.
type connWriter struct{ state *conn.State }

func (w connWriter) Write(p []byte) (int, error) { return w.state.Write(p) }

// HandleRequest runs the full request/response exchange for the
// request currently staged on state. It is meant to be submitted to an
// api.Executor by a ServiceHandler, never called from the reactor
// thread.
func HandleRequest(state *conn.State, deps Deps) {
	deps = deps.Resolved()

	if final := state.WaitForOutputState(conn.OutputReady); final != conn.OutputReady {
		return // connection shut down before this exchange could start
	}

	req := state.Request()
	if req == nil {
		return
	}

	deps.Control.SetMetric("inbuffer.bytes", state.InBuffer.Len())

	downgradeProtocol(req)

	var staged *message.Response
	if req.ExpectsContinue() {
		staged = handleExpectContinue(state, req, deps)
	}

	if staged == nil && req.HasEntity {
		req.Body = entityReader{state}
	}

	resp := staged
	if resp == nil {
		resp = buildFinalResponse(state, req, deps)
	}

	if err := deps.OutboundPipeline.Process(req, resp, state.Context()); err != nil {
		resp = buildErrorResponse(err)
	}

	resp.PrepareFraming(req.Method, req.Proto.GreaterEqual(message.HTTP11))
	if resp.MustHaveNoEntity(req.Method) {
		resp.SetEntity(nil)
	}

	if resp.StatusCode >= 400 {
		deps.Control.IncrMetric("requests.errored", 1)
	} else {
		deps.Control.IncrMetric("requests.served", 1)
	}

	if err := state.SubmitResponse(resp); err != nil {
		deps.Listener.FatalProtocolException(state.Context(), err)
		_ = state.Close()
		return
	}
	state.RequestOutput()

	if entity := resp.Entity(); entity != nil {
		if err := entity.WriteTo(connWriter{state}); err != nil {
			deps.Listener.FatalIOException(state.Context(), err)
			_ = state.Close()
			return
		}
		_ = state.WriteCompleted()
		if err := state.WaitOutputDrained(); err != nil {
			return // shut down while the reactor was still flushing
		}
	}
	deps.Control.SetMetric("outbuffer.bytes", state.OutBuffer.Len())

	if deps.ConnStrategy.KeepAlive(req, resp) {
		state.ResetForNextRequest()
		state.RequestInput()
	} else {
		_ = state.Close()
	}
}

// downgradeProtocol treats anything newer than HTTP/1.1 as HTTP/1.1,
// since this server never negotiates HTTP/2 or later over this path.
func downgradeProtocol(req *message.Request) {
	if req.Proto.Major > 1 || (req.Proto.Major == 1 && req.Proto.Minor > 1) {
		req.Proto = message.HTTP11
	}
}

// handleExpectContinue runs the 100-continue negotiation. It returns a
// non-nil response only when the expectation was rejected (or failed),
// in which case that response is final and the caller must skip
// resolution and handler invocation.
func handleExpectContinue(state *conn.State, req *message.Request, deps Deps) *message.Response {
	var reject *message.Response
	var verifyErr error
	if deps.ExpectationVerifier != nil {
		reject, verifyErr = deps.ExpectationVerifier.Verify(req, state.Context())
	}

	switch {
	case verifyErr != nil:
		state.ResetInput()
		req.HasEntity = false
		return buildErrorResponse(verifyErr)

	case reject != nil && reject.StatusCode >= 200:
		state.ResetInput()
		req.HasEntity = false
		return reject

	default:
		interim := reject
		if interim == nil {
			interim = message.NewResponse(req.Proto, 100)
		}
		if err := state.SubmitResponse(interim); err != nil {
			state.ResetInput()
			req.HasEntity = false
			return buildErrorResponse(err)
		}
		state.RequestOutput()
		state.WaitForOutputState(conn.OutputResponseSent)
		state.ResetOutputForContinue()
		return nil
	}
}

// buildFinalResponse resolves and invokes the handler for req, mapping
// resolution failures and handler errors (including panics) to the
// appropriate response instead of letting them escape the worker.
func buildFinalResponse(state *conn.State, req *message.Request, deps Deps) *message.Response {
	resp := message.NewResponse(req.Proto, 200)

	if err := deps.InboundPipeline.Process(req, resp, state.Context()); err != nil {
		return buildErrorResponse(err)
	}

	handler, ok := deps.Resolver.Resolve(req)
	if !ok {
		notSupported := message.NewResponse(message.HTTP10, 501)
		notSupported.Header.Set("Connection", "close")
		return notSupported
	}

	return invokeHandler(handler, req, resp, state)
}

func invokeHandler(handler api.Handler, req *message.Request, resp *message.Response, state *conn.State) (result *message.Response) {
	result = resp
	defer func() {
		if r := recover(); r != nil {
			result = buildErrorResponse(fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := handler.Handle(req, resp, state); err != nil {
		return buildErrorResponse(err)
	}
	return resp
}
