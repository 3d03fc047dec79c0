// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package worker

import (
	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/conn"
	"github.com/momentics/htcore/message"
)

// buildErrorResponse turns a worker-side failure into a response rather
// than a connection reset. Per the error classification table, every
// synthesized error response is delivered over a downgraded HTTP/1.0
// connection regardless of what the request negotiated, with a bare
// ASCII rendering of the exception message as the body.
func buildErrorResponse(err error) *message.Response {
	status := api.MapExceptionToStatus(err)
	resp := message.NewResponse(message.HTTP10, status)
	resp.Header.Set("Connection", "close")
	body := message.NewBytesEntity([]byte(api.ExceptionMessage(err)), "text/plain; charset=US-ASCII")
	resp.SetEntity(body)
	return resp
}

// HandleProtocolError synthesizes a mapped error response for err and
// drives it through the same stage/stream/close sequence HandleRequest
// uses for its own error responses. It is for callers that never got
// far enough to stage a request at all, such as a reactor-side request
// line that failed to parse; it must run on an executor goroutine,
// never the reactor thread, since streaming the body blocks on
// OutBuffer. A failure staging the response itself is fatal and the
// connection is closed without a response.
func HandleProtocolError(state *conn.State, deps Deps, err error) {
	deps = deps.Resolved()
	resp := buildErrorResponse(err)
	deps.Control.IncrMetric("requests.errored", 1)

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
			return
		}
	}

	_ = state.Close()
}
