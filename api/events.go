// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventListener observes connection lifecycle events for logging or
// metrics. Methods must not block the reactor thread for long; heavy
// work belongs on the executor like any other handler logic.
type EventListener interface {
	ConnectionOpened(ctx Context)
	ConnectionClosed(ctx Context)
	FatalIOException(ctx Context, err error)
	FatalProtocolException(ctx Context, err error)
}

// NopEventListener implements EventListener with no-ops, the default
// when a server is built without explicit observability wiring.
type NopEventListener struct{}

func (NopEventListener) ConnectionOpened(Context)            {}
func (NopEventListener) ConnectionClosed(Context)            {}
func (NopEventListener) FatalIOException(Context, error)     {}
func (NopEventListener) FatalProtocolException(Context, error) {}
