// File: adapters/event_listener_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Stdlib-log-backed api.EventListener, the same log.Printf style
// handler_adapter.go's middleware uses for tracing connection
// lifecycle events instead of request/response ones.

package adapters

import (
	"log"

	"github.com/momentics/htcore/api"
)

// LoggingEventListener logs connection open/close and fatal exceptions.
type LoggingEventListener struct{}

// NewLoggingEventListener constructs the default api.EventListener.
func NewLoggingEventListener() api.EventListener { return LoggingEventListener{} }

func (LoggingEventListener) ConnectionOpened(ctx api.Context) {
	log.Printf("[conn] opened")
}

func (LoggingEventListener) ConnectionClosed(ctx api.Context) {
	log.Printf("[conn] closed")
}

func (LoggingEventListener) FatalIOException(ctx api.Context, err error) {
	log.Printf("[conn] io error: %v", err)
}

func (LoggingEventListener) FatalProtocolException(ctx api.Context, err error) {
	log.Printf("[conn] protocol error: %v", err)
}
