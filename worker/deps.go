// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package worker implements the blocking handleRequest routine that
// runs on an executor goroutine, bridging to the non-blocking reactor
// side through a conn.State.
package worker

import (
	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/message"
)

// Deps bundles the pluggable pieces handleRequest consults. Nil
// Resolver/InboundPipeline/OutboundPipeline/ExpectationVerifier are
// valid: Resolved fills a harmless default for each of the first three,
// and a nil ExpectationVerifier accepts every 100-continue expectation.
type Deps struct {
	Resolver            api.HandlerResolver
	InboundPipeline     api.HttpProcessor
	OutboundPipeline    api.HttpProcessor
	ExpectationVerifier api.ExpectationVerifier
	ConnStrategy        api.ConnStrategy
	Listener            api.EventListener
	Control             api.Control
}

type nopProcessor struct{}

func (nopProcessor) Process(*message.Request, *message.Response, api.Context) error { return nil }

type notFoundResolver struct{}

func (notFoundResolver) Resolve(*message.Request) (api.Handler, bool) { return nil, false }

// defaultConnStrategy keeps a connection alive unless the request or
// the response carries "Connection: close" or the request is HTTP/1.0.
type defaultConnStrategy struct{}

func (defaultConnStrategy) KeepAlive(req *message.Request, resp *message.Response) bool {
	if req.Header.WantsClose() || resp.Header.WantsClose() {
		return false
	}
	if req.Proto == message.HTTP10 {
		return false
	}
	return true
}

// Resolved fills every nil field with a harmless default, so callers
// that only care about some of Deps don't need to special-case the
// rest. HandleRequest and HandleProtocolError call it on entry;
// service.Handler and BlockingDriver call it once at construction time
// so their own metrics/probe wiring can rely on deps.Control being
// non-nil too.
func (d Deps) Resolved() Deps {
	if d.Resolver == nil {
		d.Resolver = notFoundResolver{}
	}
	if d.InboundPipeline == nil {
		d.InboundPipeline = nopProcessor{}
	}
	if d.OutboundPipeline == nil {
		d.OutboundPipeline = nopProcessor{}
	}
	if d.Listener == nil {
		d.Listener = api.NopEventListener{}
	}
	if d.ConnStrategy == nil {
		d.ConnStrategy = defaultConnStrategy{}
	}
	if d.Control == nil {
		d.Control = api.NopControl{}
	}
	return d
}
