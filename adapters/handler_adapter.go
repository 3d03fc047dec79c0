// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Handler middleware chaining and request/response pipeline stages,
// generalized from the chain-of-type tracing idiom to the HTTP
// request/response/ConnHandle signatures worker.HandleRequest uses.

package adapters

import (
	"fmt"
	"log"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/message"
)

// ProcessorFunc adapts a function to api.HttpProcessor.
type ProcessorFunc func(req *message.Request, resp *message.Response, ctx api.Context) error

func (f ProcessorFunc) Process(req *message.Request, resp *message.Response, ctx api.Context) error {
	return f(req, resp, ctx)
}

// Chain runs a sequence of api.HttpProcessor stages in order, stopping
// at the first error. It satisfies api.HttpProcessor itself, so a
// worker.Deps.InboundPipeline or OutboundPipeline can be a Chain of
// several smaller stages.
type Chain struct {
	stages []api.HttpProcessor
}

// NewChain builds a Chain running stages in the given order.
func NewChain(stages ...api.HttpProcessor) *Chain {
	return &Chain{stages: stages}
}

func (c *Chain) Process(req *message.Request, resp *message.Response, ctx api.Context) error {
	for _, s := range c.stages {
		if err := s.Process(req, resp, ctx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingProcessor logs the method and URI passing through the
// pipeline stage it's placed at.
func LoggingProcessor(tag string) api.HttpProcessor {
	return ProcessorFunc(func(req *message.Request, resp *message.Response, ctx api.Context) error {
		log.Printf("[%s] %s %s", tag, req.Method, req.RequestURI)
		return nil
	})
}

// Middleware wraps an api.Handler with cross-cutting behavior, the
// same func(Handler) Handler chaining idiom applied to the handler
// signature worker.HandleRequest actually invokes.
type Middleware func(api.Handler) api.Handler

// Chained applies middleware to base in the order given: the first
// middleware listed is outermost.
func Chained(base api.Handler, mws ...Middleware) api.Handler {
	h := base
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// LoggingMiddleware logs each invocation and any error it returns.
func LoggingMiddleware(next api.Handler) api.Handler {
	return api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
		log.Printf("[handler] %s %s", req.Method, req.RequestURI)
		err := next.Handle(req, resp, h)
		if err != nil {
			log.Printf("[handler] error: %v", err)
		}
		return err
	})
}

// RecoveryMiddleware recovers from a panic in next and turns it into
// an error, a second line of defense alongside worker.invokeHandler's
// own recover for handlers nested behind a sub-router.
func RecoveryMiddleware(next api.Handler) api.Handler {
	return api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[handler] panic recovered: %v", r)
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return next.Handle(req, resp, h)
	})
}

// MetricsMiddleware increments the "handler.processed" counter in
// control's config store on every invocation.
func MetricsMiddleware(control api.Control) Middleware {
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
			err := next.Handle(req, resp, h)
			stats := control.Stats()
			count, _ := stats["handler.processed"].(int64)
			control.SetConfig(map[string]any{
				"handler.processed": count + 1,
			})
			return err
		})
	}
}
