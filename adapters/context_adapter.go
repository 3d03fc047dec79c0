// File: adapters/context_adapter.go
// Author: momentics <momentics@gmail.com>
//
// ContextAdapter implements api.ContextFactory over internal/connctx,
// so server wiring can depend on the api.ContextFactory contract
// instead of reaching into internal/connctx directly.
package adapters

import (
	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/internal/connctx"
)

// ContextAdapter implements api.ContextFactory by producing new connctx.Contexts.
type ContextAdapter struct{}

// NewContextAdapter returns an instance of the context factory.
func NewContextAdapter() api.ContextFactory {
	return ContextAdapter{}
}

// NewContext returns a fresh api.Context for a newly accepted connection.
func (ContextAdapter) NewContext() api.Context {
	return connctx.NewContext()
}
