// File: adapters/executor_adapter.go
// Package adapters provides glue between internal concurrency and api.Executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter implements the api.Executor interface by delegating to the internal
// concurrency.Executor.

package adapters

import (
	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/internal/concurrency"
)

// ExecutorAdapter wraps an internal concurrency.Executor to satisfy the api.Executor contract.
type ExecutorAdapter struct {
	exec *concurrency.Executor
}

// NewExecutorAdapter constructs an api.Executor with the given number of
// worker goroutines. numaNode is accepted for config symmetry with the
// rest of the server's options but has no effect on HTTP request
// handling, which has no NUMA locality requirement; pass -1.
func NewExecutorAdapter(workers int, numaNode int) api.Executor {
	e := concurrency.NewExecutor(workers, numaNode)
	return &ExecutorAdapter{exec: e}
}

// Submit dispatches a task function to be executed asynchronously.
// Returns an error if the executor has been closed.
func (ea *ExecutorAdapter) Submit(task func()) error {
	return ea.exec.Submit(task)
}

// NumWorkers returns the current number of active worker goroutines.
func (ea *ExecutorAdapter) NumWorkers() int {
	return ea.exec.NumWorkers()
}

// Resize dynamically adjusts the size of the worker pool.
func (ea *ExecutorAdapter) Resize(newCount int) {
	ea.exec.Resize(newCount)
}

// Close shuts down the executor, signaling all workers to exit and
// waiting for completion.
func (ea *ExecutorAdapter) Close() error {
	return ea.exec.Close()
}
