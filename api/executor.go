// Package api
// Author: momentics
//
// Executor contract for dispatching blocking worker routines off the
// reactor thread.

package api

// Executor abstracts the worker pool a ServiceHandler dispatches
// handleRequest calls onto.
type Executor interface {
	// Submit schedules task for execution. It returns an error instead
	// of blocking when the executor has been closed.
	Submit(task func()) error

	// NumWorkers returns current number of active worker routines.
	NumWorkers() int

	// Resize adjusts the concurrency at runtime.
	Resize(newCount int)

	// Close stops accepting work and waits for in-flight tasks to drain.
	Close() error
}
