// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives backing the worker executor: a lock-free
// per-worker ring buffer and the Executor that dispatches
// worker.HandleRequest calls onto a resizable goroutine pool.
package concurrency
