// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the core poll-mode event reactor abstraction
// and cross-platform implementations for epoll (Linux) and IOCP
// (Windows). Everything above this package talks to connections through
// FDCallback; nothing above it knows whether the underlying poller is
// epoll, IOCP, or something else.
package reactor

// FDEventType is a bitmask of readiness conditions reported for a
// registered file descriptor.
type FDEventType int

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

func (e FDEventType) Has(flag FDEventType) bool { return e&flag != 0 }

// FDCallback is invoked on the reactor thread when fd becomes ready for
// one or more of the events it was registered or modified for. It must
// not block: any work that can take meaningful time belongs on an
// api.Executor.
type FDCallback func(fd uintptr, events FDEventType)

// Reactor is the minimal poll-mode multiplexer contract the connection
// handler is built on.
type Reactor interface {
	// Register starts watching fd for events, invoking cb on the
	// reactor thread whenever it becomes ready.
	Register(fd uintptr, events FDEventType, cb FDCallback) error

	// Modify changes the set of events fd is watched for, without
	// losing its callback. Used to implement backpressure: suspending
	// input interest stops read readiness from firing until the worker
	// has drained the buffer.
	Modify(fd uintptr, events FDEventType) error

	// Unregister stops watching fd entirely.
	Unregister(fd uintptr) error

	// Poll blocks for at most timeoutMs (or indefinitely if negative)
	// and dispatches any ready callbacks before returning.
	Poll(timeoutMs int) error

	// Close releases the underlying poller resources.
	Close() error
}
