//go:build windows
// +build windows

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Windows IOCP implementation.
package reactor

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// fdCallbackEntry stores both the callback and original fd for key mapping.
type fdCallbackEntry struct {
	fd     uintptr
	events FDEventType
	cb     FDCallback
}

// iocpReactor implements Reactor using Windows IOCP.
type iocpReactor struct {
	iocp       syscall.Handle
	callbacks  sync.Map // map[uint32]*fdCallbackEntry
	byFD       sync.Map // map[uintptr]uint32, fd -> completion key
	keyCounter uint32   // atomic for completion key generation
	closed     chan struct{}
}

// NewReactor creates the platform Reactor for Windows, backed by IOCP.
func NewReactor() (Reactor, error) {
	iocp, err := syscall.CreateIoCompletionPort(syscall.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("iocp create: %w", err)
	}
	return &iocpReactor{
		iocp:   iocp,
		closed: make(chan struct{}),
	}, nil
}

func (r *iocpReactor) Register(fd uintptr, events FDEventType, cb FDCallback) error {
	key := atomic.AddUint32(&r.keyCounter, 1)
	handle := syscall.Handle(fd)
	ret, err := syscall.CreateIoCompletionPort(handle, r.iocp, uint32(key), 0)
	if err != nil || ret == 0 {
		return fmt.Errorf("iocp associate: %w", err)
	}
	r.callbacks.Store(key, &fdCallbackEntry{fd: fd, events: events, cb: cb})
	r.byFD.Store(fd, key)
	return nil
}

// Modify updates the event mask gating callback dispatch for fd. IOCP
// completions are not readiness-based, so this is a software filter
// rather than a kernel-level subscription change.
func (r *iocpReactor) Modify(fd uintptr, events FDEventType) error {
	keyVal, ok := r.byFD.Load(fd)
	if !ok {
		return fmt.Errorf("iocp modify: fd %d not registered", fd)
	}
	val, ok := r.callbacks.Load(keyVal)
	if !ok {
		return fmt.Errorf("iocp modify: fd %d not registered", fd)
	}
	entry := val.(*fdCallbackEntry)
	r.callbacks.Store(keyVal, &fdCallbackEntry{fd: entry.fd, events: events, cb: entry.cb})
	return nil
}

func (r *iocpReactor) Unregister(fd uintptr) error {
	keyVal, ok := r.byFD.Load(fd)
	if !ok {
		return nil
	}
	r.callbacks.Delete(keyVal)
	r.byFD.Delete(fd)
	return nil
}

func (r *iocpReactor) Poll(timeoutMs int) error {
	var bytes uint32
	var key uint32
	var overlapped *syscall.Overlapped
	timeout := uint32(syscall.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}
	select {
	case <-r.closed:
		return nil
	default:
	}
	err := syscall.GetQueuedCompletionStatus(
		r.iocp,
		&bytes,
		&key,
		&overlapped,
		timeout,
	)
	if err != nil && err != syscall.Errno(0) {
		if err == syscall.Errno(syscall.WAIT_TIMEOUT) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "iocp poll: %v\n", err)
		return nil
	}
	val, ok := r.callbacks.Load(key)
	if !ok {
		return nil
	}
	entry, _ := val.(*fdCallbackEntry)
	if entry.events == 0 {
		return nil
	}
	func() {
		defer func() { _ = recover() }()
		entry.cb(entry.fd, entry.events&(EventRead|EventWrite))
	}()
	return nil
}

func (r *iocpReactor) Close() error {
	close(r.closed)
	return syscall.CloseHandle(r.iocp)
}
