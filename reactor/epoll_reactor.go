//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"fmt"
	"sync"
	"syscall"
)

// epollReactor implements Reactor interface using Linux epoll.
type epollReactor struct {
	epfd      int      // epoll file descriptor
	callbacks sync.Map // map[uintptr]FDCallback
}

// NewReactor creates the platform Reactor for Linux, backed by epoll.
func NewReactor() (Reactor, error) {
	epfd, err := syscall.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	return &epollReactor{
		epfd:      epfd,
		callbacks: sync.Map{},
	}, nil
}

func toEpollMask(events FDEventType) uint32 {
	var mask uint32
	if events.Has(EventRead) {
		mask |= syscall.EPOLLIN
	}
	if events.Has(EventWrite) {
		mask |= syscall.EPOLLOUT
	}
	return mask
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd uintptr, events FDEventType, cb FDCallback) error {
	ev := syscall.EpollEvent{Events: toEpollMask(events), Fd: int32(fd)}

	if err := syscall.EpollCtl(r.epfd, syscall.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}

	r.callbacks.Store(fd, cb)
	return nil
}

// Modify updates the watched event set for an already registered fd.
func (r *epollReactor) Modify(fd uintptr, events FDEventType) error {
	ev := syscall.EpollEvent{Events: toEpollMask(events), Fd: int32(fd)}
	if err := syscall.EpollCtl(r.epfd, syscall.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *epollReactor) Unregister(fd uintptr) error {
	if err := syscall.EpollCtl(r.epfd, syscall.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	r.callbacks.Delete(fd)
	return nil
}

// Poll blocks and waits for events on registered file descriptors.
// timeoutMs < 0 means block infinitely.
func (r *epollReactor) Poll(timeoutMs int) error {
	const maxEvents = 128
	var events [maxEvents]syscall.EpollEvent
	timeout := timeoutMs
	if timeout < 0 {
		timeout = -1
	}

	n, err := syscall.EpollWait(r.epfd, events[:], timeout)
	if err != nil {
		if err == syscall.EINTR {
			return nil // interrupted by signal, normal
		}
		return fmt.Errorf("epoll wait: %w", err)
	}

	for i := 0; i < n; i++ {
		ev := events[i]
		fd := uintptr(ev.Fd)

		val, ok := r.callbacks.Load(fd)
		if !ok {
			continue
		}

		var eventType FDEventType
		if ev.Events&syscall.EPOLLIN != 0 {
			eventType |= EventRead
		}
		if ev.Events&syscall.EPOLLOUT != 0 {
			eventType |= EventWrite
		}
		if ev.Events&(syscall.EPOLLERR|syscall.EPOLLHUP) != 0 {
			eventType |= EventError
		}

		cb, _ := val.(FDCallback)
		// Deferred recover keeps one misbehaving connection from
		// taking the whole reactor loop down.
		func() {
			defer func() { _ = recover() }()
			cb(fd, eventType)
		}()
	}

	return nil
}

// Close releases the epoll file descriptor.
func (r *epollReactor) Close() error {
	return syscall.Close(r.epfd)
}
