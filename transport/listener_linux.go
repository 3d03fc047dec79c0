//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package transport opens non-blocking TCP sockets with raw file
// descriptors suitable for direct registration with reactor.Reactor,
// the same socket-construction technique the platform transport layer
// used for its send/recv path, narrowed here to plain stream I/O.
package transport

import (
	"fmt"
	"net"
	"strconv"

	"github.com/momentics/htcore/wire"
	"golang.org/x/sys/unix"
)

// Listener is a non-blocking TCP listening socket.
type Listener struct {
	fd int
}

// Listen opens a non-blocking listening socket bound to addr
// ("host:port", host may be empty for all interfaces).
func Listen(addr string) (*Listener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("transport: parse addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("transport: parse port %q: %w", portStr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("transport: socket: %w", err)
	}
	closeOnErr := true
	defer func() {
		if closeOnErr {
			unix.Close(fd)
		}
	}()

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, fmt.Errorf("transport: setsockopt SO_REUSEADDR: %w", err)
	}

	var sa unix.SockaddrInet4
	sa.Port = port
	if host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, fmt.Errorf("transport: invalid host %q", host)
		}
		copy(sa.Addr[:], ip.To4())
	}
	if err := unix.Bind(fd, &sa); err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}

	closeOnErr = false
	return &Listener{fd: fd}, nil
}

// Fd returns the raw listening socket descriptor, for reactor
// registration of read-readiness (new connection pending).
func (l *Listener) Fd() uintptr { return uintptr(l.fd) }

// Accept accepts one pending connection without blocking. It returns
// wire.ErrWouldBlock when none is currently pending.
func (l *Listener) Accept() (*Conn, error) {
	connFd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, wire.ErrWouldBlock
		}
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	if err := unix.SetsockoptInt(connFd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(connFd)
		return nil, fmt.Errorf("transport: setsockopt TCP_NODELAY: %w", err)
	}
	return &Conn{fd: connFd}, nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

// Conn is a non-blocking, raw-fd TCP connection. Read and Write report
// wire.ErrWouldBlock instead of blocking when the socket isn't ready,
// the same contract api.Decoder/api.Encoder require.
type Conn struct {
	fd     int
	closed bool
}

func (c *Conn) Fd() uintptr { return uintptr(c.fd) }

func (c *Conn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, wire.ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("transport: connection reset")
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, wire.ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}
