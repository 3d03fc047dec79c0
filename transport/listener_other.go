//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"errors"
)

// ErrUnsupportedPlatform is returned by Listen on platforms without a
// raw non-blocking socket implementation. Use server.BlockingDriver on
// these platforms instead of the reactor-driven server.
var ErrUnsupportedPlatform = errors.New("transport: raw non-blocking sockets not implemented for this platform, use server.BlockingDriver")

type Listener struct{}

func Listen(addr string) (*Listener, error) {
	return nil, ErrUnsupportedPlatform
}

func (l *Listener) Fd() uintptr { return 0 }

func (l *Listener) Accept() (*Conn, error) {
	return nil, ErrUnsupportedPlatform
}

func (l *Listener) Close() error { return nil }

type Conn struct{}

func (c *Conn) Fd() uintptr              { return 0 }
func (c *Conn) Read([]byte) (int, error) { return 0, ErrUnsupportedPlatform }
func (c *Conn) Write([]byte) (int, error) {
	return 0, ErrUnsupportedPlatform
}
func (c *Conn) Close() error { return nil }
