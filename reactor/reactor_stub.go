//go:build !linux && !windows
// +build !linux,!windows

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "errors"

// NewReactor returns an error for unsupported platforms. Portable
// deployments drive connections through server.BlockingDriver instead.
func NewReactor() (Reactor, error) {
	return nil, errors.New("reactor: this platform is not supported, use server.BlockingDriver")
}
