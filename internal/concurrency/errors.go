// File: internal/concurrency/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "errors"

var (
	// ErrExecutorClosed is returned by Submit after Close.
	ErrExecutorClosed = errors.New("concurrency: executor closed")
)
