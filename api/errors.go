// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Protocol-level exceptions and the error-to-status mapping used when
// a worker must turn a failure into an HTTP response instead of a
// connection reset.

package api

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned by blocking buffer operations when the
// owning connection is shut down while a worker is waiting.
var ErrInterrupted = errors.New("htcore: connection interrupted")

// ErrResponseAlreadySubmitted guards against a handler submitting a
// response twice for the same request.
var ErrResponseAlreadySubmitted = errors.New("htcore: response already submitted")

// ErrNoHandler signals that the resolver found no route for a request.
var ErrNoHandler = errors.New("htcore: no handler for request")

// ProtocolException is a malformed or unsupported HTTP/1.x exchange.
// It carries the information needed to build the fallback response
// without the worker having to re-classify the underlying error.
type ProtocolException struct {
	Message string
	Kind    ProtocolExceptionKind
	Cause   error
}

// ProtocolExceptionKind distinguishes the mapped HTTP statuses without
// forcing callers to string-match error messages.
type ProtocolExceptionKind int

const (
	// ProtocolMalformed covers a request line or headers that cannot
	// be parsed at all.
	ProtocolMalformed ProtocolExceptionKind = iota
	// ProtocolMethodNotSupported marks a syntactically valid method the
	// server chooses not to handle.
	ProtocolMethodNotSupported
	// ProtocolUnsupportedVersion marks an HTTP version the server will
	// not negotiate down from.
	ProtocolUnsupportedVersion
)

func (e *ProtocolException) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("htcore: protocol error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("htcore: protocol error: %s", e.Message)
}

func (e *ProtocolException) Unwrap() error { return e.Cause }

// NewMethodNotSupportedException builds the exception that maps to 501.
func NewMethodNotSupportedException(method string) *ProtocolException {
	return &ProtocolException{
		Message: fmt.Sprintf("method not supported: %s", method),
		Kind:    ProtocolMethodNotSupported,
	}
}

// NewUnsupportedHttpVersionException builds the exception that maps to 505.
func NewUnsupportedHttpVersionException(version string) *ProtocolException {
	return &ProtocolException{
		Message: fmt.Sprintf("unsupported HTTP version: %s", version),
		Kind:    ProtocolUnsupportedVersion,
	}
}

// NewMalformedRequestException builds the exception that maps to 400.
func NewMalformedRequestException(reason string, cause error) *ProtocolException {
	return &ProtocolException{Message: reason, Kind: ProtocolMalformed, Cause: cause}
}

// ExceptionMessage extracts the bare, user-facing text for an error
// response body: a ProtocolException contributes its own Message only,
// never the "htcore: protocol error:" wrapping or Cause that Error()
// adds for logs. Any other error falls back to err.Error().
func ExceptionMessage(err error) string {
	var pe *ProtocolException
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

// MapExceptionToStatus implements the error classification table: a
// ProtocolException maps to the status its Kind names, any other error
// reaching the worker's top level maps to 500, both delivered over a
// downgraded HTTP/1.0 connection.
func MapExceptionToStatus(err error) int {
	var pe *ProtocolException
	if errors.As(err, &pe) {
		switch pe.Kind {
		case ProtocolMethodNotSupported:
			return 501
		case ProtocolUnsupportedVersion:
			return 505
		default:
			return 400
		}
	}
	return 500
}
