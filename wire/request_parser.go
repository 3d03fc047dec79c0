// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package wire implements the HTTP/1.x request-line/header parser and
// the Content-Length/chunked body codecs used to drive
// iobuf.SharedInputBuffer and iobuf.SharedOutputBuffer.
package wire

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/message"
)

// ParseRequestLine reads and parses one request line and its header
// block from r. Header parsing is assumed fast and bounded, so this
// call may block briefly on the underlying reader; it runs once per
// request, outside the buffer/backpressure machinery that governs the
// entity body.
func ParseRequestLine(r *bufio.Reader) (*message.Request, error) {
	line, err := readCRLFLine(r)
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, api.NewMalformedRequestException("empty request line", nil)
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, api.NewMalformedRequestException(fmt.Sprintf("malformed request line %q", line), nil)
	}
	method, uri, protoStr := parts[0], parts[1], parts[2]

	proto, err := message.ParseVersion(protoStr)
	if err != nil {
		return nil, api.NewMalformedRequestException(err.Error(), err)
	}

	if !isKnownMethod(method) {
		return nil, api.NewMethodNotSupportedException(method)
	}

	req := message.NewRequest(method, uri, proto)

	for {
		hline, err := readCRLFLine(r)
		if err != nil {
			return nil, err
		}
		if hline == "" {
			break
		}
		name, value, ok := strings.Cut(hline, ":")
		if !ok {
			return nil, api.NewMalformedRequestException(fmt.Sprintf("malformed header %q", hline), nil)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	req.HasEntity = req.Header.ContentLength() > 0 || req.Header.IsChunked()
	return req, nil
}

func readCRLFLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isKnownMethod(m string) bool {
	switch m {
	case "GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "TRACE", "CONNECT", "PATCH":
		return true
	default:
		return false
	}
}
