// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "strconv"

// Response is a status line, header block, and optional Entity built
// by a Handler and then streamed out by the worker.
type Response struct {
	Proto      ProtocolVersion
	StatusCode int
	Reason     string
	Header     Header

	entity Entity
}

func NewResponse(proto ProtocolVersion, statusCode int) *Response {
	return &Response{
		Proto:      proto,
		StatusCode: statusCode,
		Reason:     StatusText(statusCode),
		Header:     NewHeader(),
	}
}

func (r *Response) SetEntity(e Entity) { r.entity = e }
func (r *Response) Entity() Entity     { return r.entity }

// MustHaveNoEntity reports the HTTP/1.x cases where a body is forbidden
// regardless of what the handler attached: HEAD responses and 1xx/204/304
// status lines.
func (r *Response) MustHaveNoEntity(requestMethod string) bool {
	if requestMethod == "HEAD" {
		return true
	}
	if r.StatusCode >= 100 && r.StatusCode < 200 {
		return true
	}
	return r.StatusCode == 204 || r.StatusCode == 304
}

// PrepareFraming finalizes Content-Length/Transfer-Encoding headers
// based on the attached entity and the negotiated protocol version. It
// must run after the handler has stopped mutating the response and
// before any bytes are written.
func (r *Response) PrepareFraming(requestMethod string, allowChunked bool) {
	r.Header.Del("Content-Length")
	r.Header.Del("Transfer-Encoding")

	if r.MustHaveNoEntity(requestMethod) || r.entity == nil {
		return
	}

	if ct := r.entity.ContentType(); ct != "" && !r.Header.Has("Content-Type") {
		r.Header.Set("Content-Type", ct)
	}

	if n := r.entity.ContentLength(); n >= 0 {
		r.Header.Set("Content-Length", strconv.FormatInt(n, 10))
		return
	}
	if allowChunked {
		r.Header.Set("Transfer-Encoding", "chunked")
	}
	// else: close-delimited, framing is implicit in connection teardown.
}
