// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "io"

// Entity is a response body a handler attaches to a Response. WriteTo
// streams the body into w; it is called from the worker thread, never
// from the reactor thread, so it may block.
type Entity interface {
	WriteTo(w io.Writer) error
	// ContentLength returns the body length in bytes, or -1 when it is
	// not known up front and the connection must fall back to chunked
	// framing (or close-delimited framing on HTTP/1.0).
	ContentLength() int64
	ContentType() string
}

// BytesEntity is an Entity backed by an in-memory byte slice, the
// common case for handlers that build a response eagerly.
type BytesEntity struct {
	Data []byte
	Type string
}

func NewBytesEntity(data []byte, contentType string) *BytesEntity {
	return &BytesEntity{Data: data, Type: contentType}
}

func (e *BytesEntity) WriteTo(w io.Writer) error {
	_, err := w.Write(e.Data)
	return err
}

func (e *BytesEntity) ContentLength() int64 { return int64(len(e.Data)) }
func (e *BytesEntity) ContentType() string  { return e.Type }

// StreamEntity adapts an io.Reader of unknown length into an Entity,
// forcing chunked (or close-delimited) framing.
type StreamEntity struct {
	Reader io.Reader
	Type   string
}

func NewStreamEntity(r io.Reader, contentType string) *StreamEntity {
	return &StreamEntity{Reader: r, Type: contentType}
}

func (e *StreamEntity) WriteTo(w io.Writer) error {
	_, err := io.Copy(w, e.Reader)
	return err
}

func (e *StreamEntity) ContentLength() int64 { return -1 }
func (e *StreamEntity) ContentType() string  { return e.Type }
