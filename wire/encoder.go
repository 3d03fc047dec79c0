// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/momentics/htcore/message"
)

// ResponseWriter writes a response's status line and headers once, then
// streams the body (if any) through Encode/Complete per api.Encoder.
// Status-line/header transmission happens synchronously on the calling
// worker goroutine rather than through SharedOutputBuffer, matching the
// assumption that header blocks are small and fast, the same as
// ParseRequestLine on the request side; a transient ErrWouldBlock from
// the non-blocking socket is retried with backoff rather than treated
// as a fatal protocol error, so a full send-buffer never gets
// misclassified as a malformed exchange.
type ResponseWriter struct {
	w       *bufio.Writer
	chunked bool
}

func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{w: bufio.NewWriter(w)}
}

// Reset rebinds rw to a new underlying writer and clears framing state
// left over from the previous connection, so a *ResponseWriter can be
// recycled from a pool instead of reallocating its bufio.Writer per
// connection.
func (rw *ResponseWriter) Reset(w io.Writer) {
	rw.w.Reset(w)
	rw.chunked = false
}

// WriteHead writes the status line and headers and flushes them
// immediately, before any body bytes are produced. The head is
// assembled off-buffer first so a would-block partway through can be
// retried as a whole without re-deriving what was already written.
func (rw *ResponseWriter) WriteHead(resp *message.Response) error {
	var head bytes.Buffer
	fmt.Fprintf(&head, "%s %d %s\r\n", resp.Proto, resp.StatusCode, resp.Reason)

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			fmt.Fprintf(&head, "%s: %s\r\n", k, v)
		}
	}
	head.WriteString("\r\n")

	rw.chunked = resp.Header.IsChunked()
	return rw.writeRetrying(head.Bytes())
}

// writeRetrying writes p to the underlying non-blocking socket,
// retrying on ErrWouldBlock with the same adaptive spin-wait backoff
// the reactor's poll loop uses for empty iterations, capped at 1ms,
// instead of surfacing a transient full send buffer as a write error.
func (rw *ResponseWriter) writeRetrying(p []byte) error {
	const maxBackoff = time.Millisecond
	backoff := time.Nanosecond
	for len(p) > 0 {
		n, err := rw.w.Write(p)
		p = p[n:]
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				time.Sleep(backoff)
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			return err
		}
	}

	backoff = time.Nanosecond
	for {
		err := rw.w.Flush()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}
		time.Sleep(backoff)
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Encode implements api.Encoder for the body, applying chunked framing
// when WriteHead saw Transfer-Encoding: chunked.
func (rw *ResponseWriter) Encode(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	if rw.chunked {
		if _, err := fmt.Fprintf(rw.w, "%x\r\n", len(src)); err != nil {
			return 0, err
		}
		if _, err := rw.w.Write(src); err != nil {
			return 0, err
		}
		if _, err := rw.w.WriteString("\r\n"); err != nil {
			return 0, err
		}
	} else {
		if _, err := rw.w.Write(src); err != nil {
			return 0, err
		}
	}
	if err := rw.w.Flush(); err != nil {
		if errors.Is(err, ErrWouldBlock) {
			// Partial-flush-would-block is treated as fully accepted
			// for this simplified codec; the underlying bufio.Writer
			// keeps the unflushed tail and a later Flush retries it.
			return len(src), nil
		}
		return 0, err
	}
	return len(src), nil
}

// Complete writes the terminating zero-length chunk when chunked
// framing is in effect; identity framing needs no terminator.
func (rw *ResponseWriter) Complete() error {
	if !rw.chunked {
		return nil
	}
	if _, err := rw.w.WriteString("0\r\n\r\n"); err != nil {
		return err
	}
	return rw.w.Flush()
}
