package wire

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/momentics/htcore/message"
)

func TestParseRequestLine_SimpleGET(t *testing.T) {
	raw := "GET /hello HTTP/1.1\r\nHost: example.test\r\nX-Foo: bar\r\n\r\n"
	req, err := ParseRequestLine(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" || req.RequestURI != "/hello" {
		t.Fatalf("got %+v", req)
	}
	if req.Header.Get("Host") != "example.test" {
		t.Fatalf("header not parsed: %+v", req.Header)
	}
	if req.HasEntity {
		t.Fatal("GET without body should not have entity")
	}
}

func TestParseRequestLine_UnknownMethod(t *testing.T) {
	raw := "FROB /x HTTP/1.1\r\n\r\n"
	_, err := ParseRequestLine(bufio.NewReader(strings.NewReader(raw)))
	if err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestContentLengthDecoder_ReadsExactBytes(t *testing.T) {
	dec := NewContentLengthDecoder(strings.NewReader("hello world"), 5)
	dst := make([]byte, 16)
	n, done, err := dec.Decode(dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 || !done || string(dst[:n]) != "hello" {
		t.Fatalf("got n=%d done=%v data=%q", n, done, dst[:n])
	}
}

func TestChunkedDecoder_ReadsAllChunks(t *testing.T) {
	raw := "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	dec := NewChunkedDecoder(strings.NewReader(raw))

	var out bytes.Buffer
	dst := make([]byte, 4)
	for {
		n, done, err := dec.Decode(dst)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out.Write(dst[:n])
		if done {
			break
		}
	}
	if out.String() != "hello world" {
		t.Fatalf("got %q", out.String())
	}
}

func TestResponseWriter_IdentityFraming(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)

	resp := message.NewResponse(message.HTTP11, 200)
	resp.Header.Set("Content-Length", "5")
	if err := rw.WriteHead(resp); err != nil {
		t.Fatalf("WriteHead: %v", err)
	}
	if _, err := rw.Encode([]byte("hello")); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := rw.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("missing status line: %q", got)
	}
	if !strings.HasSuffix(got, "hello") {
		t.Fatalf("missing body: %q", got)
	}
}

func TestResponseWriter_ChunkedFraming(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)

	resp := message.NewResponse(message.HTTP11, 200)
	resp.Header.Set("Transfer-Encoding", "chunked")
	if err := rw.WriteHead(resp); err != nil {
		t.Fatalf("WriteHead: %v", err)
	}
	if _, err := rw.Encode([]byte("abc")); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := rw.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "3\r\nabc\r\n") {
		t.Fatalf("missing chunk framing: %q", got)
	}
	if !strings.HasSuffix(got, "0\r\n\r\n") {
		t.Fatalf("missing terminal chunk: %q", got)
	}
}
