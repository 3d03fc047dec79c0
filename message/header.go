// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import (
	"net/textproto"
	"strconv"
	"strings"
)

// Header is a case-insensitive, multi-valued HTTP header collection.
// Keys are canonicalized with net/textproto the same way net/http does,
// so values copied from or into an http.Header round-trip unchanged.
// Values under one key keep the order they were added in; the order of
// keys is not defined.
type Header map[string][]string

func NewHeader() Header { return make(Header) }

func (h Header) Add(key, value string) {
	key = textproto.CanonicalMIMEHeaderKey(key)
	h[key] = append(h[key], value)
}

func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

func (h Header) Get(key string) string {
	v := h[textproto.CanonicalMIMEHeaderKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (h Header) Values(key string) []string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

func (h Header) Has(key string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

// ContentLength returns the parsed Content-Length, or -1 when absent
// or malformed.
func (h Header) ContentLength() int64 {
	v := h.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// IsChunked reports whether Transfer-Encoding names chunked as the
// final coding, the only form this server accepts on input.
func (h Header) IsChunked() bool {
	te := h.Get("Transfer-Encoding")
	if te == "" {
		return false
	}
	parts := strings.Split(te, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	return strings.EqualFold(last, "chunked")
}

// ExpectsContinue reports an "Expect: 100-continue" request header.
func (h Header) ExpectsContinue() bool {
	return strings.EqualFold(strings.TrimSpace(h.Get("Expect")), "100-continue")
}

// WantsClose reports a "Connection: close" token on either side.
func (h Header) WantsClose() bool {
	for _, v := range h.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "close") {
				return true
			}
		}
	}
	return false
}

func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
