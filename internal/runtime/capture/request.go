// Package capture buffers request and response bodies so the audit pipeline
// can read them without taking them away from the handler or the client.
package capture

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// Request holds the drained body of an inbound request. The raw bytes are
// replayed to downstream readers unchanged; Body returns them decoded using
// the charset declared in Content-Type (UTF-8 when none is declared).
type Request struct {
	raw  []byte
	body string
	err  error
}

// NewRequest drains r.Body once and installs a replaying reader in its
// place. Read or decode failures leave Body empty and are reported by Err.
func NewRequest(r *http.Request) *Request {
	req := &Request{}
	if r.Body != nil && r.Body != http.NoBody {
		raw, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			req.err = fmt.Errorf("read request body: %w", err)
		}
		req.raw = raw
	}
	if req.err == nil {
		req.body, req.err = decode(req.raw, r.Header.Get("Content-Type"))
	}
	r.Body = req.NewReader()
	r.ContentLength = int64(len(req.raw))
	r.GetBody = func() (io.ReadCloser, error) {
		return req.NewReader(), nil
	}
	return req
}

// Body returns the cached, decoded body.
func (r *Request) Body() string {
	return r.body
}

// SetBody replaces the cached body. Readers opened afterwards see s.
func (r *Request) SetBody(s string) {
	r.body = s
	r.raw = []byte(s)
	r.err = nil
}

// Bytes returns the buffered body as received.
func (r *Request) Bytes() []byte {
	return r.raw
}

// NewReader opens a fresh cursor over the buffered body.
func (r *Request) NewReader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(r.raw))
}

// Err reports why the body could not be read or decoded.
func (r *Request) Err() error {
	return r.err
}

// decode converts raw to a string using the charset parameter of
// contentType. An unknown charset or invalid input yields an error and an
// empty string.
func decode(raw []byte, contentType string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	charset := charsetOf(contentType)
	if charset == "" || charset == "utf-8" || charset == "utf8" || charset == "us-ascii" {
		return string(raw), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("decode body: unsupported charset %q: %w", charset, err)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode body as %s: %w", charset, err)
	}
	return string(decoded), nil
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}
