package capture

import (
	"bytes"
	"fmt"
	"net/http"

	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
)

// Response buffers status and body written by a handler. Headers go straight
// to the underlying writer's header map; nothing reaches the client until
// CopyBodyToResponse.
type Response struct {
	w           http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
	committed   bool
}

// NewResponse wraps w.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w, status: http.StatusOK}
}

func (r *Response) Header() http.Header {
	return r.w.Header()
}

func (r *Response) WriteHeader(code int) {
	if r.wroteHeader || r.committed {
		return
	}
	r.status = code
	r.wroteHeader = true
}

func (r *Response) Write(p []byte) (int, error) {
	if r.committed {
		return 0, errspkg.ErrResponseAlreadyCommitted
	}
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.buf.Write(p)
}

// Flush is a no-op: nothing reaches the client before CopyBodyToResponse.
// It lets handlers that stream through http.Flusher keep working, buffered.
func (r *Response) Flush() {}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *Response) Unwrap() http.ResponseWriter {
	return r.w
}

// Status returns the status the handler set, 200 when it set none.
func (r *Response) Status() int {
	return r.status
}

// Bytes returns the buffered body.
func (r *Response) Bytes() []byte {
	return r.buf.Bytes()
}

// Len reports the number of buffered body bytes.
func (r *Response) Len() int {
	return r.buf.Len()
}

// Body returns the buffered body decoded with the charset of the response
// Content-Type.
func (r *Response) Body() (string, error) {
	return decode(r.buf.Bytes(), r.w.Header().Get("Content-Type"))
}

// Committed reports whether the buffer was already copied to the client.
func (r *Response) Committed() bool {
	return r.committed
}

// CopyBodyToResponse writes the buffered status and body to the underlying
// writer. It succeeds once; later calls return ErrResponseAlreadyCommitted.
func (r *Response) CopyBodyToResponse() error {
	if r.committed {
		return errspkg.ErrResponseAlreadyCommitted
	}
	r.committed = true
	r.w.WriteHeader(r.status)
	if r.buf.Len() == 0 {
		return nil
	}
	if _, err := r.w.Write(r.buf.Bytes()); err != nil {
		return fmt.Errorf("copy captured response: %w", err)
	}
	return nil
}
