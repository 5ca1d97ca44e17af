package pagestack

import (
	"bytes"
	"net/http"
	"sort"
)

// ResponseSaver is a wrapper around http.ResponseWriter that records the
// status code, a snapshot of the headers as written, and the body, while
// writing the response through to the underlying http.ResponseWriter.
// The first error writing to the client is kept so callers can tell a
// fully delivered response from an aborted one.
type ResponseSaver struct {
	rw           http.ResponseWriter
	b            *bytes.Buffer
	headers      [][2]string
	status       int
	wroteHeaders bool
	writeErr     error
}

// NewResponseSaver returns a new ResponseSaver teeing to w.
func NewResponseSaver(w http.ResponseWriter) *ResponseSaver {
	return &ResponseSaver{
		rw: w,
		b:  &bytes.Buffer{},
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.rw.Header()
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	// remember that we wrote the headers
	t.wroteHeaders = true
	// set the status code so we can return it later
	t.status = statusCode
	// snapshot the headers as they are at response start
	t.headers = headerPairs(t.rw.Header())
	t.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	n, err := t.rw.Write(b)
	if err != nil && t.writeErr == nil {
		t.writeErr = err
	}
	// buffer everything handed to us, even on a short client write,
	// so Body always reflects what the handler produced
	t.b.Write(b)
	return n, err
}

// StatusCode returns the status code of the response.
func (t *ResponseSaver) StatusCode() int {
	return t.status
}

// Headers returns the header pairs snapshotted at response start.
func (t *ResponseSaver) Headers() [][2]string {
	return t.headers
}

// Body returns the recorded response body.
func (t *ResponseSaver) Body() []byte {
	return t.b.Bytes()
}

// Aborted reports whether a write to the client failed, meaning the
// response was not fully delivered.
func (t *ResponseSaver) Aborted() bool {
	return t.writeErr != nil
}

// headerPairs flattens headers into ordered (name, value) pairs.
// Names are sorted so the snapshot is deterministic; values keep their
// insertion order.
func headerPairs(h http.Header) [][2]string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([][2]string, 0, len(h))
	for _, name := range names {
		for _, value := range h[name] {
			pairs = append(pairs, [2]string{name, value})
		}
	}
	return pairs
}
