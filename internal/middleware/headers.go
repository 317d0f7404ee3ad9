package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ExposeHeadersHeader is the CORS header listing response headers readable by browsers
const ExposeHeadersHeader = "Access-Control-Expose-Headers"

// ResponseWriter wraps http.ResponseWriter to run header hooks right before the
// status line is sent, and to capture the status code and response size.
//
// Stacked middlewares share a single ResponseWriter: NewResponseWriter returns
// w unchanged when it already is one.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
	hooks       []func(http.Header)
}

// NewResponseWriter wraps w, or returns it when it is already a *ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// OnBeforeWrite registers fn to run once on the response headers before they are sent.
// Hooks registered after the headers went out are ignored.
func (rw *ResponseWriter) OnBeforeWrite(fn func(http.Header)) {
	if rw.wroteHeader {
		return
	}
	rw.hooks = append(rw.hooks, fn)
}

// WriteHeader runs the hooks and sends the status code
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	// 1xx responses other than 101 may be followed by the final status
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		rw.ResponseWriter.WriteHeader(code)
		return
	}

	rw.wroteHeader = true
	rw.statusCode = code

	h := rw.ResponseWriter.Header()
	for _, fn := range rw.hooks {
		fn(h)
	}
	rw.hooks = nil

	rw.ResponseWriter.WriteHeader(code)
}

// Write sends the headers with status 200 if needed, then the body
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher
func (rw *ResponseWriter) Flush() {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.wroteHeader = true
	rw.hooks = nil
	return h.Hijack()
}

// Unwrap returns the underlying writer for http.ResponseController
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// StatusCode returns the status sent, or 200 if nothing was written yet
func (rw *ResponseWriter) StatusCode() int {
	return rw.statusCode
}

// BytesWritten returns the number of body bytes written
func (rw *ResponseWriter) BytesWritten() int {
	return rw.size
}

// Written reports whether the headers have been sent
func (rw *ResponseWriter) Written() bool {
	return rw.wroteHeader
}

// ExposeHeader adds name to the Access-Control-Expose-Headers list of h,
// keeping entries already there and skipping duplicates.
func ExposeHeader(h http.Header, name string) {
	var names []string
	for _, v := range h.Values(ExposeHeadersHeader) {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.EqualFold(part, name) {
				return
			}
			names = append(names, part)
		}
	}
	names = append(names, name)
	h.Set(ExposeHeadersHeader, strings.Join(names, ", "))
}
