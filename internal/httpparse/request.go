// Package httpparse incrementally parses an HTTP/1.1 request out of a
// connection's read buffer: REQUEST_LINE → HEADERS → BODY → FINISH,
// resumable across however many reads it takes for a full request to
// arrive. The Request type stores predefined common headers plus an
// ExtraHeaders map, reused via a sync.Pool.
package httpparse

import (
	"sync"

	"golang.org/x/net/http/httpguts"

	"github.com/lowlatency/yawn/internal/util"
)

// Request is a parsed (or partially parsed) HTTP/1.1 request.
type Request struct {
	Method string
	Path   string
	Proto  string

	ContentType   string
	ContentLength string
	UserAgent     string
	Host          string
	Connection    string

	ExtraHeaders map[string]string
	Query        map[string]string
	Form         map[string]string

	Body []byte
}

var requestPool = sync.Pool{
	New: func() any { return &Request{Body: make([]byte, 0, 256)} },
}

// AcquireRequest returns a zeroed Request from the pool.
func AcquireRequest() *Request {
	r := requestPool.Get().(*Request)
	return r
}

// ReleaseRequest resets r and returns it to the pool.
func ReleaseRequest(r *Request) {
	r.Reset()
	requestPool.Put(r)
}

// Reset clears r for reuse without releasing the Body slice's capacity.
func (r *Request) Reset() {
	r.Method, r.Path, r.Proto = "", "", ""
	r.ContentType, r.ContentLength, r.UserAgent, r.Host, r.Connection = "", "", "", "", ""
	for k := range r.ExtraHeaders {
		delete(r.ExtraHeaders, k)
	}
	for k := range r.Query {
		delete(r.Query, k)
	}
	for k := range r.Form {
		delete(r.Form, k)
	}
	r.Body = r.Body[:0]
}

// SetHeader records a header, routing well-known names to dedicated
// fields and everything else into ExtraHeaders.
func (r *Request) SetHeader(key, value string) {
	switch util.ASCIILower(key) {
	case "content-type":
		r.ContentType = value
	case "content-length":
		r.ContentLength = value
	case "user-agent":
		r.UserAgent = value
	case "host":
		r.Host = value
	case "connection":
		r.Connection = value
	default:
		if !httpguts.ValidHeaderFieldName(key) || !httpguts.ValidHeaderFieldValue(value) {
			return
		}
		if r.ExtraHeaders == nil {
			r.ExtraHeaders = make(map[string]string)
		}
		r.ExtraHeaders[key] = value
	}
}

// Header looks up a header by name (case-insensitively for the
// well-known ones, exact-case for ExtraHeaders as stored).
func (r *Request) Header(key string) string {
	switch util.ASCIILower(key) {
	case "content-type":
		return r.ContentType
	case "content-length":
		return r.ContentLength
	case "user-agent":
		return r.UserAgent
	case "host":
		return r.Host
	case "connection":
		return r.Connection
	default:
		return r.ExtraHeaders[key]
	}
}

// KeepAlive reports whether the connection should persist after this
// response: HTTP/1.1 defaults to keep-alive unless Connection: close is
// present; HTTP/1.0 defaults to close unless Connection: keep-alive is
// present.
func (r *Request) KeepAlive() bool {
	conn := util.ASCIILower(r.Connection)
	if r.Proto == "HTTP/1.1" {
		return conn != "close"
	}
	return conn == "keep-alive"
}
