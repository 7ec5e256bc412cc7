// Package httpbuild resolves a parsed request against the static file
// root and composes the status line, headers, and body descriptor for
// the connection engine's gather-write: status-line text, a weak-ETag
// scheme (hex(mtime)-hex(size)), and conditional-GET handling.
package httpbuild

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lowlatency/yawn/internal/fileserve"
	"github.com/lowlatency/yawn/internal/httpparse"
	"github.com/lowlatency/yawn/internal/util"
)

// Response is a composed HTTP response: a header block ready to write as
// one chunk, plus an optional memory-mapped body for a second gather-write
// slot.
type Response struct {
	Status     int
	HeaderText string
	Body       *fileserve.Region
	bodyBytes  []byte // used instead of Body for small, non-mmap'd bodies (error pages)
}

// BodyForWrite returns whatever bytes this response carries as its body
// (mmap'd file contents or a small literal page), for the connection
// engine's second gather-write slot.
func (r *Response) BodyForWrite() []byte {
	if r.Body != nil {
		return r.Body.Bytes()
	}
	return r.bodyBytes
}

// Close releases any memory-mapped region the response holds. Idempotent.
func (r *Response) Close() error {
	if r.Body != nil {
		return r.Body.Close()
	}
	return nil
}

var statusText = map[int]string{
	200: "OK",
	204: "No Content",
	304: "Not Modified",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	413: "Request Entity Too Large",
	500: "Internal Server Error",
}

// errorPages maps a status to the static page served for it (400.html,
// 403.html, 404.html), falling back to a tiny built-in body when the
// root doesn't carry that page.
var errorPages = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// Build resolves req against srcDir and composes the response. keepAlive
// is threaded in rather than re-derived from req so callers (which may
// override it, e.g. on a malformed pipeline) stay in control.
func Build(srcDir string, req *httpparse.Request, keepAlive bool) *Response {
	switch {
	case req.Method != "GET" && req.Method != "POST" && req.Method != "HEAD":
		return buildError(405, keepAlive)
	}

	path := req.Path
	if req.Method == "POST" && isFormURLEncoded(req) {
		path = resolveAuthPath(req)
	}

	return buildStatic(srcDir, path, keepAlive, req)
}

// BuildBadRequest composes a 400 response directly, bypassing Build's
// method routing — a malformed request line may carry no usable method at
// all, so there's nothing for that routing to dispatch on.
func BuildBadRequest(srcDir string) *Response {
	return buildErrorFromRoot(srcDir, 400, false)
}

func buildStatic(srcDir, path string, keepAlive bool, req *httpparse.Request) *Response {
	full, info := fileserve.Stat(srcDir, path)
	switch info.Outcome {
	case fileserve.NotFound, fileserve.IsDirectory:
		return buildErrorFromRoot(srcDir, 404, keepAlive)
	case fileserve.Forbidden:
		return buildErrorFromRoot(srcDir, 403, keepAlive)
	case fileserve.StatError:
		return buildError(500, keepAlive)
	}

	etag := weakETag(info.ModTime, info.Size)
	if match := req.Header("If-None-Match"); match != "" && etagMatches(match, etag) {
		return &Response{
			Status:     304,
			HeaderText: statusLine(304) + headerBlock(keepAlive, 0, "", "", etag, info.ModTime),
		}
	}

	region, err := fileserve.Map(full)
	if err != nil {
		return buildError(500, keepAlive)
	}

	contentType := fileserve.ContentType(full)
	resp := &Response{
		Status: 200,
		Body:   region,
	}
	resp.HeaderText = statusLine(200) + headerBlock(keepAlive, region.Len(), contentType, "", etag, info.ModTime)
	return resp
}

func buildErrorFromRoot(srcDir string, status int, keepAlive bool) *Response {
	if page, ok := errorPages[status]; ok {
		if full, info := fileserve.Stat(srcDir, page); info.Outcome == fileserve.OK {
			if region, err := fileserve.Map(full); err == nil {
				resp := &Response{Status: status, Body: region}
				resp.HeaderText = statusLine(status) + headerBlock(keepAlive, region.Len(), "text/html", "", "", time.Time{})
				return resp
			}
		}
	}
	return buildError(status, keepAlive)
}

// buildError composes a minimal built-in body for status, used when the
// static root carries no matching error page or the failure is one
// (like 500) that has no page at all.
func buildError(status int, keepAlive bool) *Response {
	body := []byte(fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", status, http.StatusText(status)))
	resp := &Response{Status: status, bodyBytes: body}
	resp.HeaderText = statusLine(status) + headerBlock(keepAlive, len(body), "text/html", "", "", time.Time{})
	return resp
}

func statusLine(status int) string {
	text := statusText[status]
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, text)
}

func headerBlock(keepAlive bool, length int, contentType, location, etag string, modTime time.Time) string {
	h := fmt.Sprintf("Date: %s\r\n", util.HTTPDateNow())
	h += "Server: yawn\r\n"
	if contentType != "" {
		h += fmt.Sprintf("Content-Type: %s\r\n", contentType)
	}
	h += fmt.Sprintf("Content-Length: %d\r\n", length)
	if !modTime.IsZero() {
		h += fmt.Sprintf("Last-Modified: %s\r\n", util.HTTPDate(modTime))
	}
	if etag != "" {
		h += fmt.Sprintf("ETag: W/%q\r\n", etag)
	}
	if location != "" {
		h += fmt.Sprintf("Location: %s\r\n", location)
	}
	if keepAlive {
		h += "Connection: keep-alive\r\n"
	} else {
		h += "Connection: close\r\n"
	}
	h += "\r\n"
	return h
}

// weakETag is hex(mtime) dash hex(size), both lowercase. The caller is
// responsible for the "W/" prefix and surrounding quotes when putting
// this on the wire.
func weakETag(modTime time.Time, size int64) string {
	return fmt.Sprintf("%s-%s", util.HexString(modTime.Unix()), util.HexString(size))
}

// etagMatches compares a client's If-None-Match value against the bare tag
// this package computes, normalizing away the "W/" weak-indicator prefix
// and surrounding quotes a conformant client echoes back verbatim.
func etagMatches(received, tag string) bool {
	if tag == "" {
		return false
	}
	received = strings.TrimSpace(received)
	received = strings.TrimPrefix(received, "W/")
	received = strings.Trim(received, `"`)
	return received == tag
}
