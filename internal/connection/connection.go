//go:build linux

// Package connection is the per-fd engine: it owns a connection's
// read/write buffers, its resumable request parser, and the two-slot
// gather-write state for the header block plus a memory-mapped file
// body.
package connection

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/lowlatency/yawn/internal/buffer"
	"github.com/lowlatency/yawn/internal/httpbuild"
	"github.com/lowlatency/yawn/internal/httpparse"
)

// ErrClosed is returned by Read/Write once a Connection has been closed.
var ErrClosed = errors.New("connection: closed")

// Connection is one accepted socket's full read/parse/build/write state,
// used from worker-pool tasks under a one-shot epoll rearming discipline:
// at most one task touches a given Connection at a time.
type Connection struct {
	FD      int
	SrcDir  string
	ReadBuf *buffer.Buffer
	parser  *httpparse.Parser

	resp       *httpbuild.Response
	keepAlive  bool
	headerSent int
	bodySent   int

	closed bool
}

// New wraps fd for request processing, rooted at srcDir for static file
// resolution.
func New(fd int, srcDir string) *Connection {
	return &Connection{
		FD:      fd,
		SrcDir:  srcDir,
		ReadBuf: buffer.New(4096),
		parser:  httpparse.New(),
	}
}

// Read performs one scatter-read into the connection's read buffer.
// unix.EAGAIN is returned unchanged so the caller's reactor loop knows to
// keep waiting rather than treat it as connection failure.
func (c *Connection) Read() (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	return c.ReadBuf.ReadFrom(c.FD)
}

// ProcessResult reports what Process accomplished so the caller (the
// reactor/worker glue) knows whether to start writing, wait for more
// input, or tear the connection down.
type ProcessResult int

const (
	NeedMoreData ProcessResult = iota
	ResponseReady
	Malformed
)

// Process feeds the read buffer through the parser and, once a full
// request has arrived, builds the response and arms the write path.
// Building a response while one is already pending (i.e. the previous
// response hasn't finished writing) is a caller error — pipelined
// requests queue behind the in-flight write; only one response is
// in flight per connection at a time.
func (c *Connection) Process() (ProcessResult, error) {
	if c.closed {
		return Malformed, ErrClosed
	}
	status, err := c.parser.Feed(c.ReadBuf)
	switch status {
	case httpparse.NeedMore:
		return NeedMoreData, nil
	case httpparse.BadRequest:
		c.resp = httpbuild.BuildBadRequest(c.SrcDir)
		c.keepAlive = false
		c.headerSent, c.bodySent = 0, 0
		return Malformed, err
	}

	req := c.parser.Request()
	keepAlive := req.KeepAlive()
	c.resp = httpbuild.Build(c.SrcDir, req, keepAlive)
	c.keepAlive = isKeepAlive(c.resp.HeaderText)
	c.headerSent, c.bodySent = 0, 0
	c.parser.Reset()
	return ResponseReady, nil
}

// KeepAlive reports whether the most recently built response wants the
// connection to persist. The answer stays available after that response
// has been fully written.
func (c *Connection) KeepAlive() bool {
	return c.keepAlive
}

// HasPendingResponse reports whether a response is queued to write.
func (c *Connection) HasPendingResponse() bool {
	return c.resp != nil
}

func isKeepAlive(headerText string) bool {
	return containsCRLFLine(headerText, "Connection: keep-alive")
}

func containsCRLFLine(haystack, line string) bool {
	for i := 0; i+len(line) <= len(haystack); i++ {
		if haystack[i:i+len(line)] == line {
			return true
		}
	}
	return false
}

// Write drains as much of the pending response as a single writev(2)
// call accepts, advancing header/body offsets across partial writes. It
// reports true once the full response has been written.
func (c *Connection) Write() (done bool, err error) {
	if c.closed {
		return false, ErrClosed
	}
	if c.resp == nil {
		return true, nil
	}
	header := []byte(c.resp.HeaderText)
	body := c.resp.BodyForWrite()

	var iov [][]byte
	if c.headerSent < len(header) {
		iov = append(iov, header[c.headerSent:])
	}
	if c.bodySent < len(body) {
		rest := body[c.bodySent:]
		if len(rest) > 0 {
			iov = append(iov, rest)
		}
	}
	if len(iov) == 0 {
		c.finishResponse()
		return true, nil
	}

	n, err := unix.Writev(c.FD, iov)
	if err != nil {
		return false, err
	}
	c.advance(n, len(header))

	if c.headerSent >= len(header) && c.bodySent >= len(body) {
		c.finishResponse()
		return true, nil
	}
	return false, nil
}

func (c *Connection) advance(n, headerLen int) {
	remainingHeader := headerLen - c.headerSent
	if remainingHeader > 0 {
		if n <= remainingHeader {
			c.headerSent += n
			return
		}
		c.headerSent = headerLen
		n -= remainingHeader
	}
	c.bodySent += n
}

func (c *Connection) finishResponse() {
	if c.resp != nil {
		c.resp.Close()
	}
	c.resp = nil
}

// Close releases the response's mapped region (if any) and closes the
// underlying fd. Idempotent.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.finishResponse()
	if err := unix.Close(c.FD); err != nil {
		return fmt.Errorf("connection: close fd %d: %w", c.FD, err)
	}
	return nil
}
