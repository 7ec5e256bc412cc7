package httpparse

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/lowlatency/yawn/internal/buffer"
)

// State is a parser's position in the REQUEST_LINE → HEADERS → BODY →
// FINISH progression, which must survive across however many reads it
// takes for a full request to arrive.
type State int

const (
	StateRequestLine State = iota
	StateHeaders
	StateBody
	StateFinish
)

// Status is what Feed accomplished on one call.
type Status int

const (
	NeedMore Status = iota
	Done
	BadRequest
)

var ErrMalformed = errors.New("httpparse: malformed request")

// Parser holds the resumable state for one connection's in-flight
// request. It is reused across requests on a keep-alive connection via
// Reset.
type Parser struct {
	state         State
	req           *Request
	contentLength int
}

// New returns a parser ready to parse a request line.
func New() *Parser {
	return &Parser{state: StateRequestLine, req: AcquireRequest()}
}

// Reset prepares p to parse the next request on the same connection,
// releasing the previous Request back to its pool. Callers that want to
// keep the completed Request (to build a response from it) must do so
// before calling Reset.
func (p *Parser) Reset() {
	ReleaseRequest(p.req)
	p.state = StateRequestLine
	p.req = AcquireRequest()
	p.contentLength = 0
}

// Request returns the request being built, valid to read once Feed has
// returned Done.
func (p *Parser) Request() *Request { return p.req }

// Feed consumes as much of buf as forms complete request-line/header/body
// units, advancing state. It returns NeedMore when buf doesn't yet hold a
// full unit for the current state (callers read more and call Feed
// again), Done once a full request (including any body) has been
// consumed, or BadRequest on a malformed request line or headers.
func (p *Parser) Feed(buf *buffer.Buffer) (Status, error) {
	for {
		switch p.state {
		case StateRequestLine:
			st, err := p.parseRequestLine(buf)
			if st != Done {
				return st, err
			}
			p.state = StateHeaders
		case StateHeaders:
			st, err := p.parseHeaders(buf)
			if st != Done {
				return st, err
			}
			if p.req.ContentLength != "" {
				n, err := strconv.Atoi(p.req.ContentLength)
				if err != nil || n < 0 {
					return BadRequest, ErrMalformed
				}
				p.contentLength = n
			}
			if p.contentLength == 0 {
				p.state = StateFinish
				return Done, nil
			}
			p.state = StateBody
		case StateBody:
			if buf.ReadableBytes() < p.contentLength {
				return NeedMore, nil
			}
			body := buf.RetrieveAsString(p.contentLength)
			p.req.Body = append(p.req.Body[:0], body...)
			if isFormURLEncoded(p.req.ContentType) {
				p.req.Form = ParseQueryOrForm(body)
			}
			p.state = StateFinish
			return Done, nil
		case StateFinish:
			return Done, nil
		}
	}
}

func (p *Parser) parseRequestLine(buf *buffer.Buffer) (Status, error) {
	data := buf.Peek()
	idx := bytes.Index(data, []byte("\r\n"))
	if idx == -1 {
		if len(data) > maxRequestLineLen {
			return BadRequest, ErrMalformed
		}
		return NeedMore, nil
	}
	line := data[:idx]

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return BadRequest, ErrMalformed
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 == -1 {
		return BadRequest, ErrMalformed
	}

	p.req.Method = string(line[:sp1])
	rawPath := string(rest[:sp2])
	p.req.Proto = string(rest[sp2+1:])
	if p.req.Method == "" || !validProto(p.req.Proto) {
		return BadRequest, ErrMalformed
	}

	path := rawPath
	if q := strings.IndexByte(path, '?'); q != -1 {
		p.req.Query = ParseQueryOrForm(path[q+1:])
		path = path[:q]
	}
	p.req.Path = NormalizePath(PercentDecode(path, false))

	buf.Retrieve(idx + 2)
	return Done, nil
}

// maxRequestLineLen bounds how long Feed will wait for a "\r\n" before
// declaring the request malformed, so a client that never sends one
// can't grow the read buffer without limit.
const maxRequestLineLen = 8192

func (p *Parser) parseHeaders(buf *buffer.Buffer) (Status, error) {
	for {
		data := buf.Peek()
		idx := bytes.Index(data, []byte("\r\n"))
		if idx == -1 {
			if len(data) > maxHeaderLen {
				return BadRequest, ErrMalformed
			}
			return NeedMore, nil
		}
		line := data[:idx]
		buf.Retrieve(idx + 2)

		if len(line) == 0 {
			return Done, nil
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return BadRequest, ErrMalformed
		}
		key := string(bytes.TrimSpace(line[:colon]))
		val := string(bytes.TrimSpace(line[colon+1:]))
		p.req.SetHeader(key, val)
	}
}

const maxHeaderLen = 8192

// validProto reports whether s is exactly "HTTP/" followed by one or more
// digits, a dot, and one or more digits — rejecting anything else (a
// missing version, a bogus token) as part of a malformed request line.
func validProto(s string) bool {
	const prefix = "HTTP/"
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	ver := s[len(prefix):]
	dot := strings.IndexByte(ver, '.')
	if dot <= 0 || dot == len(ver)-1 {
		return false
	}
	return isAllDigits(ver[:dot]) && isAllDigits(ver[dot+1:])
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isFormURLEncoded(contentType string) bool {
	return strings.HasPrefix(contentType, "application/x-www-form-urlencoded")
}
