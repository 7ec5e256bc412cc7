// Package util holds small stateless helpers shared across the server:
// GMT date formatting for the HTTP Date/Last-Modified headers, hex digit
// conversion for percent-decoding and ETag rendering, and ASCII case
// folding for header names and tokens.
package util

import (
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// httpDateLayout matches "%a, %d %b %Y %H:%M:%S GMT".
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// HTTPDate renders t in GMT using the RFC-1123 form HTTP requires.
func HTTPDate(t time.Time) string {
	return t.UTC().Format(httpDateLayout)
}

// HTTPDateNow renders the current time in GMT.
func HTTPDateNow() string {
	return HTTPDate(time.Now())
}

var lowerCaser = cases.Lower(language.Und)

// ASCIILower case-folds s the way header field names and Connection-token
// comparisons require. Header names and HTTP tokens are ASCII, so Unicode
// case folding and byte-for-byte ASCII lowering agree; cases.Lower is used
// instead of strings.ToLower so header comparisons go through the same
// Unicode-aware path the rest of the text-processing stack uses.
func ASCIILower(s string) string {
	return lowerCaser.String(s)
}

// HexDigit converts one hex character to its numeric value, or -1 if ch is
// not a hex digit.
func HexDigit(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10
	default:
		return -1
	}
}

const hexDigits = "0123456789abcdef"

// PutHex appends the lowercase hex encoding of n to dst.
func PutHex(dst []byte, n int64) []byte {
	if n == 0 {
		return append(dst, '0')
	}
	if n < 0 {
		dst = append(dst, '-')
		n = -n
	}
	var tmp [16]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = hexDigits[n&0xf]
		n >>= 4
	}
	return append(dst, tmp[i:]...)
}

// HexString returns the lowercase hex encoding of n.
func HexString(n int64) string {
	return string(PutHex(nil, n))
}

// AppendInt appends the base-10 rendering of n to dst.
func AppendInt(dst []byte, n int) []byte {
	return append(dst, strconv.Itoa(n)...)
}
