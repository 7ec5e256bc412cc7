package httpparse

import "strings"

// defaultHTMLPages are the bare paths that get ".html" suffixed before
// resolving against the static root. Anything else is resolved as given.
var defaultHTMLPages = map[string]bool{
	"/index":    true,
	"/register": true,
	"/login":    true,
	"/welcome":  true,
	"/video":    true,
	"/picture":  true,
}

// NormalizePath rewrites "/" to "/index.html", and appends ".html" to
// any of the bare auth-page paths above, before the static resolver
// ever sees the path.
func NormalizePath(path string) string {
	if path == "/" {
		return "/index.html"
	}
	if defaultHTMLPages[path] {
		return path + ".html"
	}
	return path
}

// PercentDecode decodes a percent-encoded path or form component:
// %XX → byte, '+' → ' ' only when decodeSpace is set (query/body are
// form-encoded and use '+' for space; the path itself does not).
func PercentDecode(s string, decodeSpace bool) string {
	if !strings.ContainsAny(s, "%+") {
		if !decodeSpace || !strings.Contains(s, "+") {
			return s
		}
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			if decodeSpace {
				sb.WriteByte(' ')
			} else {
				sb.WriteByte('+')
			}
		case '%':
			if i+2 < len(s) {
				hi, lo := hexVal(s[i+1]), hexVal(s[i+2])
				if hi >= 0 && lo >= 0 {
					sb.WriteByte(byte(hi<<4 | lo))
					i += 2
					continue
				}
			}
			sb.WriteByte('%')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// ParseQueryOrForm splits an "a=b&c=d" payload into a map, percent- and
// plus-decoding each side.
func ParseQueryOrForm(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[PercentDecode(k, true)] = PercentDecode(v, true)
	}
	return out
}
