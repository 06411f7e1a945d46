package urlutil

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Per-component safe sets. Characters listed here pass through quoting
// untouched in addition to alphanumerics and "_.-~".
const (
	pathSafe     = "-;/=,~*+()@!"
	fragmentSafe = "!$&'()*+,-./;=?@_~"
	querySafe    = "/-:,;"
	netlocSafe   = "@:"
)

const upperhex = "0123456789ABCDEF"

func charsetOrUTF8(cs encoding.Encoding) encoding.Encoding {
	if cs == nil {
		return unicode.UTF8
	}
	return cs
}

func isAlwaysSafe(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9' ||
		c == '_' || c == '.' || c == '-' || c == '~'
}

func isHexByte(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhexByte(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// quoteWith percent-encodes s in the given charset, leaving
// alphanumerics, "_.-~" and the bytes in safe untouched. Hex digits
// are emitted in uppercase.
func quoteWith(s, safe string, cs encoding.Encoding) (string, error) {
	b, err := charsetOrUTF8(cs).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return "", fmt.Errorf("cannot represent %q in target charset: %w", s, err)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if isAlwaysSafe(c) || (c < 0x80 && strings.IndexByte(safe, c) >= 0) {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('%')
			sb.WriteByte(upperhex[c>>4])
			sb.WriteByte(upperhex[c&0xf])
		}
	}
	return sb.String(), nil
}

// Unquote percent-decodes s. Runs of decoded bytes are interpreted in
// the given charset; invalid escape sequences are left untouched.
func Unquote(s string, cs encoding.Encoding) string {
	i := strings.IndexByte(s, '%')
	if i < 0 {
		return s
	}
	dec := charsetOrUTF8(cs).NewDecoder()
	var sb strings.Builder
	sb.Grow(len(s))
	sb.WriteString(s[:i])
	var run []byte
	flush := func() {
		if len(run) == 0 {
			return
		}
		if d, err := dec.Bytes(run); err == nil {
			sb.Write(d)
		} else {
			sb.Write(run)
		}
		run = run[:0]
	}
	for i < len(s) {
		if s[i] == '%' && i+2 < len(s) && isHexByte(s[i+1]) && isHexByte(s[i+2]) {
			run = append(run, unhexByte(s[i+1])<<4|unhexByte(s[i+2]))
			i += 3
			continue
		}
		flush()
		j := strings.IndexByte(s[i+1:], '%')
		if j < 0 {
			sb.WriteString(s[i:])
			i = len(s)
		} else {
			sb.WriteString(s[i : i+1+j])
			i += 1 + j
		}
	}
	flush()
	return sb.String()
}

// QuoteURL quotes a URL component-wise. Relative references are quoted
// as plain documents with the query part left untouched.
func QuoteURL(rawurl string, cs encoding.Encoding) (string, error) {
	if !IsAbsolute(rawurl) {
		return documentQuote(rawurl, cs)
	}
	p := Split(rawurl)
	var err error
	if p.Scheme, err = quoteWith(p.Scheme, "/", cs); err != nil {
		return "", err
	}
	if p.Netloc, err = quoteWith(p.Netloc, ":", cs); err != nil {
		return "", err
	}
	if p.Path, err = quoteWith(p.Path, "/=,", cs); err != nil {
		return "", err
	}
	q, err := quoteWith(p.Query, "&=,", cs)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, t := range parseQSL(q, cs) {
		k, err := quoteWith(t.key, querySafe, cs)
		if err != nil {
			return "", err
		}
		if t.hasVal && t.val != "" {
			v, err := quoteWith(t.val, querySafe, cs)
			if err != nil {
				return "", err
			}
			sb.WriteString(k + "=" + v + t.sep)
		} else {
			sb.WriteString(k + t.sep)
		}
	}
	p.Query = sb.String()
	if p.Fragment, err = quoteWith(p.Fragment, "/", cs); err != nil {
		return "", err
	}
	return p.Unsplit(), nil
}

func documentQuote(document string, cs encoding.Encoding) (string, error) {
	doc, query, found := cutLast(document, "?")
	if !found {
		doc = document
	}
	doc, err := quoteWith(doc, "/=,", cs)
	if err != nil {
		return "", err
	}
	if found && query != "" {
		return doc + "?" + query, nil
	}
	return doc, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
