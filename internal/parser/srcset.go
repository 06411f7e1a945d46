package parser

import (
	"strconv"
	"strings"
)

// ParseSrcset parses an img srcset attribute per the WHATWG
// "parse a srcset attribute" algorithm and returns the image candidate
// URLs. Candidates with invalid descriptors are dropped.
func ParseSrcset(input string) []string {
	var urls []string
	pos := 0
	n := len(input)
	for pos < n {
		for pos < n && (isHTMLSpace(input[pos]) || input[pos] == ',') {
			pos++
		}
		if pos >= n {
			break
		}
		start := pos
		for pos < n && !isHTMLSpace(input[pos]) {
			pos++
		}
		url := input[start:pos]

		if strings.HasSuffix(url, ",") {
			// Comma-terminated URL has no descriptors.
			url = strings.TrimRight(url, ",")
			if url != "" {
				urls = append(urls, url)
			}
			continue
		}

		descriptors, next := parseDescriptors(input, pos)
		pos = next
		if validDescriptors(descriptors) {
			urls = append(urls, url)
		}
	}
	return urls
}

// parseDescriptors tokenizes the descriptor list following a URL,
// honouring parentheses, and returns the descriptors and the position
// after the candidate.
func parseDescriptors(input string, pos int) ([]string, int) {
	n := len(input)
	for pos < n && isHTMLSpace(input[pos]) {
		pos++
	}
	var descriptors []string
	var current strings.Builder
	inParens := false
	for pos < n {
		c := input[pos]
		if inParens {
			current.WriteByte(c)
			if c == ')' {
				inParens = false
			}
			pos++
			continue
		}
		switch {
		case c == ',':
			pos++
			if current.Len() > 0 {
				descriptors = append(descriptors, current.String())
			}
			return descriptors, pos
		case isHTMLSpace(c):
			if current.Len() > 0 {
				descriptors = append(descriptors, current.String())
				current.Reset()
			}
			pos++
		case c == '(':
			current.WriteByte(c)
			inParens = true
			pos++
		default:
			current.WriteByte(c)
			pos++
		}
	}
	if current.Len() > 0 {
		descriptors = append(descriptors, current.String())
	}
	return descriptors, pos
}

// validDescriptors applies the WHATWG descriptor rules: at most one of
// a width (w), density (x) or height (h) descriptor, heights only next
// to widths, values must parse.
func validDescriptors(descriptors []string) bool {
	var hasW, hasD, hasH bool
	for _, desc := range descriptors {
		if len(desc) < 2 {
			return false
		}
		value := desc[:len(desc)-1]
		switch desc[len(desc)-1] {
		case 'w':
			if hasW || hasD {
				return false
			}
			i, err := strconv.Atoi(value)
			if err != nil || i <= 0 || !plainInteger(value) {
				return false
			}
			hasW = true
		case 'x':
			if hasW || hasD || hasH {
				return false
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f < 0 || !plainFloat(value) {
				return false
			}
			hasD = true
		case 'h':
			if hasH || hasD {
				return false
			}
			i, err := strconv.Atoi(value)
			if err != nil || i <= 0 || !plainInteger(value) {
				return false
			}
			hasH = true
		default:
			return false
		}
	}
	if hasH && !hasW {
		return false
	}
	return true
}

func isHTMLSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

// plainInteger rejects signs and other forms strconv tolerates that
// the srcset grammar does not.
func plainInteger(s string) bool {
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

// plainFloat accepts the HTML valid floating point number grammar:
// digits, one optional dot with digits after it, optional e-notation.
func plainFloat(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	digits := func() bool {
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		return i > start
	}
	if !digits() {
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		if !digits() {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		if !digits() {
			return false
		}
	}
	return i == len(s)
}
