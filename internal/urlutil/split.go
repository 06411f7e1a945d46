// Package urlutil implements URL splitting, normalization and quoting
// for link checking. Unlike net/url it never rejects an input outright;
// malformed references are repaired where possible so that the checker
// can still report something useful about them.
package urlutil

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPorts maps URL schemes to the port used when none is given.
var DefaultPorts = map[string]int{
	"http":  80,
	"https": 443,
	"nntps": 563,
	"ftp":   21,
}

// Schemes whose paths are hierarchical and support relative resolution.
var usesRelative = map[string]bool{
	"":        true,
	"ftp":     true,
	"http":    true,
	"gopher":  true,
	"nntp":    true,
	"imap":    true,
	"wais":    true,
	"file":    true,
	"https":   true,
	"shttp":   true,
	"mms":     true,
	"prospero": true,
	"rtsp":    true,
	"rtspu":   true,
	"sftp":    true,
	"svn":     true,
	"svn+ssh": true,
	"ws":      true,
	"wss":     true,
}

// Schemes that carry a network location ("//host") component.
var usesNetloc = map[string]bool{
	"ftp":      true,
	"http":     true,
	"gopher":   true,
	"nntp":     true,
	"telnet":   true,
	"imap":     true,
	"wais":     true,
	"file":     true,
	"mms":      true,
	"https":    true,
	"shttp":    true,
	"snews":    true,
	"prospero": true,
	"rtsp":     true,
	"rtspu":    true,
	"rsync":    true,
	"svn":      true,
	"svn+ssh":  true,
	"sftp":     true,
	"nfs":      true,
	"git":      true,
	"git+ssh":  true,
	"ws":       true,
	"wss":      true,
	"ldap":     true,
	"irc":      true,
}

// Parts holds the five components of a split URL reference.
type Parts struct {
	Scheme   string
	Netloc   string
	Path     string
	Query    string
	Fragment string
}

func isASCIILetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isSchemeByte(c byte) bool {
	return isASCIILetter(c) || '0' <= c && c <= '9' ||
		c == '+' || c == '-' || c == '.'
}

// Split breaks a URL reference into its five components. Leading
// control characters and spaces are stripped and embedded tabs and
// line breaks removed, matching WHATWG URL handling. No percent
// decoding takes place.
func Split(rawurl string) Parts {
	rawurl = strings.TrimLeftFunc(rawurl, func(r rune) bool { return r <= ' ' })
	for _, c := range []string{"\t", "\r", "\n"} {
		rawurl = strings.ReplaceAll(rawurl, c, "")
	}
	var p Parts
	rest := rawurl
	if i := strings.IndexByte(rest, ':'); i > 0 && isASCIILetter(rest[0]) {
		valid := true
		for j := 1; j < i; j++ {
			if !isSchemeByte(rest[j]) {
				valid = false
				break
			}
		}
		if valid {
			p.Scheme = strings.ToLower(rest[:i])
			rest = rest[i+1:]
		}
	}
	if strings.HasPrefix(rest, "//") {
		end := len(rest)
		if j := strings.IndexAny(rest[2:], "/?#"); j >= 0 {
			end = 2 + j
		}
		p.Netloc = rest[2:end]
		rest = rest[end:]
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		p.Fragment = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		p.Query = rest[i+1:]
		rest = rest[:i]
	}
	p.Path = rest
	return p
}

// Unsplit reassembles the URL. The double slash is kept for schemes
// known to carry a network location even when it is empty, so that
// "snews:" round-trips as "snews://" while "news:" stays bare.
func (p Parts) Unsplit() string {
	u := p.Path
	switch {
	case p.Netloc != "":
		if u != "" && !strings.HasPrefix(u, "/") {
			u = "/" + u
		}
		u = "//" + p.Netloc + u
	case strings.HasPrefix(u, "//"):
		u = "//" + u
	case p.Scheme != "" && usesNetloc[p.Scheme] && (u == "" || strings.HasPrefix(u, "/")):
		u = "//" + u
	}
	if p.Scheme != "" {
		u = p.Scheme + ":" + u
	}
	if p.Query != "" {
		u += "?" + p.Query
	}
	if p.Fragment != "" {
		u += "#" + p.Fragment
	}
	return u
}

// SplitNetloc separates the userinfo part from host and port. The
// userinfo is empty when the netloc carries none.
func SplitNetloc(netloc string) (userinfo, hostport string) {
	if i := strings.LastIndexByte(netloc, '@'); i >= 0 {
		return netloc[:i], netloc[i+1:]
	}
	return "", netloc
}

// SplitPort splits a trailing port number off host. Without a port the
// given default is returned. A lone trailing colon is stripped, while
// an invalid port leaves the host untouched.
func SplitPort(host string, defaultPort int) (string, int) {
	i := strings.IndexByte(host, ':')
	if i < 0 {
		return host, defaultPort
	}
	shost, sport := host[:i], host[i+1:]
	if p, ok := NumericPort(sport); ok {
		return shost, p
	}
	if sport == "" {
		return shost, defaultPort
	}
	return host, defaultPort
}

// NumericPort parses s as a decimal port number in the range 1-65535.
func NumericPort(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	p, err := strconv.Atoi(s)
	if err != nil || p <= 0 || p >= 65536 {
		return 0, false
	}
	return p, true
}

// SplitParams splits the parameter part after a semicolon off the last
// path segment.
func SplitParams(path string) (string, string) {
	var i int
	if j := strings.LastIndexByte(path, '/'); j >= 0 {
		i = strings.IndexByte(path[j:], ';')
		if i >= 0 {
			i += j
		}
	} else {
		i = strings.IndexByte(path, ';')
	}
	if i < 0 {
		return path, ""
	}
	return path[:i], path[i+1:]
}

// SplitSite splits an absolute URL into scheme, host, port and the
// document part (path plus query).
func SplitSite(rawurl string) (scheme, host string, port int, document string) {
	p := Split(rawurl)
	scheme = p.Scheme
	_, hostport := SplitNetloc(p.Netloc)
	host, port = SplitPort(hostport, DefaultPorts[scheme])
	document = p.Path
	if p.Query != "" {
		document += "?" + p.Query
	}
	return scheme, host, port, document
}

// UnsplitSite is the inverse of SplitSite. Default ports are omitted.
func UnsplitSite(scheme, host string, port int, document string) string {
	if dport, ok := DefaultPorts[scheme]; port == 0 || (ok && port == dport) {
		return fmt.Sprintf("%s://%s%s", scheme, host, document)
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, host, port, document)
}
