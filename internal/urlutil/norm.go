package urlutil

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/encoding"
)

// EncodeIDNA converts a non-ASCII hostname to its punycode form per
// RFC 3490. The bool result reports whether the name was altered. A
// trailing ":port" part is carried through unchanged.
func EncodeIDNA(host string) (string, bool, error) {
	if host == "" || isASCII(host) {
		return host, false, nil
	}
	name, rest := host, ""
	if i := strings.IndexByte(host, ':'); i >= 0 {
		name, rest = host[:i], host[i:]
	}
	enc, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", false, fmt.Errorf("idna encoding of %q: %w", host, err)
	}
	enc += rest
	return enc, enc != host, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// fixHost unquotes and lowercases the host, applies IDNA encoding,
// strips a trailing host dot and the scheme default port, and repairs
// path or query parts that the splitter left inside the netloc.
func fixHost(p *Parts, cs encoding.Encoding) (bool, error) {
	if p.Netloc == "" {
		p.Path = Unquote(p.Path, cs)
		return false, nil
	}
	userinfo, hostport := SplitNetloc(p.Netloc)
	if userinfo != "" {
		userinfo = Unquote(userinfo, cs)
	}
	netloc, isIDN, err := EncodeIDNA(strings.ToLower(Unquote(hostport, cs)))
	if err != nil {
		return false, err
	}
	if i := strings.IndexByte(netloc, '\\'); i >= 0 {
		// A backslash right after the host makes the splitter swallow
		// path components up to the first slash. Move them back,
		// keeping the backslash for segment collapsing.
		comps := netloc[i:]
		if p.Path == "" || p.Path == "/" {
			p.Path = comps
		} else {
			p.Path = comps + Unquote(p.Path, cs)
		}
		netloc = netloc[:i]
	} else {
		if i := strings.IndexByte(netloc, '?'); i >= 0 {
			netloc, p.Query = netloc[:i], netloc[i+1:]
		}
		p.Path = Unquote(p.Path, cs)
	}
	if userinfo != "" {
		userinfo += "@"
	}
	if dport, ok := DefaultPorts[p.Scheme]; ok {
		host, port := SplitPort(netloc, dport)
		host = strings.TrimSuffix(host, ".")
		if port != dport {
			host = fmt.Sprintf("%s:%d", host, port)
		}
		netloc = host
	}
	p.Netloc = userinfo + netloc
	return isIDN, nil
}

// Norm normalizes an already quoted URL: it lowercases scheme and
// host, encodes international hostnames, drops default ports and
// trailing host dots, collapses redundant path segments and requotes
// every component with its safe set. The bool result reports whether
// the host is an internationalized domain name.
func Norm(rawurl string, cs encoding.Encoding) (string, bool, error) {
	p := Split(rawurl)
	if p.Scheme == "mailto" {
		// the splitter leaves mailto queries glued to the path
		if i := strings.IndexByte(p.Path, '?'); i >= 0 {
			p.Path, p.Query = p.Path[:i], p.Path[i+1:]
		}
	}
	isIDN, err := fixHost(&p, cs)
	if err != nil {
		return "", false, err
	}
	if p.Query, err = parseQuery(p.Query, cs); err != nil {
		return "", false, err
	}
	if usesRelative[p.Scheme] {
		if p.Path == "" {
			// An empty path means "/" when anything follows it. For
			// scheme-less relative references nothing can be assumed.
			if p.Scheme != "" && (p.Query != "" || p.Fragment != "") {
				p.Path = "/"
			}
		} else {
			p.Path = CollapseSegments(p.Path)
		}
	}
	p.Fragment = Unquote(p.Fragment, cs)
	if p.Scheme, err = quoteWith(p.Scheme, "/", cs); err != nil {
		return "", false, err
	}
	if p.Netloc, err = quoteWith(p.Netloc, netlocSafe, cs); err != nil {
		return "", false, err
	}
	if p.Path, err = quoteWith(p.Path, pathSafe, cs); err != nil {
		return "", false, err
	}
	if !strings.HasPrefix(p.Scheme, "feed") {
		p.Path = fixWaybackPath(p.Path)
	}
	if p.Fragment, err = quoteWith(p.Fragment, fragmentSafe, cs); err != nil {
		return "", false, err
	}
	res := p.Unsplit()
	if strings.HasSuffix(rawurl, "#") && p.Fragment == "" {
		res += "#"
	}
	return res, isIDN, nil
}

// Wayback machine URLs embed a second http(s) URL in their path whose
// "//" would otherwise be collapsed and whose colon gets quoted.
var waybackRe = regexp.MustCompile(`(https?)(%3A/|:/)`)

func fixWaybackPath(path string) string {
	return waybackRe.ReplaceAllString(path, "$1://")
}

type queryParam struct {
	key    string
	val    string
	hasVal bool
	sep    string
}

// parseQSL splits a query string into (key, value, separator) triples.
// Blank values are kept, a key without an equal sign has hasVal false,
// and sep records the separator following each parameter.
func parseQSL(qs string, cs encoding.Encoding) []queryParam {
	type pair struct{ nv, sep string }
	var pairs []pair
	for _, nv := range strings.Split(qs, "&") {
		if strings.Contains(nv, ";") {
			for _, x := range strings.Split(nv, ";") {
				pairs = append(pairs, pair{x, ";"})
			}
			pairs[len(pairs)-1].sep = "&"
		} else {
			pairs = append(pairs, pair{nv, "&"})
		}
	}
	pairs[len(pairs)-1].sep = ""
	r := make([]queryParam, 0, len(pairs))
	for _, pr := range pairs {
		k, v, ok := strings.Cut(pr.nv, "=")
		t := queryParam{sep: pr.sep, hasVal: ok}
		t.key = Unquote(strings.ReplaceAll(k, "+", " "), cs)
		if ok && v != "" {
			t.val = Unquote(strings.ReplaceAll(v, "+", " "), cs)
		}
		r = append(r, t)
	}
	return r
}

// parseQuery unquotes and requotes a CGI query, preserving parameter
// order and the original separators. Question marks inside the query
// start nested queries which are handled right to left, as seen on
// redirector URLs.
func parseQuery(query string, cs encoding.Encoding) (string, error) {
	suffix := ""
	for strings.Contains(query, "?") {
		i := strings.LastIndexByte(query, '?')
		rest := query[i+1:]
		query = query[:i]
		parsed, err := parseQuery(rest, cs)
		if err != nil {
			return "", err
		}
		suffix = "?" + parsed + suffix
	}
	var sb strings.Builder
	for _, t := range parseQSL(query, cs) {
		k, err := quoteWith(t.key, querySafe, cs)
		if err != nil {
			return "", err
		}
		switch {
		case t.hasVal && t.val != "":
			v, err := quoteWith(t.val, querySafe, cs)
			if err != nil {
				return "", err
			}
			sb.WriteString(k + "=" + v + t.sep)
		case !t.hasVal:
			sb.WriteString(k + t.sep)
		default:
			// keep the equal sign, some sites break without it
			sb.WriteString(k + "=" + t.sep)
		}
	}
	return sb.String() + suffix, nil
}

var (
	slashesRe         = regexp.MustCompile(`/+`)
	samedirRe         = regexp.MustCompile(`/\./|/\.$`)
	parentdirPrefixRe = regexp.MustCompile(`^/(\.\./)+`)
	parentdirRe       = regexp.MustCompile(`/[^/]+/\.\.(/|$)`)
	relparentdirRe    = regexp.MustCompile(`^[^/]+/\.\.(/|$)`)
)

// CollapseSegments removes redundant path segments until a fixed point
// is reached. Backslashes are treated as slashes, which also defuses
// Windows style "\.." traversal. Leading parent references of relative
// paths are kept.
func CollapseSegments(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = slashesRe.ReplaceAllString(path, "/")
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	for {
		n := samedirRe.ReplaceAllString(path, "/")
		if n == path {
			break
		}
		path = n
	}
	for {
		n, changed := collapseParentOnce(path)
		if !changed {
			break
		}
		path = n
	}
	for {
		n, changed := collapseRelParentOnce(path)
		if !changed {
			break
		}
		path = n
	}
	return path
}

// collapseParentOnce removes one "/x/../" pair from an absolute path,
// never treating ".." itself as the removable segment.
func collapseParentOnce(path string) (string, bool) {
	if m := parentdirPrefixRe.FindString(path); m != "" {
		return "/" + path[len(m):], true
	}
	for start := 0; ; {
		loc := parentdirRe.FindStringIndex(path[start:])
		if loc == nil {
			return path, false
		}
		i, j := start+loc[0], start+loc[1]
		seg := path[i+1:]
		seg = seg[:strings.IndexByte(seg, '/')]
		if seg != ".." {
			return path[:i] + "/" + path[j:], true
		}
		start = i + 1
	}
}

// collapseRelParentOnce removes one leading "x/../" pair from a
// relative path, leaving genuine "../" prefixes alone.
func collapseRelParentOnce(path string) (string, bool) {
	loc := relparentdirRe.FindStringIndex(path)
	if loc == nil {
		return path, false
	}
	if path[:strings.IndexByte(path, '/')] == ".." {
		return path, false
	}
	return path[loc[1]:], true
}
