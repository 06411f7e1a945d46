package urlutil

import (
	"regexp"
	"strings"
)

var absoluteRe = regexp.MustCompile(`(?i)^[-.a-z]+:`)

// IsAbsolute reports whether the URL reference carries a scheme.
func IsAbsolute(rawurl string) bool {
	return absoluteRe.MatchString(rawurl)
}

// FixCommonTypos repairs frequent scheme typos like "http//host".
func FixCommonTypos(rawurl string) string {
	if strings.HasPrefix(rawurl, "http//") {
		return "http://" + rawurl[len("http//"):]
	}
	if strings.HasPrefix(rawurl, "https//") {
		return "https://" + rawurl[len("https//"):]
	}
	return rawurl
}

// Characters that may appear in a URL without requiring quoting.
var safeURLChars = regexp.MustCompile(`^[-;/=,~*+()@!_:.&#%?\[\]a-zA-Z0-9]*$`)

// NeedsQuoting reports whether the URL contains characters that must
// be percent-quoted. Trailing whitespace counts as needing quoting.
func NeedsQuoting(rawurl string) bool {
	if strings.TrimRightFunc(rawurl, isSpaceRune) != rawurl {
		return true
	}
	return !safeURLChars.MatchString(rawurl)
}

func isSpaceRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// Conservative whitelist patterns for URLs that are safe to process
// without further quoting, adapted from David Wheeler's Secure
// Programming HOWTO.
const (
	safePart     = `([a-z0-9][-a-z0-9]{0,61}|[a-z])`
	safeChar     = `([a-z0-9\-_.!~*'(),+]|(%[2-9a-f][0-9a-f]))`
	safeScheme   = `(https?|ftp)`
	safeDomain   = safePart + `(\.` + safePart + `)*\.?`
	safePorts    = `(:(80|8080|8000|443))?`
	safePath     = `((/([a-z0-9\-_.!~*'(),]|(%[2-9a-f][0-9a-f]))+)*/?)`
	safeFragment = safeChar + `*`
)

var (
	safeURLRe    = regexp.MustCompile(`(?i)^` + safeScheme + `://(` + safeDomain + `)` + safePorts + safePath + `(#` + safeFragment + `)?$`)
	safeDomainRe = regexp.MustCompile(`(?i)^(` + safeDomain + `)$`)
	safeHostRe   = regexp.MustCompile(`(?i)^(` + safeDomain + `)` + safePorts + `$`)
)

// IsSafeURL reports whether the URL matches the whitelist of scheme,
// host, path and fragment characters.
func IsSafeURL(rawurl string) bool {
	return safeURLRe.MatchString(rawurl)
}

// IsSafeDomain reports whether host is a plain DNS name.
func IsSafeDomain(host string) bool {
	return safeDomainRe.MatchString(host)
}

// IsSafeHost reports whether host is a plain DNS name with an optional
// well-known port.
func IsSafeHost(host string) bool {
	return safeHostRe.MatchString(host)
}

// SafeHostPattern returns a regular expression source matching URLs on
// the given host.
func SafeHostPattern(host string) string {
	return `(?i)` + safeScheme + `://` + regexp.QuoteMeta(host) +
		safePorts + safePath + `(#` + safeFragment + `)?`
}

// MatchHost reports whether host equals one of the given domains, or
// lies under a domain given with a leading dot.
func MatchHost(host string, domains []string) bool {
	if host == "" {
		return false
	}
	for _, domain := range domains {
		if domain == "" {
			continue
		}
		if strings.HasPrefix(domain, ".") {
			if strings.HasSuffix(host, domain) {
				return true
			}
		} else if host == domain {
			return true
		}
	}
	return false
}

// MatchURL reports whether the host of the URL matches one of domains.
func MatchURL(rawurl string, domains []string) bool {
	if rawurl == "" {
		return false
	}
	_, host, _, _ := SplitSite(rawurl)
	return MatchHost(host, domains)
}

// GuessURL completes shorthand input: "www.example.com" gets an http
// scheme, "ftp.example.com" an ftp scheme. Anything else is returned
// unchanged.
func GuessURL(rawurl string) string {
	if IsAbsolute(rawurl) {
		return rawurl
	}
	if strings.HasPrefix(rawurl, "www.") {
		return "http://" + rawurl
	}
	if strings.HasPrefix(rawurl, "ftp.") {
		return "ftp://" + rawurl
	}
	return rawurl
}

// IsDuplicateContentURL reports whether two URLs are expected to serve
// the same content, ignoring trailing slashes and directory index
// documents.
func IsDuplicateContentURL(u1, u2 string) bool {
	return duplicateContentKey(u1) == duplicateContentKey(u2)
}

func duplicateContentKey(u string) string {
	for _, index := range []string{"index.html", "index.htm"} {
		if strings.HasSuffix(u, "/"+index) {
			u = u[:len(u)-len(index)]
			break
		}
	}
	return strings.TrimSuffix(u, "/")
}
