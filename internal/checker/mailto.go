package checker

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/linkchecker/linkchecker/internal/urlutil"
)

func (c *Checker) checkMailto(ctx context.Context, u *URL) {
	addrs, hasSubject := u.mailtoAddrs, u.mailtoSubject
	if len(addrs) == 0 {
		if hasSubject {
			u.SetResult("Valid mail address syntax", true)
			return
		}
		u.SetInvalid("No mail addresses or email subject found in %q.", u.URL)
		return
	}

	domains := make(map[string]bool)
	for _, addr := range addrs {
		if msg := checkMailSyntax(addr); msg != "" {
			u.SetInvalid("%s", msg)
			return
		}
		domain := addr[strings.LastIndex(addr, "@")+1:]
		if !strings.HasPrefix(domain, "[") {
			domains[domain] = true
		}
	}

	timeout, cancel := context.WithTimeout(ctx, c.agg.Config().Checking.Timeout)
	defer cancel()
	resolver := &net.Resolver{}
	for domain := range domains {
		mxs, err := resolver.LookupMX(timeout, domain)
		if err == nil && len(mxs) > 0 {
			for _, mx := range mxs {
				u.AddInfo("MX mail host %s (preference %d)", mx.Host, mx.Pref)
			}
			continue
		}
		u.AddWarning(WarnMailUnverifiedAddress, "No MX mail host for %s found.", domain)
		if addrs, err := resolver.LookupHost(timeout, domain); err != nil || len(addrs) == 0 {
			u.SetInvalid("No host for %s found.", domain)
			return
		}
	}
	u.SetResult("Valid mail address syntax", true)
}

// mailtoAddresses collects the addresses of the URL path and the
// to/cc/bcc query keys, deduplicated and sorted. The second return
// reports whether a subject was given. Build calls this so the cache
// key is in place before a worker looks the URL up.
func mailtoAddresses(u *URL) ([]string, bool) {
	parts := urlutil.Split(u.URL)
	seen := make(map[string]bool)
	add := func(value string) {
		for _, addr := range strings.Split(value, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" && !seen[addr] {
				seen[addr] = true
			}
		}
	}
	path := parts.Path
	if unescaped, err := url.QueryUnescape(path); err == nil {
		path = unescaped
	}
	add(path)

	hasSubject := false
	if parts.Query != "" {
		values, err := url.ParseQuery(parts.Query)
		if err != nil {
			u.AddWarning(WarnMailUnverifiedAddress, "Error parsing CGI values: %s", err)
		}
		for key, vals := range values {
			switch strings.ToLower(key) {
			case "to", "cc", "bcc":
				for _, v := range vals {
					add(v)
				}
			case "subject":
				hasSubject = true
			}
		}
	}

	addrs := make([]string, 0, len(seen))
	for addr := range seen {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, hasSubject
}

// checkMailSyntax validates one address and returns the error text,
// empty when the address is acceptable.
func checkMailSyntax(addr string) string {
	if len(addr) > 256 {
		return fmt.Sprintf("Mail address `%s' too long. Allowed 256 chars, was %d chars.", addr, len(addr))
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return fmt.Sprintf("Missing `@' in mail address `%s'.", addr)
	}
	local, domain := addr[:at], addr[at+1:]
	if local == "" {
		return fmt.Sprintf("Missing local part of mail address `%s'.", addr)
	}
	if domain == "" {
		return fmt.Sprintf("Missing domain part of mail address `%s'.", addr)
	}
	if len(local) > 64 {
		return fmt.Sprintf("Local part of mail address `%s' too long. Allowed 64 chars, was %d chars.", addr, len(local))
	}
	if len(domain) > 255 {
		return fmt.Sprintf("Domain part of mail address `%s' too long. Allowed 255 chars, was %d chars.", addr, len(domain))
	}
	if strings.HasPrefix(local, ".") {
		return fmt.Sprintf("Local part of mail address `%s' may not start with a dot.", addr)
	}
	if strings.HasSuffix(local, ".") {
		return fmt.Sprintf("Local part of mail address `%s' may not end with a dot.", addr)
	}
	if strings.Contains(local, "..") {
		return fmt.Sprintf("Local part of mail address `%s' may not contain two dots.", addr)
	}
	if !strings.HasPrefix(local, `"`) {
		for _, ch := range `"\` {
			if strings.ContainsRune(local, ch) {
				return fmt.Sprintf("Local part of mail address `%s' contains unquoted character `%c'.", addr, ch)
			}
		}
	}
	if strings.HasPrefix(domain, "[") {
		if !strings.HasSuffix(domain, "]") {
			return fmt.Sprintf("Domain part of mail address `%s' has invalid IP syntax.", addr)
		}
		if net.ParseIP(domain[1:len(domain)-1]) == nil {
			return fmt.Sprintf("Domain part of mail address `%s' has invalid IP.", addr)
		}
		return ""
	}
	if !urlutil.IsSafeDomain(strings.ToLower(domain)) {
		return fmt.Sprintf("Domain part of mail address `%s' has invalid syntax.", addr)
	}
	return ""
}
