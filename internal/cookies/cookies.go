// Package cookies reads cookie files made of RFC 805 style header
// blocks. Each block names a scheme, host and path and one or more
// Set-cookie headers whose cookies are sent for matching requests.
//
// Example file:
//
//	Host: example.com
//	Path: /hello
//	Set-cookie: ID="smee"
//	Set-cookie: spam="egg"
//
//	Scheme: https
//	Host: example.org
//	Set-cookie: baggage="elitist"; comment="hologram"
package cookies

import (
	"bufio"
	"fmt"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
)

// Entry is one parsed cookie file block: the URL the cookies apply to
// and the cookies themselves.
type Entry struct {
	URL     *url.URL
	Cookies []*http.Cookie
}

// FromFile reads a cookie file. Blocks that fail to parse are returned
// as errors alongside the successfully parsed entries so callers can
// report them as warnings and continue.
func FromFile(filename string) ([]Entry, []error, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var entries []Entry
	var errs []error
	var block []string
	flush := func() {
		if len(block) == 0 {
			return
		}
		entry, err := parseBlock(block)
		if err != nil {
			errs = append(errs, err)
		} else {
			entries = append(entries, entry)
		}
		block = nil
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return entries, errs, err
	}
	flush()
	return entries, errs, nil
}

func parseBlock(lines []string) (Entry, error) {
	reader := textproto.NewReader(bufio.NewReader(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n\r\n")))
	header, err := reader.ReadMIMEHeader()
	if err != nil {
		return Entry{}, fmt.Errorf("invalid cookie block: %w", err)
	}
	host := header.Get("Host")
	if host == "" {
		return Entry{}, fmt.Errorf("invalid cookie block: required header Host: missing")
	}
	scheme := header.Get("Scheme")
	if scheme == "" {
		scheme = "http"
	}
	path := header.Get("Path")
	if path == "" {
		path = "/"
	}
	u := &url.URL{Scheme: scheme, Host: host, Path: path}

	values := header.Values("Set-Cookie")
	if len(values) == 0 {
		return Entry{}, fmt.Errorf("invalid cookie block for %s: no Set-cookie header", host)
	}
	resp := &http.Response{Header: http.Header{"Set-Cookie": values}}
	parsed := resp.Cookies()
	if len(parsed) == 0 {
		return Entry{}, fmt.Errorf("invalid cookie block for %s: unparseable Set-cookie values", host)
	}
	for _, c := range parsed {
		if c.Domain == "" {
			c.Domain = hostOnly(host)
		}
		if c.Path == "" {
			c.Path = path
		}
	}
	return Entry{URL: u, Cookies: parsed}, nil
}

func hostOnly(host string) string {
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host, "]") {
		return host[:i]
	}
	return host
}
