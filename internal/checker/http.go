package checker

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	xcharset "golang.org/x/net/html/charset"

	"github.com/linkchecker/linkchecker/internal/parser"
	"github.com/linkchecker/linkchecker/internal/urlutil"
)

// redirectCodes are the HTTP statuses followed as redirects.
var redirectCodes = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

func (c *Checker) checkHTTP(ctx context.Context, u *URL) {
	cfg := c.agg.Config()

	if cfg.Checking.RobotsTxt && !c.agg.RobotsAllowed(ctx, u) {
		u.AddInfo("Access denied by robots.txt, checked only syntax.")
		u.SetResult("syntax OK", true)
		return
	}

	extra := Request{}
	if strings.HasPrefix(u.ParentURL, "http://") || strings.HasPrefix(u.ParentURL, "https://") {
		extra.Referer = u.ParentURL
	}
	extra.User, extra.Password = cfg.GetUserPassword(u.URL)

	resp, ok := c.httpGet(ctx, u, extra)
	if !ok {
		return
	}
	defer resp.Body.Close()

	if resp.Header.Get("LinkChecker") != "" {
		c.agg.SetMaxRated(u.Host)
	}
	if resp.TLS != nil {
		u.TLS = resp.TLS
	}
	c.agg.RunConnectionPlugins(ctx, u)

	if !c.applyStatus(u, resp) {
		return
	}
	c.readHeaders(u, resp)
	c.readBody(ctx, u, resp)
	c.collectHeaderLinks(u, resp)
	c.agg.RunContentPlugins(ctx, u)
}

// httpGet follows redirects by hand up to the configured limit,
// reclassifying and re-gating each hop. It returns the final response
// or records the failure on the URL.
func (c *Checker) httpGet(ctx context.Context, u *URL, extra Request) (*http.Response, bool) {
	cfg := c.agg.Config()
	current := u.URL
	for hop := 0; ; hop++ {
		if err := c.agg.WaitForHost(ctx, u.Host); err != nil {
			u.SetInvalid("%s", err)
			return nil, false
		}
		start := time.Now()
		resp, err := c.session.Get(ctx, current, extra)
		u.DLTime += time.Since(start)
		if err != nil {
			u.SetInvalid("%s", errorText(err))
			return nil, false
		}
		if !redirectCodes[resp.StatusCode] {
			return resp, true
		}

		location := resp.Header.Get("Location")
		resp.Body.Close()
		if location == "" {
			u.SetInvalid("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
			return nil, false
		}
		if hop >= cfg.Checking.MaxHTTPRedirects {
			u.SetInvalid("more than %d redirections, aborting", cfg.Checking.MaxHTTPRedirects)
			return nil, false
		}

		target, err := resolveRedirect(current, location)
		if err != nil {
			u.SetInvalid("Bad redirect location %q", location)
			return nil, false
		}
		u.AddInfo("Redirected to %q.", target)
		u.Aliases = append(u.Aliases, current)

		parts := urlutil.Split(target)
		scheme := strings.ToLower(parts.Scheme)
		if scheme != "http" && scheme != "https" {
			u.AddWarning(WarnHTTPRedirected,
				"Redirection to URL %q with a different scheme found; the original URL was %q.",
				target, u.URL)
			u.SetInvalid("redirection not followed")
			return nil, false
		}
		for _, alias := range u.Aliases {
			if alias == target {
				u.SetInvalid("recursive redirection")
				return nil, false
			}
		}
		if target == u.URL {
			u.SetInvalid("recursive redirection")
			return nil, false
		}

		current = target
		u.RealURL = target
		u.Host, u.Port = hostPort(parts.Netloc, scheme)
		u.Extern, u.StrictExtern = c.agg.ClassifyExtern(target)
	}
}

// applyStatus records validity and result from the final status code.
func (c *Checker) applyStatus(u *URL, resp *http.Response) bool {
	code := resp.StatusCode
	text := http.StatusText(code)
	switch {
	case code == http.StatusTooManyRequests:
		u.AddWarning(WarnHTTPRateLimited, "Rate limited (Retry-After: %s)",
			resp.Header.Get("Retry-After"))
		u.SetResult(strconv.Itoa(code)+" "+text, true)
		return false
	case code >= 400:
		u.SetInvalid("%d %s", code, text)
		return false
	case code == http.StatusNoContent:
		u.AddWarning(WarnHTTPEmptyContent, "%s", text)
		u.SetResult(strconv.Itoa(code)+" "+text, true)
		return false
	case code >= 200:
		u.SetResult(strconv.Itoa(code)+" "+text, true)
		return true
	case code == http.StatusSwitchingProtocols || code == http.StatusProcessing:
		u.SetResult(strconv.Itoa(code)+" "+text, true)
		return false
	default:
		u.SetInvalid("%d %s", code, text)
		return false
	}
}

func (c *Checker) readHeaders(u *URL, resp *http.Response) {
	mediatype, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err == nil {
		u.ContentType = mediatype
		u.Charset = params["charset"]
	}
	if len(resp.TransferEncoding) == 0 && resp.ContentLength >= 0 {
		u.Size = resp.ContentLength
	}
	if modified := resp.Header.Get("Last-Modified"); modified != "" {
		if t, err := http.ParseTime(modified); err == nil {
			u.Modified = t
		}
	}
}

// readBody downloads the response capped by maxfilesizedownload and
// keeps decoded content for parseable types.
func (c *Checker) readBody(ctx context.Context, u *URL, resp *http.Response) {
	cfg := c.agg.Config()
	limit := cfg.Checking.MaxFileSizeDownload
	if u.Size > limit {
		u.SetInvalid("File size too large")
		return
	}

	reader, err := decompressedReader(resp, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		u.AddWarning(WarnURLErrorGettingContent, "Could not get content: %s", errorText(err))
		return
	}
	start := time.Now()
	body, err := io.ReadAll(reader)
	u.DLTime += time.Since(start)
	if err != nil {
		u.AddWarning(WarnURLErrorGettingContent, "Could not get content: %s", errorText(err))
		return
	}
	if int64(len(body)) > limit {
		u.SetInvalid("File size too large")
		return
	}
	u.Size = int64(len(body))
	c.agg.AddDownloadedBytes(int64(len(body)))
	if u.Size == 0 {
		u.AddWarning(WarnURLContentSizeZero, "Content size is zero.")
	}

	if !parser.ParseableMimetype(u.ContentType) {
		return
	}
	// XML only counts as parseable when it is a sitemap.
	if kind := parser.ContentMimetypes[strings.ToLower(u.ContentType)]; kind == "xml" && !parser.IsSitemap(body) {
		return
	}
	u.Content = c.decode(body, resp.Header.Get("Content-Type"))
}

// decode converts text content to UTF-8 using the declared charset or
// byte sniffing.
func (c *Checker) decode(body []byte, contentType string) []byte {
	reader, err := xcharset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body
	}
	return decoded
}

// headerLinkRe picks the URL out of one Link header element.
var headerLinkTargets = func(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "<") {
			if end := strings.Index(part, ">"); end > 1 {
				out = append(out, part[1:end])
			}
		}
	}
	return out
}

// collectHeaderLinks gathers links carried in response headers: Link,
// Refresh and Content-Location.
func (c *Checker) collectHeaderLinks(u *URL, resp *http.Response) {
	for _, value := range resp.Header.Values("Link") {
		for _, target := range headerLinkTargets(value) {
			u.HeaderLinks = append(u.HeaderLinks, parser.Link{
				URL:  target,
				Name: "Link: header " + target,
			})
		}
	}
	if refresh := resp.Header.Get("Refresh"); refresh != "" {
		if m := refreshHeaderRe.FindStringSubmatch(refresh); m != nil {
			u.HeaderLinks = append(u.HeaderLinks, parser.Link{
				URL:  strings.TrimSpace(m[1]),
				Name: "Refresh: header",
			})
		}
	}
	if location := resp.Header.Get("Content-Location"); location != "" {
		u.HeaderLinks = append(u.HeaderLinks, parser.Link{
			URL:  location,
			Name: "Content-Location: header",
		})
	}
}

// refreshHeaderRe parses a Refresh header into its URL.
var refreshHeaderRe = regexp.MustCompile(`(?i)^\d+;\s*url=(.+)$`)

func resolveRedirect(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
