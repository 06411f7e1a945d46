package checker

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/parser"
)

// Aggregate is the crawl-wide state a checker needs while handling a
// single URL: configuration, robots and throttle gates, extern
// classification and the plugin hooks. The engine implements it.
type Aggregate interface {
	Config() *config.Config

	// RobotsAllowed consults the per-host robots.txt for the URL.
	RobotsAllowed(ctx context.Context, u *URL) bool

	// WaitForHost blocks until the host may be contacted again.
	WaitForHost(ctx context.Context, host string) error

	// SetMaxRated marks a host that asked for stricter rate limiting.
	SetMaxRated(host string)

	AddDownloadedBytes(n int64)

	// ClassifyExtern applies the extern/intern link patterns.
	ClassifyExtern(rawurl string) (extern, strict bool)

	// RunPreConnectPlugins runs the plugins that see a built URL
	// before any connection. It returns false when one of them
	// cancels the check.
	RunPreConnectPlugins(ctx context.Context, u *URL) bool
	RunConnectionPlugins(ctx context.Context, u *URL)
	RunContentPlugins(ctx context.Context, u *URL)
}

// Checker runs single URLs through their scheme handler. Each worker
// owns one Checker with its own HTTP session; the cookie jar behind
// the sessions is shared.
type Checker struct {
	agg     Aggregate
	session *Session
	logger  *slog.Logger
}

// New creates a Checker bound to the crawl aggregate.
func New(agg Aggregate, session *Session, logger *slog.Logger) *Checker {
	return &Checker{
		agg:     agg,
		session: session,
		logger:  logger.With("component", "checker"),
	}
}

// Check connects to the URL and records the result on it. The URL must
// have been built. Check never panics outward; the worker recovers.
func (c *Checker) Check(ctx context.Context, u *URL) {
	start := time.Now()
	defer func() {
		u.CheckTime = time.Since(start)
		if u.State == StateChecking {
			u.State = StateDone
		}
	}()
	u.State = StateChecking
	c.logger.Debug("checking url", "url", u.URL, "scheme", u.Scheme)

	if !c.agg.RunPreConnectPlugins(ctx, u) {
		c.logger.Debug("check cancelled before connecting", "url", u.URL)
		return
	}

	switch u.Scheme {
	case "http", "https":
		c.checkHTTP(ctx, u)
	case "ftp":
		c.checkFTP(ctx, u)
	case "file", "":
		c.checkFile(ctx, u)
	case "mailto":
		c.checkMailto(ctx, u)
	case "dns":
		c.checkDNS(ctx, u)
	case "news", "snews", "nntp":
		c.checkNNTP(ctx, u)
	case "itms-services":
		c.checkItmsServices(u)
	default:
		c.checkUnknown(u)
	}
}

// metaRobotsNoFollowRe matches a nofollow directive in a robots meta
// tag content value.
var metaRobotsNoFollowRe = regexp.MustCompile(`(?i)\bnofollow\b`)

// Children parses the fetched content and returns the child URLs to
// enqueue. It also flags meta-robots nofollow on HTML pages, in which
// case no children are returned.
func (c *Checker) Children(u *URL) []*URL {
	links := append([]parser.Link(nil), u.HeaderLinks...)
	baseRef := ""
	if u.IsParseable() && c.withinParseLimit(u) {
		contentLinks, base, ok := c.contentLinks(u)
		if !ok {
			return nil
		}
		links = append(links, contentLinks...)
		baseRef = base
	}
	return c.buildChildren(u, links, baseRef)
}

// withinParseLimit reports whether the content is small enough to be
// handed to the parsers.
func (c *Checker) withinParseLimit(u *URL) bool {
	limit := c.agg.Config().Checking.MaxFileSizeParse
	if limit > 0 && int64(len(u.Content)) > limit {
		c.logger.Debug("content too large to parse", "url", u.URL, "size", len(u.Content))
		return false
	}
	return true
}

// contentLinks parses the fetched body. The bool return is false when
// children must be suppressed, as for meta-robots nofollow.
func (c *Checker) contentLinks(u *URL) ([]parser.Link, string, bool) {
	kind := parser.ContentMimetypes[strings.ToLower(u.ContentType)]
	var links []parser.Link
	baseRef := ""

	switch kind {
	case "html":
		res, err := parser.ParseHTML(bytes.NewReader(u.Content))
		if err != nil {
			c.logger.Debug("html parse failed", "url", u.URL, "error", err)
			return nil, "", true
		}
		if c.metaRobotsNoFollow(u) {
			u.NoFollow = true
			return nil, "", false
		}
		links = res.Links
		baseRef = res.BaseRef
	case "xml":
		res, err := parser.FindSitemapLinks(u.Content)
		if err != nil {
			return nil, "", true
		}
		links = res
	case "css", "text", "swf":
		var err error
		links, err = parser.Find(u.ContentType, u.Content)
		if err != nil {
			return nil, "", true
		}
	}
	u.State = StateParsed
	return links, baseRef, true
}

func (c *Checker) buildChildren(u *URL, links []parser.Link, baseRef string) []*URL {
	if len(links) == 0 {
		return nil
	}
	children := make([]*URL, 0, len(links))
	for _, link := range links {
		base := link.Base
		if base == "" {
			base = baseRef
		}
		child := NewURL(link.URL, u.URL, base, u.RecursionLevel+1)
		child.Name = link.Name
		child.Line = link.Line
		child.Column = link.Column
		child.Encoding = u.Encoding
		children = append(children, child)
	}
	return children
}

// metaRobotsNoFollow looks for <meta name="robots"> directives
// containing nofollow.
func (c *Checker) metaRobotsNoFollow(u *URL) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(u.Content))
	if err != nil {
		return false
	}
	found := false
	doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name, _ := sel.Attr("name")
		if !strings.EqualFold(name, "robots") {
			return true
		}
		content, _ := sel.Attr("content")
		if metaRobotsNoFollowRe.MatchString(content) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Anchors extracts the anchor names of HTML content for anchor
// checking.
func Anchors(content []byte) ([]string, error) {
	res, err := parser.ParseHTML(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return res.Anchors, nil
}
