// Package engine drives a crawl: it owns the URL queue, the worker
// pool, the robots and result caches, the host throttle and the
// aggregate state shared by all checkers.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/linkchecker/linkchecker/internal/checker"
)

// RobotsCache fetches and caches robots.txt per (scheme, host, port)
// site. Concurrent first hits for the same site fetch only once.
type RobotsCache struct {
	session *checker.Session
	agent   string
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*robotsEntry
}

type robotsEntry struct {
	once     sync.Once
	data     *robotstxt.RobotsData
	sitemaps []string
}

// NewRobotsCache creates a cache fetching through the given session.
func NewRobotsCache(session *checker.Session, agent string, logger *slog.Logger) *RobotsCache {
	return &RobotsCache{
		session: session,
		agent:   agent,
		logger:  logger.With("component", "robots"),
		entries: make(map[string]*robotsEntry),
	}
}

func siteKey(u *checker.URL) string {
	return fmt.Sprintf("%s://%s:%d", u.Scheme, u.Host, u.Port)
}

// Allows reports whether robots.txt of the URL's site permits
// fetching it. Unfetchable robots.txt allows everything; the library
// treats 5xx answers as disallow-all.
func (r *RobotsCache) Allows(ctx context.Context, u *checker.URL) bool {
	entry := r.entry(ctx, u)
	if entry.data == nil {
		return true
	}
	return entry.data.TestAgent(pathOf(u.URL), r.agent)
}

// Sitemaps returns the sitemap URLs announced by the site's
// robots.txt.
func (r *RobotsCache) Sitemaps(ctx context.Context, u *checker.URL) []string {
	return r.entry(ctx, u).sitemaps
}

func (r *RobotsCache) entry(ctx context.Context, u *checker.URL) *robotsEntry {
	key := siteKey(u)
	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &robotsEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.data, entry.sitemaps = r.fetch(ctx, u)
	})
	return entry
}

func (r *RobotsCache) fetch(ctx context.Context, u *checker.URL) (*robotstxt.RobotsData, []string) {
	robotsURL := fmt.Sprintf("%s://%s", u.Scheme, hostPortString(u))
	robotsURL += "/robots.txt"
	resp, err := r.session.Get(ctx, robotsURL, checker.Request{})
	if err != nil {
		r.logger.Debug("robots.txt not fetchable", "url", robotsURL, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, nil
	}
	var sitemaps []string
	if resp.StatusCode == http.StatusOK {
		sitemaps = data.Sitemaps
	}
	r.logger.Debug("robots.txt loaded", "url", robotsURL, "status", resp.StatusCode)
	return data, sitemaps
}

func hostPortString(u *checker.URL) string {
	if dport, ok := map[string]int{"http": 80, "https": 443}[u.Scheme]; ok && u.Port == dport {
		return u.Host
	}
	if u.Port == 0 {
		return u.Host
	}
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// pathOf returns the path+query part of an absolute URL for robots
// matching.
func pathOf(rawurl string) string {
	rest := rawurl
	if i := indexAfterScheme(rest); i >= 0 {
		rest = rest[i:]
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[i:]
		}
	}
	return "/"
}

func indexAfterScheme(rawurl string) int {
	for i := 0; i < len(rawurl); i++ {
		if rawurl[i] == ':' {
			if len(rawurl) > i+2 && rawurl[i+1] == '/' && rawurl[i+2] == '/' {
				return i + 3
			}
			return i + 1
		}
	}
	return -1
}
