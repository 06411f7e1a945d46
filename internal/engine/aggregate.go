// Package engine drives a crawl: it owns the URL queue, the worker
// pool, the caches and the crawl-wide gates the checkers consult.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/linkchecker/linkchecker/internal/cache"
	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/cookies"
	"github.com/linkchecker/linkchecker/internal/parser"
	"github.com/linkchecker/linkchecker/internal/plugin"
	"github.com/linkchecker/linkchecker/internal/urlutil"
)

// ResultHandler receives every finished URL plus the crawl summary.
// The logger fan-out implements it.
type ResultHandler interface {
	Start()
	Log(u *checker.URL)
	End(stats Stats)
}

// Stats summarises a finished crawl.
type Stats struct {
	LinksChecked    int
	URLsChecked     int
	Warnings        int
	Errors          int
	DownloadedBytes int64
	Duration        time.Duration
}

// Aggregate is the crawl-wide state shared by all workers. It
// implements the checker.Aggregate interface.
type Aggregate struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      ResultHandler
	queue    *Queue
	robots   *RobotsCache
	throttle *HostThrottle
	results  *cache.ResultCache
	anchors  *cache.AnchorCache
	plugins  *plugin.Manager
	session  *checker.Session
	jar      http.CookieJar

	mu             sync.Mutex
	downloaded     int64
	linksChecked   int
	warningsLogged int
	errorsLogged   int
	enqueued       int
	internPatterns []config.LinkPattern
	seeds          []*checker.URL

	started time.Time
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewAggregate wires the crawl state together. The cookie jar is
// shared by all worker sessions and seeded from the configured cookie
// file.
func NewAggregate(cfg *config.Config, out ResultHandler, logger *slog.Logger) (*Aggregate, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	a := &Aggregate{
		cfg:      cfg,
		logger:   logger.With("component", "aggregate"),
		out:      out,
		queue:    NewQueue(),
		throttle: NewHostThrottle(cfg.Checking.MaxRequestsPerSecond),
		results:  cache.NewResultCache(cfg.Checking.ResultCacheSize),
		anchors:  cache.NewAnchorCache(cfg.Checking.AnchorCacheSize),
		jar:      jar,
	}
	a.session = checker.NewSession(cfg, jar, logger)
	a.robots = NewRobotsCache(a.session, cfg.Checking.UserAgent, logger)
	a.plugins = plugin.NewManager(cfg, a.anchors, logger)
	a.internPatterns = append(a.internPatterns, cfg.Filtering.InternLinks...)

	if cfg.Checking.CookieFile != "" {
		if err := a.loadCookies(cfg.Checking.CookieFile); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// loadCookies seeds the jar from a cookie file. Bad blocks are logged
// and skipped.
func (a *Aggregate) loadCookies(filename string) error {
	entries, errs, err := cookies.FromFile(filename)
	if err != nil {
		return fmt.Errorf("reading cookie file: %w", err)
	}
	for _, e := range errs {
		a.logger.Warn("invalid cookie file entry", "file", filename, "error", e)
	}
	for _, entry := range entries {
		a.jar.SetCookies(entry.URL, entry.Cookies)
	}
	return nil
}

// AddSeed registers a starting URL. Its host becomes part of the
// intern domain filter. Seeds are queued when Start runs, after every
// seed has contributed its host pattern.
func (a *Aggregate) AddSeed(rawurl string) error {
	guessed := urlutil.GuessURL(strings.TrimSpace(rawurl))
	u := checker.NewURL(guessed, "", "", 0)
	if !u.Build(a.buildConfig()) {
		return fmt.Errorf("invalid seed URL %q: %s", rawurl, u.Result)
	}
	if u.Host != "" {
		pattern, err := config.NewLinkPattern(internHostPattern(u.Host), false)
		if err == nil {
			a.mu.Lock()
			a.internPatterns = append(a.internPatterns, pattern)
			a.mu.Unlock()
		}
	}
	a.mu.Lock()
	a.seeds = append(a.seeds, u)
	a.mu.Unlock()
	return nil
}

// Start launches the workers and queues the seeds. With zero threads
// the crawl runs serially inside Wait.
func (a *Aggregate) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.started = time.Now()
	a.out.Start()

	if a.cfg.Authentication.LoginURL != "" {
		if err := a.login(ctx); err != nil {
			return err
		}
	}

	a.mu.Lock()
	seeds := append([]*checker.URL(nil), a.seeds...)
	a.mu.Unlock()
	for _, seed := range seeds {
		a.addURL(seed)
		if a.cfg.Checking.RobotsTxt && seed.IsHTTP() {
			a.addSitemaps(ctx, seed)
		}
	}

	if secs := a.cfg.Checking.MaxRunSeconds; secs > 0 {
		go a.runWatchdog(ctx, time.Duration(secs)*time.Second)
	}
	if a.cfg.Output.Status {
		go a.runStatus(ctx)
	}

	threads := a.cfg.Checking.Threads
	for i := 0; i < threads; i++ {
		a.workers.Add(1)
		go a.runWorker(ctx, i)
	}
	return nil
}

// addSitemaps queues the sitemap URLs advertised in the seed host's
// robots.txt.
func (a *Aggregate) addSitemaps(ctx context.Context, seed *checker.URL) {
	for _, sitemap := range a.robots.Sitemaps(ctx, seed) {
		u := checker.NewURL(sitemap, seed.URL, "", 0)
		u.Name = "Sitemap from robots.txt"
		if u.Build(a.buildConfig()) {
			a.addURL(u)
		}
	}
}

// Wait blocks until the queue has drained or the abort timeout after a
// cancelled context expires. With zero threads it processes the queue
// itself.
func (a *Aggregate) Wait(ctx context.Context) error {
	if a.cfg.Checking.Threads <= 0 {
		a.runSerial(ctx)
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- a.queue.Join(0)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return a.queue.Join(a.cfg.Checking.AbortTimeout)
	}
}

// Abort cancels the crawl. Workers finish their current URL and exit.
func (a *Aggregate) Abort() {
	if a.cancel != nil {
		a.cancel()
	}
	a.queue.Shutdown()
}

// Finish stops the workers, flushes the loggers and releases the
// sessions.
func (a *Aggregate) Finish() {
	a.queue.Shutdown()
	if a.cancel != nil {
		a.cancel()
	}
	a.workers.Wait()
	a.out.End(a.Snapshot())
	a.session.Close()
}

// Snapshot returns the current crawl statistics.
func (a *Aggregate) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		LinksChecked:    a.linksChecked,
		URLsChecked:     a.results.NumChecked(),
		Warnings:        a.warningsLogged,
		Errors:          a.errorsLogged,
		DownloadedBytes: a.downloaded,
		Duration:        time.Since(a.started),
	}
}

// login fetches the configured login page, fills its form and submits
// it so the shared jar carries the session cookies.
func (a *Aggregate) login(ctx context.Context) error {
	auth := a.cfg.Authentication
	user, password := a.cfg.GetUserPassword(auth.LoginURL)
	resp, err := a.session.Get(ctx, auth.LoginURL, checker.Request{User: user, Password: password})
	if err != nil {
		return fmt.Errorf("fetching login URL: %w", err)
	}
	defer resp.Body.Close()

	form, err := parser.FindForm(resp.Body, auth.LoginUserField, auth.LoginPasswordField)
	if err != nil {
		return fmt.Errorf("no form found at login URL %s: %w", auth.LoginURL, err)
	}
	values := url.Values{}
	for field, value := range form.Data {
		values.Set(field, value)
	}
	values.Set(auth.LoginUserField, user)
	values.Set(auth.LoginPasswordField, password)
	for field, value := range auth.LoginExtraFields {
		values.Set(field, value)
	}
	target := resolveFormAction(auth.LoginURL, form.URL)
	post, err := a.session.PostForm(ctx, target, strings.NewReader(values.Encode()), checker.Request{})
	if err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	io.Copy(io.Discard, post.Body)
	post.Body.Close()

	loginURL, err := url.Parse(auth.LoginURL)
	if err == nil && len(a.jar.Cookies(loginURL)) == 0 {
		return fmt.Errorf("No cookies set by login URL %s", auth.LoginURL)
	}
	return nil
}

// internHostPattern matches every URL on the seed's host, any port.
func internHostPattern(host string) string {
	return `(?i)^(https?|ftp)://` + regexp.QuoteMeta(host) + `(:[0-9]+)?([/?#]|$)`
}

func resolveFormAction(pageURL, action string) string {
	if action == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return action
	}
	ref, err := url.Parse(action)
	if err != nil {
		return pageURL
	}
	return base.ResolveReference(ref).String()
}

func (a *Aggregate) buildConfig() checker.BuildConfig {
	return checker.BuildConfig{AnchorKeys: a.cfg.PluginEnabled("AnchorCheck")}
}

// addURL filters a built URL and either queues it for checking or
// logs it straight away as ignored or filtered.
func (a *Aggregate) addURL(u *checker.URL) {
	if u.State == checker.StateNew && !u.Build(a.buildConfig()) {
		a.logURL(u)
		return
	}
	if !a.cfg.AllowedScheme(u.Scheme) {
		return
	}
	for _, p := range a.cfg.Filtering.IgnoreURLs {
		if p.Match(u.URL) {
			u.AddInfo("URL matches an ignore pattern.")
			u.SetResult("ignored", true)
			u.State = checker.StateIgnored
			a.logURL(u)
			return
		}
	}
	u.Extern, u.StrictExtern = a.ClassifyExtern(u.URL)
	if u.Extern && !a.cfg.Filtering.CheckExtern {
		if u.StrictExtern {
			u.SetResult("ignored", true)
			u.State = checker.StateIgnored
		} else {
			u.AddInfo("Outside of domain filter, checked only syntax.")
			u.SetResult("filtered", true)
			u.State = checker.StateIgnored
		}
		a.logURL(u)
		return
	}
	for _, p := range a.cfg.Filtering.NoFollowURLs {
		if p.Match(u.URL) {
			u.NoFollow = true
			break
		}
	}

	a.mu.Lock()
	if max := a.cfg.Checking.MaxNumURLs; max > 0 && a.enqueued >= max {
		a.mu.Unlock()
		return
	}
	a.enqueued++
	a.mu.Unlock()
	a.queue.Put(u)
}

// logURL filters suppressed warnings, updates the counters and hands
// the URL to the logger fan-out.
func (a *Aggregate) logURL(u *checker.URL) {
	if len(u.Warnings) > 0 && len(a.cfg.Filtering.IgnoreWarnings) > 0 {
		kept := u.Warnings[:0]
		for _, w := range u.Warnings {
			if !a.cfg.IgnoreWarning(w.Tag) {
				kept = append(kept, w)
			}
		}
		u.Warnings = kept
	}
	a.mu.Lock()
	a.linksChecked++
	a.warningsLogged += len(u.Warnings)
	if !u.Valid {
		a.errorsLogged++
	}
	a.mu.Unlock()
	a.out.Log(u)
}

// Config implements checker.Aggregate.
func (a *Aggregate) Config() *config.Config {
	return a.cfg
}

// RobotsAllowed implements checker.Aggregate. With robots handling
// disabled every URL is allowed.
func (a *Aggregate) RobotsAllowed(ctx context.Context, u *checker.URL) bool {
	if !a.cfg.Checking.RobotsTxt {
		return true
	}
	return a.robots.Allows(ctx, u)
}

// WaitForHost implements checker.Aggregate.
func (a *Aggregate) WaitForHost(ctx context.Context, host string) error {
	return a.throttle.WaitForHost(ctx, host)
}

// SetMaxRated implements checker.Aggregate.
func (a *Aggregate) SetMaxRated(host string) {
	a.throttle.SetMaxRated(host)
}

// AddDownloadedBytes implements checker.Aggregate.
func (a *Aggregate) AddDownloadedBytes(n int64) {
	a.mu.Lock()
	a.downloaded += n
	a.mu.Unlock()
}

// ClassifyExtern implements checker.Aggregate. Extern patterns win
// over intern patterns; hosts of seed URLs are always intern. Schemes
// without hosts, like mailto and dns, count as intern so they are
// always checked.
func (a *Aggregate) ClassifyExtern(rawurl string) (extern, strict bool) {
	scheme := strings.ToLower(urlutil.Split(rawurl).Scheme)
	switch scheme {
	case "http", "https", "ftp":
	default:
		return false, false
	}
	for _, p := range a.cfg.Filtering.ExternLinks {
		if p.Match(rawurl) {
			return true, p.Strict
		}
	}
	a.mu.Lock()
	patterns := a.internPatterns
	a.mu.Unlock()
	for _, p := range patterns {
		if p.Match(rawurl) {
			return false, false
		}
	}
	return true, false
}

// RunPreConnectPlugins implements checker.Aggregate.
func (a *Aggregate) RunPreConnectPlugins(ctx context.Context, u *checker.URL) bool {
	return a.plugins.RunPreConnect(ctx, u)
}

// RunConnectionPlugins implements checker.Aggregate.
func (a *Aggregate) RunConnectionPlugins(ctx context.Context, u *checker.URL) {
	a.plugins.RunConnection(ctx, u)
}

// RunContentPlugins implements checker.Aggregate.
func (a *Aggregate) RunContentPlugins(ctx context.Context, u *checker.URL) {
	a.plugins.RunContent(ctx, u)
}
