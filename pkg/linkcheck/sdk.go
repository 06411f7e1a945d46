// Package linkcheck provides a public SDK for embedding the link
// checker as a library.
//
// Example usage:
//
//	lc := linkcheck.New(
//	    linkcheck.WithThreads(5),
//	    linkcheck.WithRecursionLevel(1),
//	    linkcheck.OnResult(func(r *linkcheck.Result) {
//	        if !r.Valid {
//	            fmt.Println(r.URL, r.Result)
//	        }
//	    }),
//	)
//
//	summary, err := lc.Check(ctx, "https://example.com/")
package linkcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/logger"
)

// Result is one checked link.
type Result struct {
	// URL is the normalised URL that was checked.
	URL string

	// Parent is the URL of the document the link was found in, empty
	// for seed URLs.
	Parent string

	// Name is the link text or title.
	Name string

	Line   int
	Column int

	Valid    bool
	Result   string
	Warnings []string
	Info     []string

	Size      int64
	CheckTime time.Duration
	DLTime    time.Duration
}

// Summary holds the crawl totals.
type Summary struct {
	LinksChecked    int
	URLsChecked     int
	Warnings        int
	Errors          int
	DownloadedBytes int64
	Duration        time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithThreads sets the number of concurrent check workers. Zero runs
// the check serially.
func WithThreads(n int) Option {
	return func(c *Checker) { c.cfg.Checking.Threads = n }
}

// WithRecursionLevel bounds the recursion depth. Negative means
// unbounded.
func WithRecursionLevel(level int) Option {
	return func(c *Checker) { c.cfg.Checking.RecursionLevel = level }
}

// WithTimeout sets the per-connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.cfg.Checking.Timeout = d }
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Checker) { c.cfg.Checking.UserAgent = ua }
}

// WithCheckExtern enables full checking of external URLs.
func WithCheckExtern() Option {
	return func(c *Checker) { c.cfg.Filtering.CheckExtern = true }
}

// WithConfig replaces the default configuration entirely.
func WithConfig(cfg *config.Config) Option {
	return func(c *Checker) { c.cfg = cfg }
}

// WithOutput adds an output logger, for example "csv" into
// "results.csv". An empty filename uses the logger's default name.
func WithOutput(kind, filename string) Option {
	return func(c *Checker) {
		c.outputs = append(c.outputs, config.LoggerSpec{Type: kind, Filename: filename})
	}
}

// OnResult registers a callback invoked for every checked URL,
// including valid ones. Callbacks run on worker goroutines.
func OnResult(fn func(*Result)) Option {
	return func(c *Checker) { c.onResult = fn }
}

// WithLogger sets the slog logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// Checker is the high-level API for running link checks.
type Checker struct {
	cfg      *config.Config
	outputs  []config.LoggerSpec
	onResult func(*Result)
	logger   *slog.Logger
}

// New creates a Checker with library-friendly defaults: no status
// output and no console logger.
func New(opts ...Option) *Checker {
	c := &Checker{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.cfg.Output.Status = false
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check crawls the given seed URLs and blocks until done. The context
// cancels the crawl.
func (c *Checker) Check(ctx context.Context, seeds ...string) (*Summary, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seed URLs given")
	}
	var sinks []logger.Logger
	for _, spec := range c.outputs {
		l, err := logger.New(spec, c.cfg, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, l)
	}
	handler := &callbackHandler{
		inner:    logger.NewFanout(c.cfg, sinks...),
		onResult: c.onResult,
	}
	agg, err := engine.NewAggregate(c.cfg, handler, c.logger)
	if err != nil {
		return nil, err
	}
	for _, seed := range seeds {
		if err := agg.AddSeed(seed); err != nil {
			return nil, err
		}
	}
	if err := agg.Start(ctx); err != nil {
		agg.Finish()
		return nil, err
	}
	agg.Wait(ctx)
	agg.Finish()

	stats := handler.stats()
	return &Summary{
		LinksChecked:    stats.LinksChecked,
		URLsChecked:     stats.URLsChecked,
		Warnings:        stats.Warnings,
		Errors:          stats.Errors,
		DownloadedBytes: stats.DownloadedBytes,
		Duration:        stats.Duration,
	}, nil
}

// callbackHandler forwards results to the configured loggers and the
// OnResult callback.
type callbackHandler struct {
	inner    *logger.Fanout
	onResult func(*Result)

	mu    sync.Mutex
	final engine.Stats
}

func (h *callbackHandler) Start() {
	h.inner.Start()
}

func (h *callbackHandler) Log(u *checker.URL) {
	if h.onResult != nil {
		h.onResult(toResult(u))
	}
	h.inner.Log(u)
}

func (h *callbackHandler) End(stats engine.Stats) {
	h.mu.Lock()
	h.final = stats
	h.mu.Unlock()
	h.inner.End(stats)
}

func (h *callbackHandler) stats() engine.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.final
}

func toResult(u *checker.URL) *Result {
	warnings := make([]string, len(u.Warnings))
	for i, w := range u.Warnings {
		warnings[i] = w.Msg
	}
	return &Result{
		URL:       u.URL,
		Parent:    u.ParentURL,
		Name:      u.Name,
		Line:      u.Line,
		Column:    u.Column,
		Valid:     u.Valid,
		Result:    u.Result,
		Warnings:  warnings,
		Info:      append([]string(nil), u.Info...),
		Size:      u.Size,
		CheckTime: u.CheckTime,
		DLTime:    u.DLTime,
	}
}
