package engine

import (
	"context"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
)

// checkedResult is the part of a check outcome the result cache keeps,
// so duplicate URLs report the same result without a second request.
type checkedResult struct {
	Result      string
	Valid       bool
	Warnings    []checker.Warning
	Info        []string
	Aliases     []string
	Size        int64
	Modified    time.Time
	ContentType string
	DLTime      time.Duration
}

func snapshotResult(u *checker.URL) *checkedResult {
	return &checkedResult{
		Result:      u.Result,
		Valid:       u.Valid,
		Warnings:    append([]checker.Warning(nil), u.Warnings...),
		Info:        append([]string(nil), u.Info...),
		Aliases:     append([]string(nil), u.Aliases...),
		Size:        u.Size,
		Modified:    u.Modified,
		ContentType: u.ContentType,
		DLTime:      u.DLTime,
	}
}

func applyResult(u *checker.URL, r *checkedResult) {
	u.Result = r.Result
	u.Valid = r.Valid
	u.Warnings = append([]checker.Warning(nil), r.Warnings...)
	u.Info = append([]string(nil), r.Info...)
	u.Aliases = append([]string(nil), r.Aliases...)
	u.Size = r.Size
	u.Modified = r.Modified
	u.ContentType = r.ContentType
	u.DLTime = r.DLTime
	u.State = checker.StateCached
}

// runWorker is one pool goroutine. Each worker owns a session so
// connections are not shared, while the cookie jar is.
func (a *Aggregate) runWorker(ctx context.Context, id int) {
	defer a.workers.Done()
	session := checker.NewSession(a.cfg, a.jar, a.logger)
	defer session.Close()
	chk := checker.New(a, session, a.logger.With("worker", id))
	for {
		u, err := a.queue.Get(ctx)
		if err != nil {
			return
		}
		a.process(ctx, chk, u)
		a.queue.TaskDone()
	}
}

// runSerial drains the queue on the calling goroutine, used when the
// thread count is zero.
func (a *Aggregate) runSerial(ctx context.Context) {
	chk := checker.New(a, a.session, a.logger.With("worker", "serial"))
	for a.queue.Len() > 0 {
		u, err := a.queue.Get(ctx)
		if err != nil {
			return
		}
		a.process(ctx, chk, u)
		a.queue.TaskDone()
	}
}

// process checks one URL at most once per cache key. Whoever claims
// the key first does the work; everyone else waits and copies the
// cached outcome.
func (a *Aggregate) process(ctx context.Context, chk *checker.Checker, u *checker.URL) {
	key := u.CacheURL
	if key == "" {
		key = u.URL
	}
	if cached, ok := a.results.Get(key); ok {
		if r, ok := cached.(*checkedResult); ok {
			applyResult(u, r)
			a.logURL(u)
			return
		}
	}
	owner, wait := a.results.CheckOrWait(key)
	if !owner {
		select {
		case <-wait:
		case <-ctx.Done():
			return
		}
		if cached, ok := a.results.Get(key); ok {
			if r, ok := cached.(*checkedResult); ok {
				applyResult(u, r)
				a.logURL(u)
			}
		}
		return
	}

	a.safeCheck(ctx, chk, u)
	a.results.Complete(key, snapshotResult(u))
	a.logURL(u)

	if u.AllowsRecursion(a.cfg.Checking.RecursionLevel) {
		for _, child := range chk.Children(u) {
			a.addURL(child)
		}
	}
	u.Content = nil
}

// safeCheck shields the worker from a panicking checker. A panic
// fails the single URL, not the crawl.
func (a *Aggregate) safeCheck(ctx context.Context, chk *checker.Checker, u *checker.URL) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("check panicked", "url", u.URL, "panic", r)
			u.SetInvalid("internal error")
		}
	}()
	chk.Check(ctx, u)
}
