package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/linkchecker/linkchecker/internal/strutil"
)

// runStatus prints a progress line to stderr every statuswait
// interval.
func (a *Aggregate) runStatus(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Output.StatusWait)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := a.Snapshot()
			fmt.Fprintf(os.Stderr,
				"%2d threads active, %5d links queued, %4d links in %3d URLs checked, runtime %s\n",
				a.queue.InProgress(), a.queue.Len(),
				s.LinksChecked, s.URLsChecked, strutil.Duration(s.Duration))
		}
	}
}

// runWatchdog aborts the crawl after the configured maximum run time.
func (a *Aggregate) runWatchdog(ctx context.Context, limit time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(limit):
		a.logger.Warn("maximum run time reached, aborting", "limit", limit)
		a.Abort()
	}
}
