package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// textLogger prints one keyword-aligned block per URL, the classic
// console output.
type textLogger struct {
	mu    sync.Mutex
	out   *output
	w     io.Writer
	parts map[string]bool

	startTime time.Time
	logged    int

	// URL statistics reported in the outro.
	urlLenMin, urlLenMax, urlLenSum int
	contentTypes                    map[string]int
}

func newTextLogger(out *output, args map[string]string) *textLogger {
	return &textLogger{
		out:          out,
		parts:        parseParts(args),
		contentTypes: make(map[string]int),
	}
}

func (l *textLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.out.open()
	if err != nil {
		return
	}
	l.w = w
	l.startTime = time.Now()
	fmt.Fprintf(w, "LinkChecker %s\n", config.Version)
	fmt.Fprintf(w, "Read the documentation at %s\n", config.AppURL)
	fmt.Fprintf(w, "\nStart checking at %s\n", strutil.Time(l.startTime))
}

func (l *textLogger) field(keyword, format string, args ...any) {
	fmt.Fprintf(l.w, "%-10s %s\n", keyword, fmt.Sprintf(format, args...))
}

func (l *textLogger) Log(u *checker.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	l.logged++
	l.trackStats(u)

	fmt.Fprintln(l.w)
	if hasPart(l.parts, "url") {
		l.field("URL", "`%s'", u.OrigURL)
	}
	if u.Name != "" && hasPart(l.parts, "name") {
		l.field("Name", "`%s'", u.Name)
	}
	if u.ParentURL != "" && hasPart(l.parts, "parenturl") {
		pos := ""
		if u.Line > 0 {
			pos = fmt.Sprintf(", line %d, col %d", u.Line, u.Column)
		}
		if u.Page > 0 {
			pos += fmt.Sprintf(", page %d", u.Page)
		}
		l.field("Parent URL", "%s%s", u.ParentURL, pos)
	}
	if u.BaseRef != "" && hasPart(l.parts, "base") {
		l.field("Base", "%s", u.BaseRef)
	}
	if u.RealURL != "" && u.RealURL != u.OrigURL && hasPart(l.parts, "realurl") {
		l.field("Real URL", "%s", u.RealURL)
	}
	if u.CheckTime > 0 && hasPart(l.parts, "checktime") {
		l.field("Check time", "%.3f seconds", u.CheckTime.Seconds())
	}
	if u.DLTime > 0 && hasPart(l.parts, "dltime") {
		l.field("D/L time", "%.3f seconds", u.DLTime.Seconds())
	}
	if u.Size >= 0 && hasPart(l.parts, "dlsize") {
		l.field("Size", "%s", strutil.Size(u.Size))
	}
	if !u.Modified.IsZero() && hasPart(l.parts, "modified") {
		l.field("Modified", "%s", strutil.Time(u.Modified))
	}
	if hasPart(l.parts, "info") {
		for _, info := range u.Info {
			l.field("Info", "%s", strutil.Wrap(info, 65))
		}
	}
	if hasPart(l.parts, "warning") {
		for _, w := range u.Warnings {
			l.field("Warning", "[%s] %s", w.Tag, w.Msg)
		}
	}
	if hasPart(l.parts, "result") {
		if u.Valid {
			result := u.Result
			if result == "" {
				result = "Valid"
			} else {
				result = "Valid: " + result
			}
			l.field("Result", "%s", result)
		} else {
			l.field("Result", "Error: %s", u.Result)
		}
	}
}

func (l *textLogger) trackStats(u *checker.URL) {
	n := len(u.URL)
	if l.urlLenMin == 0 || n < l.urlLenMin {
		l.urlLenMin = n
	}
	if n > l.urlLenMax {
		l.urlLenMax = n
	}
	l.urlLenSum += n
	if u.ContentType != "" {
		l.contentTypes[u.ContentType]++
	}
}

func (l *textLogger) End(stats engine.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	fmt.Fprintln(l.w)
	fmt.Fprintf(l.w, "Statistics:\n")
	fmt.Fprintf(l.w, "Downloaded: %s.\n", strutil.Size(stats.DownloadedBytes))
	if len(l.contentTypes) > 0 {
		fmt.Fprintf(l.w, "Content types:")
		for ct, n := range l.contentTypes {
			fmt.Fprintf(l.w, " %d %s", n, ct)
		}
		fmt.Fprintln(l.w, ".")
	}
	if l.logged > 0 {
		fmt.Fprintf(l.w, "URL lengths: min=%d, max=%d, avg=%d.\n",
			l.urlLenMin, l.urlLenMax, l.urlLenSum/l.logged)
	}
	fmt.Fprintln(l.w)
	fmt.Fprintf(l.w, "That's it. %d links in %d URLs checked. %d warnings found. %d errors found.\n",
		stats.LinksChecked, stats.URLsChecked, stats.Warnings, stats.Errors)
	end := time.Now()
	fmt.Fprintf(l.w, "Stopped checking at %s (%s)\n",
		strutil.Time(end), strutil.DurationLong(stats.Duration))
	l.out.close()
}
