package logger

import (
	"fmt"
	"html"
	"io"
	"sync"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// htmlLogger writes one table per URL into a self-contained page.
type htmlLogger struct {
	mu  sync.Mutex
	out *output
	w   io.Writer
}

func newHTMLLogger(out *output, args map[string]string) *htmlLogger {
	return &htmlLogger{out: out}
}

func (l *htmlLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.out.open()
	if err != nil {
		return
	}
	l.w = w
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>LinkChecker %[1]s results</title>
<style>
body { font-family: sans-serif; background-color: #fff7e5; }
table { border-collapse: collapse; margin-bottom: 1em; }
td { border: 1px solid #ccc; padding: 2px 8px; vertical-align: top; }
td.key { font-weight: bold; }
.valid { color: #3c763d; }
.error { color: #a94442; }
.warning { color: #8a6d3b; }
</style>
</head>
<body>
<h1>LinkChecker %[1]s</h1>
<p>Start checking at %[2]s</p>
`, config.Version, strutil.Time(time.Now()))
}

func (l *htmlLogger) row(class, key, value string) {
	cell := html.EscapeString(value)
	if class != "" {
		cell = fmt.Sprintf(`<span class="%s">%s</span>`, class, cell)
	}
	fmt.Fprintf(l.w, `<tr><td class="key">%s</td><td>%s</td></tr>`+"\n",
		html.EscapeString(key), cell)
}

func (l *htmlLogger) Log(u *checker.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	fmt.Fprintln(l.w, "<table>")
	fmt.Fprintf(l.w, `<tr><td class="key">URL</td><td><a href="%s">%s</a></td></tr>`+"\n",
		html.EscapeString(u.URL), html.EscapeString(u.OrigURL))
	if u.Name != "" {
		l.row("", "Name", u.Name)
	}
	if u.ParentURL != "" {
		pos := u.ParentURL
		if u.Line > 0 {
			pos += fmt.Sprintf(", line %d, col %d", u.Line, u.Column)
		}
		l.row("", "Parent URL", pos)
	}
	if u.BaseRef != "" {
		l.row("", "Base", u.BaseRef)
	}
	if u.RealURL != "" && u.RealURL != u.OrigURL {
		l.row("", "Real URL", u.RealURL)
	}
	if u.CheckTime > 0 {
		l.row("", "Check time", fmt.Sprintf("%.3f seconds", u.CheckTime.Seconds()))
	}
	if u.Size >= 0 {
		l.row("", "Size", strutil.Size(u.Size))
	}
	for _, info := range u.Info {
		l.row("", "Info", info)
	}
	for _, w := range u.Warnings {
		l.row("warning", "Warning", fmt.Sprintf("[%s] %s", w.Tag, w.Msg))
	}
	if u.Valid {
		result := "Valid"
		if u.Result != "" {
			result += ": " + u.Result
		}
		l.row("valid", "Result", result)
	} else {
		l.row("error", "Result", "Error: "+u.Result)
	}
	fmt.Fprintln(l.w, "</table>")
}

func (l *htmlLogger) End(stats engine.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	fmt.Fprintf(l.w, "<p>That's it. %d links in %d URLs checked. %d warnings found. %d errors found.</p>\n",
		stats.LinksChecked, stats.URLsChecked, stats.Warnings, stats.Errors)
	fmt.Fprintf(l.w, "<p>Stopped checking at %s (%s)</p>\n</body>\n</html>\n",
		strutil.Time(time.Now()), strutil.DurationLong(stats.Duration))
	l.out.close()
}
