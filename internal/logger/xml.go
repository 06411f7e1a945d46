package logger

import (
	"encoding/xml"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// xmlLogger streams urldata elements inside a linkchecker-out root.
type xmlLogger struct {
	mu  sync.Mutex
	out *output
	w   io.Writer
}

func newXMLLogger(out *output) *xmlLogger {
	return &xmlLogger{out: out}
}

func (l *xmlLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.out.open()
	if err != nil {
		return
	}
	l.w = w
	fmt.Fprintf(w, "%s\n", xml.Header)
	fmt.Fprintf(w, "<linkchecker-out version=%q created=%q>\n",
		config.Version, strutil.Time(time.Now()))
}

func (l *xmlLogger) element(indent, name, format string, args ...any) {
	var buf []byte
	buf = append(buf, indent...)
	buf = append(buf, '<')
	buf = append(buf, name...)
	buf = append(buf, '>')
	l.w.Write(buf)
	xml.EscapeText(l.w, []byte(fmt.Sprintf(format, args...)))
	fmt.Fprintf(l.w, "</%s>\n", name)
}

func (l *xmlLogger) Log(u *checker.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	fmt.Fprintf(l.w, "  <urldata>\n")
	l.element("    ", "url", "%s", u.OrigURL)
	if u.Name != "" {
		l.element("    ", "name", "%s", u.Name)
	}
	if u.ParentURL != "" {
		fmt.Fprintf(l.w, "    <parent line=%q column=%q>", intColumn(u.Line), intColumn(u.Column))
		xml.EscapeText(l.w, []byte(u.ParentURL))
		fmt.Fprintf(l.w, "</parent>\n")
	}
	if u.BaseRef != "" {
		l.element("    ", "baseref", "%s", u.BaseRef)
	}
	if u.RealURL != "" {
		l.element("    ", "realurl", "%s", u.RealURL)
	}
	l.element("    ", "checktime", "%.3f", u.CheckTime.Seconds())
	if u.DLTime > 0 {
		l.element("    ", "dltime", "%.3f", u.DLTime.Seconds())
	}
	if u.Size >= 0 {
		l.element("    ", "dlsize", "%d", u.Size)
	}
	if !u.Modified.IsZero() {
		l.element("    ", "modified", "%s", strutil.Time(u.Modified))
	}
	for _, info := range u.Info {
		l.element("    ", "infos", "%s", info)
	}
	for _, w := range u.Warnings {
		fmt.Fprintf(l.w, "    <warning tag=%q>", w.Tag)
		xml.EscapeText(l.w, []byte(w.Msg))
		fmt.Fprintf(l.w, "</warning>\n")
	}
	fmt.Fprintf(l.w, "    <valid result=%q>%d</valid>\n", u.Result, boolInt(u.Valid))
	fmt.Fprintf(l.w, "  </urldata>\n")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (l *xmlLogger) End(stats engine.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w != nil {
		fmt.Fprintf(l.w, "</linkchecker-out>\n")
	}
	l.out.close()
}
