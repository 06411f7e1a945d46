package logger

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// csvColumns is the fixed column set in output order.
var csvColumns = []string{
	"urlname", "parentname", "baseref", "result", "warningstring",
	"infostring", "valid", "url", "line", "column", "name", "dltime",
	"dlsize", "checktime", "cached", "level", "modified",
}

// csvLogger writes one semicolon separated row per URL.
type csvLogger struct {
	mu  sync.Mutex
	out *output
	w   *csv.Writer
}

func newCSVLogger(out *output, args map[string]string) *csvLogger {
	return &csvLogger{out: out}
}

func (l *csvLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.out.open()
	if err != nil {
		return
	}
	l.w = csv.NewWriter(w)
	l.w.Comma = ';'
	l.w.Write(csvColumns)
}

func (l *csvLogger) Log(u *checker.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	warnings := make([]string, len(u.Warnings))
	for i, w := range u.Warnings {
		warnings[i] = w.Msg
	}
	modified := ""
	if !u.Modified.IsZero() {
		modified = strutil.Time(u.Modified)
	}
	l.w.Write([]string{
		u.OrigURL,
		u.ParentURL,
		u.BaseRef,
		u.Result,
		strings.Join(warnings, "\n"),
		strings.Join(u.Info, "\n"),
		strconv.FormatBool(u.Valid),
		u.URL,
		intColumn(u.Line),
		intColumn(u.Column),
		u.Name,
		fmt.Sprintf("%.3f", u.DLTime.Seconds()),
		strconv.FormatInt(u.Size, 10),
		fmt.Sprintf("%.3f", u.CheckTime.Seconds()),
		strconv.FormatBool(u.State == checker.StateCached),
		strconv.Itoa(u.RecursionLevel),
		modified,
	})
}

func intColumn(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func (l *csvLogger) End(stats engine.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w != nil {
		l.w.Flush()
	}
	l.out.close()
}
