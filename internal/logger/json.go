package logger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// jsonRecord is the serialised form of one URL result.
type jsonRecord struct {
	URL       string      `json:"url"`
	Name      string      `json:"name,omitempty"`
	Parent    *jsonParent `json:"parenturl,omitempty"`
	Base      string      `json:"base,omitempty"`
	RealURL   string      `json:"realurl,omitempty"`
	CheckTime float64     `json:"checktime"`
	DLTime    float64     `json:"dltime,omitempty"`
	DLSize    int64       `json:"dlsize,omitempty"`
	Info      []string    `json:"info,omitempty"`
	Modified  string      `json:"modified,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
	Result    string      `json:"result"`
	Valid     bool        `json:"valid"`
}

type jsonParent struct {
	URL    string `json:"url"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Page   int    `json:"page,omitempty"`
}

// jsonLogger collects records and writes one array at End.
type jsonLogger struct {
	mu      sync.Mutex
	out     *output
	started time.Time
	records []jsonRecord
}

func newJSONLogger(out *output) *jsonLogger {
	return &jsonLogger{out: out}
}

func (l *jsonLogger) Start() {
	l.mu.Lock()
	l.started = time.Now()
	l.mu.Unlock()
}

func (l *jsonLogger) Log(u *checker.URL) {
	rec := jsonRecord{
		URL:       u.URL,
		Name:      u.Name,
		Base:      u.BaseRef,
		CheckTime: u.CheckTime.Seconds(),
		DLTime:    u.DLTime.Seconds(),
		Info:      u.Info,
		Result:    u.Result,
		Valid:     u.Valid,
	}
	if u.ParentURL != "" {
		rec.Parent = &jsonParent{URL: u.ParentURL, Line: u.Line, Column: u.Column, Page: u.Page}
	}
	if u.RealURL != u.URL {
		rec.RealURL = u.RealURL
	}
	if u.Size > 0 {
		rec.DLSize = u.Size
	}
	if !u.Modified.IsZero() {
		rec.Modified = strutil.Time(u.Modified)
	}
	for _, w := range u.Warnings {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("[%s] %s", w.Tag, w.Msg))
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

func (l *jsonLogger) End(stats engine.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.out.open()
	if err != nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if l.records == nil {
		l.records = []jsonRecord{}
	}
	enc.Encode(l.records)
	l.out.close()
}
