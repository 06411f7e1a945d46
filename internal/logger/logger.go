// Package logger holds the output sinks a crawl reports into. One
// primary logger plus any number of file loggers sit behind a fan-out
// that filters valid unwarned URLs unless verbose output is on.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
)

// Logger is one output sink. Log is called at most once per URL
// object; implementations serialise with their own mutex.
type Logger interface {
	Start()
	Log(u *checker.URL)
	End(stats engine.Stats)
}

// New builds the sink for a logger spec. The writer is used when the
// spec names no file; file loggers open their file at Start.
func New(spec config.LoggerSpec, cfg *config.Config, w io.Writer) (Logger, error) {
	args := cfg.LoggerArgs(spec.Type)
	filename := spec.Filename
	if filename == "" && w == nil {
		filename = defaultFilename(spec.Type)
	}
	out := &output{w: w, filename: filename}
	switch spec.Type {
	case "text":
		return newTextLogger(out, args), nil
	case "html":
		return newHTMLLogger(out, args), nil
	case "csv":
		return newCSVLogger(out, args), nil
	case "json":
		return newJSONLogger(out), nil
	case "xml":
		return newXMLLogger(out), nil
	case "gml":
		return newGMLLogger(out), nil
	case "dot":
		return newDotLogger(out), nil
	case "gxml":
		return newGraphXMLLogger(out), nil
	case "sql":
		return newSQLLogger(out, args), nil
	case "failures":
		return newFailuresLogger(filename)
	case "none":
		return &noneLogger{}, nil
	case "mongodb":
		return newMongoLogger(args)
	default:
		return nil, fmt.Errorf("unknown logger type %q", spec.Type)
	}
}

// defaultFilename is the file a -F logger writes without an explicit
// name.
func defaultFilename(kind string) string {
	return "linkchecker-out." + kind
}

// output lazily opens the target file so creating a logger has no side
// effects before Start.
type output struct {
	w        io.Writer
	filename string
	file     *os.File
}

func (o *output) open() (io.Writer, error) {
	if o.w != nil {
		return o.w, nil
	}
	f, err := os.Create(o.filename)
	if err != nil {
		return nil, err
	}
	o.file = f
	o.w = f
	return f, nil
}

func (o *output) close() {
	if o.file != nil {
		o.file.Close()
		o.file = nil
	}
}

// parseParts reads the parts argument of a logger section. Nil means
// every field.
func parseParts(args map[string]string) map[string]bool {
	raw, ok := args["parts"]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			parts[p] = true
		}
	}
	return parts
}

func hasPart(parts map[string]bool, name string) bool {
	if parts == nil {
		return true
	}
	return parts[name]
}

// Fanout feeds one primary logger and any number of file loggers,
// applying the verbose and warnings output filters. It implements
// engine.ResultHandler.
type Fanout struct {
	cfg     *config.Config
	loggers []Logger

	mu             sync.Mutex
	errorsLogged   int
	warningsLogged int
}

// NewFanout wraps the given loggers.
func NewFanout(cfg *config.Config, loggers ...Logger) *Fanout {
	return &Fanout{cfg: cfg, loggers: loggers}
}

// Start announces the crawl to every sink.
func (f *Fanout) Start() {
	for _, l := range f.loggers {
		l.Start()
	}
}

// Log forwards a URL to every sink. Valid URLs without warnings are
// dropped unless verbose output is on; with warnings output off only
// errors pass.
func (f *Fanout) Log(u *checker.URL) {
	if !f.cfg.Output.Warnings {
		u.Warnings = nil
	}
	if !f.cfg.Output.Verbose && u.Valid && len(u.Warnings) == 0 {
		return
	}
	f.mu.Lock()
	if !u.Valid {
		f.errorsLogged++
	}
	f.warningsLogged += len(u.Warnings)
	f.mu.Unlock()
	for _, l := range f.loggers {
		l.Log(u)
	}
}

// End closes every sink with the final statistics.
func (f *Fanout) End(stats engine.Stats) {
	for _, l := range f.loggers {
		l.End(stats)
	}
}

// ErrorsLogged returns how many invalid URLs were logged, for the exit
// code.
func (f *Fanout) ErrorsLogged() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errorsLogged
}

// WarningsLogged returns how many warnings were logged.
func (f *Fanout) WarningsLogged() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.warningsLogged
}

// noneLogger discards everything.
type noneLogger struct{}

func (*noneLogger) Start()                 {}
func (*noneLogger) Log(u *checker.URL)     {}
func (*noneLogger) End(stats engine.Stats) {}
