package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
)

// failureKey identifies one failing link. The parent is part of the
// key so the same broken URL is tracked per page linking to it.
type failureKey struct {
	Parent string
	URL    string
}

// failuresLogger persists failing URLs with a failure count across
// runs. URLs that check out fine again are dropped from the file.
type failuresLogger struct {
	mu       sync.Mutex
	filename string
	counts   map[failureKey]int
}

func newFailuresLogger(filename string) (*failuresLogger, error) {
	if filename == "" || filename == defaultFilename("failures") {
		dir := config.DataDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		filename = filepath.Join(dir, "failures")
	}
	return &failuresLogger{
		filename: filename,
		counts:   make(map[failureKey]int),
	}, nil
}

// Start loads the failure counts of earlier runs.
func (l *failuresLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.filename)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if key, count, err := parseFailureLine(scanner.Text()); err == nil {
			l.counts[key] = count
		}
	}
}

// parseFailureLine parses one `count "parent" "url"` line.
func parseFailureLine(line string) (failureKey, int, error) {
	countField, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return failureKey{}, 0, fmt.Errorf("malformed failures line %q", line)
	}
	count, err := strconv.Atoi(countField)
	if err != nil {
		return failureKey{}, 0, err
	}
	quoted, err := strconv.QuotedPrefix(rest)
	if err != nil {
		return failureKey{}, 0, err
	}
	parent, err := strconv.Unquote(quoted)
	if err != nil {
		return failureKey{}, 0, err
	}
	rest = strings.TrimSpace(rest[len(quoted):])
	rawurl, err := strconv.Unquote(rest)
	if err != nil {
		return failureKey{}, 0, err
	}
	return failureKey{Parent: parent, URL: rawurl}, count, nil
}

func (l *failuresLogger) Log(u *checker.URL) {
	rawurl := u.CacheURL
	if rawurl == "" {
		rawurl = u.URL
	}
	key := failureKey{Parent: u.ParentURL, URL: rawurl}
	l.mu.Lock()
	defer l.mu.Unlock()
	if u.Valid {
		delete(l.counts, key)
		return
	}
	l.counts[key]++
}

// End writes the updated counts back, one `count "parent" "url"` line
// each.
func (l *failuresLogger) End(stats engine.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Create(l.filename)
	if err != nil {
		return
	}
	defer f.Close()
	keys := make([]failureKey, 0, len(l.counts))
	for key := range l.counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Parent != keys[j].Parent {
			return keys[i].Parent < keys[j].Parent
		}
		return keys[i].URL < keys[j].URL
	})
	for _, key := range keys {
		fmt.Fprintf(f, "%d %q %q\n", l.counts[key], key.Parent, key.URL)
	}
}
