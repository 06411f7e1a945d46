package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// sqlLogger emits insert statements for a linksdb table, one per URL.
type sqlLogger struct {
	mu    sync.Mutex
	out   *output
	w     io.Writer
	table string
}

func newSQLLogger(out *output, args map[string]string) *sqlLogger {
	table := args["dbname"]
	if table == "" {
		table = "linksdb"
	}
	return &sqlLogger{out: out, table: table}
}

func (l *sqlLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.out.open()
	if err != nil {
		return
	}
	l.w = w
}

func (l *sqlLogger) Log(u *checker.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	warnings := make([]string, len(u.Warnings))
	for i, w := range u.Warnings {
		warnings[i] = w.Msg
	}
	modified := "NULL"
	if !u.Modified.IsZero() {
		modified = sqlify(strutil.Time(u.Modified))
	}
	fmt.Fprintf(l.w,
		"insert into %s(urlname,parentname,baseref,valid,result,warning,info,url,line,col,name,checktime,dltime,size,cached,level,modified) values (%s,%s,%s,%d,%s,%s,%s,%s,%s,%s,%s,%.3f,%.3f,%d,%d,%d,%s);\n",
		l.table,
		sqlify(u.OrigURL),
		sqlify(u.ParentURL),
		sqlify(u.BaseRef),
		boolInt(u.Valid),
		sqlify(u.Result),
		sqlify(strings.Join(warnings, "\n")),
		sqlify(strings.Join(u.Info, "\n")),
		sqlify(u.URL),
		sqlInt(u.Line),
		sqlInt(u.Column),
		sqlify(u.Name),
		u.CheckTime.Seconds(),
		u.DLTime.Seconds(),
		u.Size,
		boolInt(u.State == checker.StateCached),
		u.RecursionLevel,
		modified,
	)
}

func (l *sqlLogger) End(stats engine.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.close()
}

// sqlify quotes a string literal, doubling embedded quotes.
func sqlify(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// sqlInt renders line and column numbers, NULL when unset.
func sqlInt(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return fmt.Sprintf("%d", n)
}
