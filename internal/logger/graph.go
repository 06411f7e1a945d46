package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/engine"
)

// graphNode is one distinct URL in the link graph.
type graphNode struct {
	ID    int
	URL   string
	Valid bool
}

// graphEdge connects a parent document to a link found in it.
type graphEdge struct {
	From, To int
	Name     string
	Valid    bool
}

// graphCollector deduplicates nodes by cache URL and records the
// parent-child edges. The three graph loggers share it and only differ
// in how they render the collected graph at End.
type graphCollector struct {
	mu    sync.Mutex
	ids   map[string]int
	nodes []graphNode
	edges []graphEdge
}

func newGraphCollector() *graphCollector {
	return &graphCollector{ids: make(map[string]int)}
}

func (g *graphCollector) node(rawurl string, valid bool) int {
	if id, ok := g.ids[rawurl]; ok {
		return id
	}
	id := len(g.nodes)
	g.ids[rawurl] = id
	g.nodes = append(g.nodes, graphNode{ID: id, URL: rawurl, Valid: valid})
	return id
}

func (g *graphCollector) add(u *checker.URL) {
	key := u.CacheURL
	if key == "" {
		key = u.URL
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	to := g.node(key, u.Valid)
	g.nodes[to].Valid = g.nodes[to].Valid && u.Valid
	if u.ParentURL == "" {
		return
	}
	from := g.node(u.ParentURL, true)
	g.edges = append(g.edges, graphEdge{From: from, To: to, Name: u.Name, Valid: u.Valid})
}

func (g *graphCollector) snapshot() ([]graphNode, []graphEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]graphNode(nil), g.nodes...), append([]graphEdge(nil), g.edges...)
}

// dotLogger renders the link graph in Graphviz dot syntax.
type dotLogger struct {
	out   *output
	graph *graphCollector
}

func newDotLogger(out *output) *dotLogger {
	return &dotLogger{out: out, graph: newGraphCollector()}
}

func (l *dotLogger) Start() {}
func (l *dotLogger) Log(u *checker.URL) { l.graph.add(u) }

func (l *dotLogger) End(stats engine.Stats) {
	w, err := l.out.open()
	if err != nil {
		return
	}
	defer l.out.close()
	nodes, edges := l.graph.snapshot()
	fmt.Fprintln(w, "digraph linksgraph {")
	for _, n := range nodes {
		fmt.Fprintf(w, "  %d [label=%s, valid=%d];\n", n.ID, dotQuote(n.URL), boolInt(n.Valid))
	}
	for _, e := range edges {
		attrs := fmt.Sprintf("valid=%d", boolInt(e.Valid))
		if e.Name != "" {
			attrs = fmt.Sprintf("label=%s, %s", dotQuote(e.Name), attrs)
		}
		fmt.Fprintf(w, "  %d -> %d [%s];\n", e.From, e.To, attrs)
	}
	fmt.Fprintln(w, "}")
}

func dotQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// gmlLogger renders the link graph in GML.
type gmlLogger struct {
	out   *output
	graph *graphCollector
}

func newGMLLogger(out *output) *gmlLogger {
	return &gmlLogger{out: out, graph: newGraphCollector()}
}

func (l *gmlLogger) Start() {}
func (l *gmlLogger) Log(u *checker.URL) { l.graph.add(u) }

func (l *gmlLogger) End(stats engine.Stats) {
	w, err := l.out.open()
	if err != nil {
		return
	}
	defer l.out.close()
	nodes, edges := l.graph.snapshot()
	fmt.Fprintln(w, "graph [")
	fmt.Fprintln(w, "  directed 1")
	for _, n := range nodes {
		fmt.Fprintf(w, "  node [\n    id %d\n    label %s\n  ]\n", n.ID, dotQuote(n.URL))
	}
	for _, e := range edges {
		fmt.Fprintf(w, "  edge [\n    source %d\n    target %d\n    label %s\n  ]\n",
			e.From, e.To, dotQuote(e.Name))
	}
	fmt.Fprintln(w, "]")
}

// graphXMLLogger renders the link graph in GraphXML.
type graphXMLLogger struct {
	out   *output
	graph *graphCollector
}

func newGraphXMLLogger(out *output) *graphXMLLogger {
	return &graphXMLLogger{out: out, graph: newGraphCollector()}
}

func (l *graphXMLLogger) Start() {}
func (l *graphXMLLogger) Log(u *checker.URL) { l.graph.add(u) }

func (l *graphXMLLogger) End(stats engine.Stats) {
	w, err := l.out.open()
	if err != nil {
		return
	}
	defer l.out.close()
	nodes, edges := l.graph.snapshot()
	fmt.Fprintln(w, `<?xml version="1.0"?>`)
	fmt.Fprintln(w, `<!DOCTYPE GraphXML SYSTEM "GraphXML.dtd">`)
	fmt.Fprintln(w, "<GraphXML>")
	fmt.Fprintln(w, `  <graph isDirected="true">`)
	for _, n := range nodes {
		fmt.Fprintf(w, "    <node name=\"%d\"><label>%s</label></node>\n", n.ID, xmlEscape(n.URL))
	}
	for _, e := range edges {
		fmt.Fprintf(w, "    <edge source=\"%d\" target=\"%d\"><label>%s</label></edge>\n",
			e.From, e.To, xmlEscape(e.Name))
	}
	fmt.Fprintln(w, "  </graph>")
	fmt.Fprintln(w, "</GraphXML>")
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
