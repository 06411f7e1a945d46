package checker

import (
	"context"
	"fmt"
	"html"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/linkchecker/linkchecker/internal/parser"
	"github.com/linkchecker/linkchecker/internal/urlutil"
)

func (c *Checker) checkFile(ctx context.Context, u *URL) {
	cfg := c.agg.Config()

	// A remote page must not probe the local filesystem.
	if u.ParentURL != "" && !strings.HasPrefix(u.ParentURL, "file:") {
		u.AddWarning("file-insecure", "Security violation: insecure file link.")
		u.SetInvalid("insecure file link")
		return
	}

	path := localFilePath(u, cfg.Checking.LocalWebRoot)
	info, err := os.Stat(path)
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(u.URL, "/") {
			u.AddWarning(WarnFileMissingSlash, "Missing trailing directory slash in URL %q.", u.URL)
		}
		c.readDirectory(u, path)
		u.SetResult("", true)
		c.agg.RunContentPlugins(ctx, u)
		return
	}

	u.Size = info.Size()
	u.Modified = info.ModTime()
	u.ContentType = fileContentType(path)
	if info.Size() > cfg.Checking.MaxFileSizeDownload {
		u.SetInvalid("File size too large")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	defer f.Close()
	if parser.ParseableMimetype(u.ContentType) {
		body, err := io.ReadAll(io.LimitReader(f, cfg.Checking.MaxFileSizeDownload))
		if err != nil {
			u.AddWarning(WarnURLErrorGettingContent, "Could not get content: %s", err)
		} else {
			u.Content = body
			c.agg.AddDownloadedBytes(int64(len(body)))
		}
	}
	u.SetResult("", true)
	c.agg.RunContentPlugins(ctx, u)
}

// localFilePath converts the URL to an OS path, honouring the
// localwebroot mapping for absolute paths.
func localFilePath(u *URL, webroot string) string {
	parts := urlutil.Split(u.URL)
	path := parts.Path
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	if webroot != "" && strings.HasPrefix(path, "/") {
		path = filepath.Join(webroot, path)
	}
	return path
}

// readDirectory fabricates an HTML listing so directory contents can
// be recursed into like any other page. Subdirectories get a trailing
// slash.
func (c *Checker) readDirectory(u *URL, path string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		u.AddWarning(WarnURLErrorGettingContent, "Could not get content: %s", err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	u.Content = []byte(indexHTML(names))
	u.ContentType = "text/html"
	u.Size = int64(len(u.Content))
}

// indexHTML renders a minimal link list for directory contents.
func indexHTML(names []string) string {
	var b strings.Builder
	b.WriteString("<html>\n<body>\n")
	for _, name := range names {
		fmt.Fprintf(&b, "<a href=%q>%s</a>\n", name, html.EscapeString(name))
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// fileContentType guesses a MIME type from the file extension.
func fileContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".html", ".htm", ".xhtml":
		return "text/html"
	case ".css":
		return "text/css"
	case ".txt":
		return "text/plain"
	case ".xml":
		return "application/xml"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mediatype, _, err := mime.ParseMediaType(t); err == nil {
			return mediatype
		}
	}
	return ""
}
