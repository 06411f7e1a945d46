package checker

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/jlaffaye/ftp"

	"github.com/linkchecker/linkchecker/internal/parser"
	"github.com/linkchecker/linkchecker/internal/urlutil"
)

func (c *Checker) checkFTP(ctx context.Context, u *URL) {
	cfg := c.agg.Config()
	if err := c.agg.WaitForHost(ctx, u.Host); err != nil {
		u.SetInvalid("%s", err)
		return
	}

	port := u.Port
	if port == 0 {
		port = 21
	}
	conn, err := ftp.Dial(net.JoinHostPort(u.Host, strconv.Itoa(port)),
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(cfg.Checking.Timeout))
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	defer conn.Quit()

	user, password := cfg.GetUserPassword(u.URL)
	if user == "" {
		user, password = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, password); err != nil {
		u.SetInvalid("%s", err)
		return
	}

	dir, name := splitFTPPath(u.URL)
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		if err := conn.ChangeDir(part); err != nil {
			u.SetInvalid("%s", err)
			return
		}
	}

	if name == "" {
		c.ftpListing(u, conn)
		return
	}

	entries, err := conn.List("")
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	for _, entry := range entries {
		if entry.Name != name {
			continue
		}
		if entry.Type == ftp.EntryTypeFolder {
			u.AddWarning(WarnFTPMissingSlash, "Missing trailing directory slash in ftp url.")
			if err := conn.ChangeDir(name); err != nil {
				u.SetInvalid("%s", err)
				return
			}
			c.ftpListing(u, conn)
			return
		}
		c.ftpRetrieve(ctx, u, conn, name, cfg.Checking.MaxFileSizeDownload)
		return
	}
	u.SetInvalid("550 File not found")
}

// ftpListing fabricates an index page from the current directory so
// FTP trees recurse like web pages.
func (c *Checker) ftpListing(u *URL, conn *ftp.ServerConn) {
	entries, err := conn.List("")
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	var names []string
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		name := entry.Name
		if entry.Type == ftp.EntryTypeFolder {
			name += "/"
		}
		names = append(names, name)
	}
	u.Content = []byte(indexHTML(names))
	u.ContentType = "text/html"
	u.Size = int64(len(u.Content))
	u.SetResult("", true)
}

func (c *Checker) ftpRetrieve(ctx context.Context, u *URL, conn *ftp.ServerConn, name string, limit int64) {
	resp, err := conn.Retr(name)
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(resp, limit+1))
	resp.Close()
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	if int64(len(body)) > limit {
		u.SetInvalid("FTP file size too large")
		return
	}
	u.Size = int64(len(body))
	c.agg.AddDownloadedBytes(int64(len(body)))
	u.ContentType = fileContentType(name)
	if parser.ParseableMimetype(u.ContentType) {
		u.Content = body
	}
	u.SetResult("", true)
	c.agg.RunContentPlugins(ctx, u)
}

// splitFTPPath returns the directory part and the final name of the
// URL path. A trailing slash means the URL names a directory.
func splitFTPPath(rawurl string) (dir, name string) {
	p := urlutil.Split(rawurl).Path
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	if p == "" || p == "/" || strings.HasSuffix(p, "/") {
		return p, ""
	}
	return path.Dir(p), path.Base(p)
}
