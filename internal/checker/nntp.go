package checker

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/linkchecker/linkchecker/internal/urlutil"
)

func (c *Checker) checkNNTP(ctx context.Context, u *URL) {
	cfg := c.agg.Config()
	server := cfg.Checking.NNTPServer
	if server == "" {
		u.AddWarning(WarnNNTPNoServer, "No NNTP server was specified, skipping this URL.")
		u.SetResult("", true)
		return
	}

	group := nntpGroup(u.URL)
	if group == "" {
		u.SetResult("", true)
		return
	}
	// Article message ids carry an @ and are checked for syntax only.
	if strings.Contains(group, "@") {
		u.SetResult("", true)
		return
	}

	dialer := net.Dialer{Timeout: cfg.Checking.Timeout}
	raw, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(server, "119"))
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	raw.SetDeadline(time.Now().Add(cfg.Checking.Timeout))
	conn := textproto.NewConn(raw)
	defer conn.Close()

	if _, _, err := conn.ReadCodeLine(20); err != nil {
		u.SetInvalid("%s", err)
		return
	}
	if err := conn.PrintfLine("GROUP %s", group); err != nil {
		u.SetInvalid("%s", err)
		return
	}
	code, _, err := conn.ReadCodeLine(0)
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	if code == 211 {
		u.AddInfo("News group %s found.", group)
	} else {
		u.AddWarning(WarnNNTPNoNewsgroup, "News group %s not found.", group)
	}
	conn.PrintfLine("QUIT")
	u.SetResult("", true)
}

// nntpGroup extracts the group name or article id of a news URL.
func nntpGroup(rawurl string) string {
	parts := urlutil.Split(rawurl)
	group := parts.Path
	if group == "" && !strings.Contains(rawurl, "//") {
		// news:comp.lang.misc puts the group where a path would be.
		group = strings.TrimPrefix(rawurl, parts.Scheme+":")
	}
	return strings.Trim(group, "/")
}
