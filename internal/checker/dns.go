package checker

import (
	"context"
	"net"
	"strings"
)

func (c *Checker) checkDNS(ctx context.Context, u *URL) {
	host := strings.TrimPrefix(u.URL, "dns:")
	host = strings.TrimLeft(host, "/")
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	if host == "" {
		u.SetInvalid("No hostname found in DNS URL")
		return
	}

	timeout, cancel := context.WithTimeout(ctx, c.agg.Config().Checking.Timeout)
	defer cancel()
	addrs, err := (&net.Resolver{}).LookupHost(timeout, host)
	if err != nil {
		u.SetInvalid("%s", err)
		return
	}
	if len(addrs) == 0 {
		u.SetInvalid("No addresses found for %s", host)
		return
	}
	u.SetResult(strings.Join(addrs, ", "), true)
}
