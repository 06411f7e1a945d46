package checker

import (
	"net/url"

	"github.com/linkchecker/linkchecker/internal/parser"
	"github.com/linkchecker/linkchecker/internal/urlutil"
)

// checkItmsServices validates itms-services manifest URLs: the query
// must name the manifest with a url parameter. The embedded URL is
// emitted as a child link; the manifest itself is not fetched.
func (c *Checker) checkItmsServices(u *URL) {
	values, err := url.ParseQuery(urlutil.Split(u.URL).Query)
	if err != nil || values.Get("url") == "" {
		u.SetInvalid("Missing url CGI parameter")
		return
	}
	u.HeaderLinks = append(u.HeaderLinks, parser.Link{
		URL:  values.Get("url"),
		Name: "itms-services url parameter",
	})
	u.SetResult("syntax OK", true)
}
