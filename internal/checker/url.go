// Package checker builds URL objects from raw link strings and drives
// them through syntax check, connection and content handling for each
// supported scheme.
package checker

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding"

	"github.com/linkchecker/linkchecker/internal/parser"
	"github.com/linkchecker/linkchecker/internal/urlutil"
)

// State tracks where a URL is in its lifecycle.
type State int

const (
	StateNew State = iota
	StateBuilt
	StateChecking
	StateFetched
	StateParsed
	StateDone
	StateIgnored
	StateCached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateBuilt:
		return "built"
	case StateChecking:
		return "checking"
	case StateFetched:
		return "fetched"
	case StateParsed:
		return "parsed"
	case StateDone:
		return "done"
	case StateIgnored:
		return "ignored"
	case StateCached:
		return "cached"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Warning tags, kept stable so ignorewarnings can filter on them.
const (
	WarnURLWhitespace          = "url-whitespace"
	WarnURLTooLong             = "url-too-long"
	WarnURLEffectiveEmpty      = "url-effectively-empty"
	WarnURLErrorGettingContent = "url-error-getting-content"
	WarnURLAnchorNotFound      = "url-anchor-not-found"
	WarnURLContentSizeZero     = "url-content-size-zero"
	WarnURLContentTooLarge     = "url-content-too-large"
	WarnHTTPRedirected         = "http-redirected"
	WarnHTTPRateLimited        = "http-rate-limited"
	WarnHTTPEmptyContent       = "http-empty-content"
	WarnFTPMissingSlash        = "ftp-missing-slash"
	WarnFileMissingSlash       = "file-missing-slash"
	WarnFileSystemPath         = "file-system-path"
	WarnMailUnverifiedAddress  = "mail-unverified-address"
	WarnNNTPNoServer           = "nntp-no-server"
	WarnNNTPNoNewsgroup        = "nntp-no-newsgroup"
	WarnIgnoreURL              = "ignore-url"
	WarnSSLCertExpired         = "ssl-cert-expired"
	WarnSSLCertExpiring        = "ssl-cert-expiring"
	WarnSSLVerifyDisabled      = "ssl-verify-disabled"
	WarnSyntaxCSS              = "syntax-css"
)

// MaxURLLength is the length above which a URL draws a warning.
const MaxURLLength = 255

// Warning is one tagged warning message attached to a URL.
type Warning struct {
	Tag string
	Msg string
}

// URL is one link under check: its origin in the parent document, the
// normalised form, and everything the check produced. One URL is
// handed to the loggers exactly once.
type URL struct {
	// Origin.
	OrigURL        string
	ParentURL      string
	BaseRef        string
	Name           string
	Line           int
	Column         int
	Page           int
	RecursionLevel int

	// Normalised form. RealURL is the final location after redirects.
	URL      string
	RealURL  string
	CacheURL string
	Scheme   string
	UserInfo string
	Host     string
	Port     int
	Anchor   string

	// Classification.
	Extern       bool
	StrictExtern bool
	NoFollow     bool

	// Check outcome.
	State     State
	Valid     bool
	Result    string
	Warnings  []Warning
	Info      []string
	Aliases   []string
	Modified  time.Time
	Size      int64
	DLTime    time.Duration
	CheckTime time.Duration

	// Fetched content, kept only while parsing.
	Content     []byte
	ContentType string
	Charset     string

	// Links taken from HTTP response headers, parsed with the body.
	HeaderLinks []parser.Link

	// TLS connection details of the final hop, for certificate checks.
	TLS *tls.ConnectionState

	// Document encoding used for quoting, nil means UTF-8.
	Encoding encoding.Encoding

	// Mail addresses resolved at build time; the cache key derives
	// from them so address order and duplicates do not defeat dedup.
	mailtoAddrs   []string
	mailtoSubject bool

	parseErr error
}

// NewURL creates a URL for a raw link string found in a parent
// document. For seed URLs parent is empty and recursionLevel zero.
func NewURL(rawurl, parentURL, baseRef string, recursionLevel int) *URL {
	return &URL{
		OrigURL:        rawurl,
		ParentURL:      parentURL,
		BaseRef:        baseRef,
		RecursionLevel: recursionLevel,
		Size:           -1,
		Valid:          true,
	}
}

// AddWarning appends a tagged warning, deduplicating identical
// (tag, message) pairs.
func (u *URL) AddWarning(tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, w := range u.Warnings {
		if w.Tag == tag && w.Msg == msg {
			return
		}
	}
	u.Warnings = append(u.Warnings, Warning{Tag: tag, Msg: msg})
}

// AddInfo appends an informational message, deduplicated.
func (u *URL) AddInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, s := range u.Info {
		if s == msg {
			return
		}
	}
	u.Info = append(u.Info, msg)
}

// SetResult marks the URL checked with the given result text.
func (u *URL) SetResult(result string, valid bool) {
	u.Result = result
	u.Valid = valid
}

// SetInvalid marks the URL failed with the given result text.
func (u *URL) SetInvalid(format string, args ...any) {
	u.Valid = false
	u.Result = fmt.Sprintf(format, args...)
	u.State = StateFailed
}

// Build normalises the raw URL against its base and parent and splits
// it into parts. It returns false when the URL fails the syntax check;
// the result and warnings are recorded on the URL either way.
func (u *URL) Build(cfg BuildConfig) bool {
	raw := u.OrigURL
	if raw == "" {
		u.SetInvalid("URL is empty")
		return false
	}

	stripped := stripURL(raw)
	if stripped != raw {
		u.AddWarning(WarnURLWhitespace, "Leading or trailing whitespace in URL %q", raw)
	}
	if stripped == "" {
		u.SetInvalid("URL is empty, skipping")
		return false
	}
	raw = urlutil.FixCommonTypos(stripped)

	resolved, err := u.resolve(raw)
	if err != nil {
		u.SetInvalid("URL is unrecognized or has invalid syntax")
		return false
	}

	normed, _, err := urlutil.Norm(resolved, u.Encoding)
	if err != nil {
		u.SetInvalid("URL is unrecognized or has invalid syntax")
		return false
	}
	u.URL = normed

	if len(u.URL) > MaxURLLength {
		u.AddWarning(WarnURLTooLong, "URL length %d is longer than %d.", len(u.URL), MaxURLLength)
	}

	parts := urlutil.Split(u.URL)
	u.Scheme = strings.ToLower(parts.Scheme)
	u.Anchor = parts.Fragment
	u.UserInfo, _ = splitUserInfo(parts.Netloc)
	host, port := hostPort(parts.Netloc, u.Scheme)
	u.Host = host
	u.Port = port

	u.RealURL = u.URL
	u.CacheURL = cacheURL(u.URL)
	if cfg.AnchorKeys && u.Anchor != "" {
		u.CacheURL += "#" + u.Anchor
	}
	if u.Scheme == "mailto" {
		u.mailtoAddrs, u.mailtoSubject = mailtoAddresses(u)
		u.CacheURL = "mailto:" + strings.Join(u.mailtoAddrs, ",")
	}
	u.State = StateBuilt
	return true
}

// errorText renders a network error without the request prefix noise
// url.Error wraps around it.
func errorText(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err.Error()
	}
	return err.Error()
}

// BuildConfig carries the build-time switches the URL itself cannot
// know.
type BuildConfig struct {
	// AnchorKeys keys the result cache by anchor so documents are
	// checked once per distinct fragment.
	AnchorKeys bool
}

// resolve makes the raw reference absolute using, in order, the
// per-link base, the document base and the parent URL.
func (u *URL) resolve(raw string) (string, error) {
	if urlutil.IsAbsolute(raw) {
		return raw, nil
	}
	base := u.BaseRef
	if base == "" {
		base = u.ParentURL
	}
	if base == "" {
		return raw, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// stripURL trims a link string to its first line with surrounding
// whitespace removed.
func stripURL(rawurl string) string {
	if i := strings.IndexAny(rawurl, "\r\n"); i >= 0 {
		rawurl = rawurl[:i]
	}
	return strings.TrimSpace(rawurl)
}

// cacheURL removes the fragment from a URL.
func cacheURL(rawurl string) string {
	if i := strings.Index(rawurl, "#"); i >= 0 {
		return rawurl[:i]
	}
	return rawurl
}

func splitUserInfo(netloc string) (userinfo, hostport string) {
	return urlutil.SplitNetloc(netloc)
}

func hostPort(netloc, scheme string) (string, int) {
	_, hostport := urlutil.SplitNetloc(netloc)
	return urlutil.SplitPort(strings.ToLower(hostport), urlutil.DefaultPorts[scheme])
}

// AllowsRecursion reports whether links found in this URL's content
// should be followed. A negative maxLevel means unbounded recursion.
func (u *URL) AllowsRecursion(maxLevel int) bool {
	if !u.Valid || u.NoFollow || u.Extern {
		return false
	}
	if maxLevel >= 0 && u.RecursionLevel >= maxLevel {
		return false
	}
	return true
}

// IsHTTP reports whether the URL uses an HTTP scheme.
func (u *URL) IsHTTP() bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// IsParseable reports content that the link extractor understands.
func (u *URL) IsParseable() bool {
	return u.parseErr == nil && u.ContentType != "" && u.Content != nil
}

func (u *URL) String() string {
	return u.URL
}
