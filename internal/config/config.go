// Package config holds the runtime configuration for link checking,
// loaded from the INI-style linkcheckerrc file, environment variables
// and command line flags.
package config

import (
	"fmt"
	"regexp"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// AppURL points to the project homepage, included in the User-Agent.
const AppURL = "https://github.com/linkchecker/linkchecker"

// UserAgent returns the default User-Agent header value.
func UserAgent() string {
	return fmt.Sprintf("Mozilla/5.0 (compatible; LinkChecker/%s; +%s)", Version, AppURL)
}

// Config is the root configuration shared by all components. It is
// built once before the crawl starts and treated as read-only by the
// checker workers.
type Config struct {
	Checking       CheckingConfig
	Filtering      FilteringConfig
	Authentication AuthConfig
	Output         OutputConfig
	Loggers        map[string]map[string]string
	Plugins        PluginConfig
}

// CheckingConfig controls connections and recursion.
type CheckingConfig struct {
	Threads              int
	Timeout              time.Duration
	AbortTimeout         time.Duration
	RecursionLevel       int
	UserAgent            string
	RobotsTxt            bool
	CookieFile           string
	LocalWebRoot         string
	NNTPServer           string
	SSLVerify            bool
	MaxNumURLs           int
	MaxRequestsPerSecond float64
	MaxRunSeconds        int
	MaxFileSizeParse     int64
	MaxFileSizeDownload  int64
	MaxHTTPRedirects     int
	AllowedSchemes       []string
	ResultCacheSize      int
	AnchorCacheSize      int
}

// FilteringConfig controls which URLs are checked and recursed into.
type FilteringConfig struct {
	IgnoreURLs     []LinkPattern
	NoFollowURLs   []LinkPattern
	InternLinks    []LinkPattern
	ExternLinks    []LinkPattern
	CheckExtern    bool
	IgnoreWarnings []string
}

// AuthConfig holds credentials matched by URL pattern plus the optional
// pre-crawl login form settings.
type AuthConfig struct {
	Entries            []AuthEntry
	LoginURL           string
	LoginUserField     string
	LoginPasswordField string
	LoginExtraFields   map[string]string
}

// AuthEntry associates credentials with a URL pattern. The first
// matching entry wins.
type AuthEntry struct {
	User     string
	Password string
	Pattern  *regexp.Regexp
}

// OutputConfig controls what gets logged and where.
type OutputConfig struct {
	Debug      []string
	Verbose    bool
	Quiet      bool
	Warnings   bool
	Status     bool
	StatusWait time.Duration
	Log        LoggerSpec
	FileOutput []LoggerSpec
}

// LoggerSpec selects one output logger. Type is one of the registered
// logger names, Encoding an IANA charset name, Filename an optional
// output path overriding the logger default.
type LoggerSpec struct {
	Type     string
	Encoding string
	Filename string
}

// PluginConfig lists enabled content/connection plugins with their
// per-plugin option sections.
type PluginConfig struct {
	Enabled []string
	Options map[string]map[string]string
}

// LinkPattern is a compiled URL filter. Negate inverts the match;
// Strict marks extern URLs whose check is skipped entirely.
type LinkPattern struct {
	Pattern *regexp.Regexp
	Strict  bool
	Negate  bool
}

// Match applies the pattern to a URL honoring negation.
func (p LinkPattern) Match(url string) bool {
	m := p.Pattern.MatchString(url)
	if p.Negate {
		return !m
	}
	return m
}

// NewLinkPattern compiles a pattern string. A leading "!" negates the
// pattern.
func NewLinkPattern(pattern string, strict bool) (LinkPattern, error) {
	negate := false
	if len(pattern) > 0 && pattern[0] == '!' {
		negate = true
		pattern = pattern[1:]
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return LinkPattern{}, fmt.Errorf("invalid link pattern %q: %w", pattern, err)
	}
	return LinkPattern{Pattern: re, Strict: strict, Negate: negate}, nil
}

// Default returns the configuration defaults used when no config file
// or flag overrides them.
func Default() *Config {
	return &Config{
		Checking: CheckingConfig{
			Threads:              10,
			Timeout:              60 * time.Second,
			AbortTimeout:         300 * time.Second,
			RecursionLevel:       -1,
			UserAgent:            UserAgent(),
			RobotsTxt:            true,
			SSLVerify:            true,
			MaxRequestsPerSecond: 10,
			MaxFileSizeParse:     1 << 20,
			MaxFileSizeDownload:  5 << 20,
			MaxHTTPRedirects:     10,
			ResultCacheSize:      100_000,
			AnchorCacheSize:      10_000,
		},
		Authentication: AuthConfig{
			LoginUserField:     "login",
			LoginPasswordField: "password",
			LoginExtraFields:   make(map[string]string),
		},
		Output: OutputConfig{
			Warnings:   true,
			Status:     true,
			StatusWait: 5 * time.Second,
			Log:        LoggerSpec{Type: "text"},
		},
		Loggers: make(map[string]map[string]string),
		Plugins: PluginConfig{Options: make(map[string]map[string]string)},
	}
}

// GetUserPassword returns credentials for the given URL from the
// authentication entries. The first matching pattern wins; both values
// are empty when nothing matches.
func (c *Config) GetUserPassword(url string) (user, password string) {
	for _, entry := range c.Authentication.Entries {
		if entry.Pattern.MatchString(url) {
			return entry.User, entry.Password
		}
	}
	return "", ""
}

// AllowedScheme reports whether the scheme passes the allowedschemes
// filter. An empty filter allows every scheme.
func (c *Config) AllowedScheme(scheme string) bool {
	if len(c.Checking.AllowedSchemes) == 0 {
		return true
	}
	for _, s := range c.Checking.AllowedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// IgnoreWarning reports whether the warning tag is suppressed.
func (c *Config) IgnoreWarning(tag string) bool {
	for _, t := range c.Filtering.IgnoreWarnings {
		if t == tag {
			return true
		}
	}
	return false
}

// PluginEnabled reports whether the named plugin is switched on.
func (c *Config) PluginEnabled(name string) bool {
	for _, p := range c.Plugins.Enabled {
		if p == name {
			return true
		}
	}
	return false
}

// PluginOptions returns the option section of a plugin, which may be
// empty but is never nil.
func (c *Config) PluginOptions(name string) map[string]string {
	if opts, ok := c.Plugins.Options[name]; ok {
		return opts
	}
	return map[string]string{}
}

// LoggerArgs returns the option section of a logger type, which may be
// empty but is never nil.
func (c *Config) LoggerArgs(name string) map[string]string {
	if args, ok := c.Loggers[name]; ok {
		return args
	}
	return map[string]string{}
}
