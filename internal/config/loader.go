package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// DefaultConfigPaths returns the config files read when no -f flag is
// given, in load order. Missing files are skipped silently.
func DefaultConfigPaths() []string {
	var paths []string
	if dir := configDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, "linkchecker", "linkcheckerrc"))
	}
	return paths
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return ""
}

// DataDir returns the directory for persistent application data such
// as the failures logger state file.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "linkchecker")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "linkchecker")
	}
	return "linkchecker-data"
}

// Load builds a Config from the defaults, the config files and the
// environment. Files listed explicitly must exist; default path files
// are optional.
func Load(files []string) (*Config, error) {
	cfg := Default()
	for _, path := range DefaultConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := readFile(cfg, path); err != nil {
			return nil, err
		}
	}
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("Config file %q does not exist.", path)
		}
		if err := readFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnvironment(cfg)
	return cfg, nil
}

func readFile(cfg *Config, path string) error {
	f, err := ini.LoadSources(ini.LoadOptions{AllowPythonMultilineValues: true}, path)
	if err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	if err := checkSections(f); err != nil {
		return err
	}
	if err := applyChecking(cfg, f); err != nil {
		return err
	}
	if err := applyFiltering(cfg, f); err != nil {
		return err
	}
	if err := applyAuthentication(cfg, f); err != nil {
		return err
	}
	if err := applyOutput(cfg, f); err != nil {
		return err
	}
	applyLoggers(cfg, f)
	applyPlugins(cfg, f)
	return nil
}

// checkSections rejects sections that are not known to the
// configuration. Logger and plugin sections are validated by name, the
// options inside them are free-form.
func checkSections(f *ini.File) error {
	known := map[string]bool{
		ini.DefaultSection: true,
		"checking":         true,
		"filtering":        true,
		"authentication":   true,
		"output":           true,
	}
	for _, name := range LoggerTypes {
		known[name] = true
	}
	for _, name := range PluginNames {
		known[name] = true
	}
	for _, name := range f.SectionStrings() {
		if !known[name] {
			return fmt.Errorf("invalid section name [%s]", name)
		}
	}
	return nil
}

// checkKeys rejects options the section does not support.
func checkKeys(sec *ini.Section, allowed ...string) error {
	for _, key := range sec.KeyStrings() {
		found := false
		for _, name := range allowed {
			if key == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("invalid option %q in section [%s]", key, sec.Name())
		}
	}
	return nil
}

func applyChecking(cfg *Config, f *ini.File) error {
	sec := f.Section("checking")
	if err := checkKeys(sec, "threads", "timeout", "aborttimeout",
		"recursionlevel", "useragent", "robotstxt", "cookiefile",
		"localwebroot", "nntpserver", "sslverify", "maxnumurls",
		"maxrequestspersecond", "maxrunseconds", "maxfilesizeparse",
		"maxfilesizedownload", "maxhttpredirects", "allowedschemes",
		"resultcachesize", "anchorcachesize"); err != nil {
		return err
	}
	c := &cfg.Checking
	if sec.HasKey("threads") {
		c.Threads = sec.Key("threads").MustInt(c.Threads)
	}
	if sec.HasKey("timeout") {
		c.Timeout = time.Duration(sec.Key("timeout").MustInt(60)) * time.Second
	}
	if sec.HasKey("aborttimeout") {
		c.AbortTimeout = time.Duration(sec.Key("aborttimeout").MustInt(300)) * time.Second
	}
	if sec.HasKey("recursionlevel") {
		c.RecursionLevel = sec.Key("recursionlevel").MustInt(c.RecursionLevel)
	}
	if sec.HasKey("useragent") {
		c.UserAgent = sec.Key("useragent").String()
	}
	if sec.HasKey("robotstxt") {
		c.RobotsTxt = sec.Key("robotstxt").MustBool(c.RobotsTxt)
	}
	if sec.HasKey("cookiefile") {
		c.CookieFile = sec.Key("cookiefile").String()
	}
	if sec.HasKey("localwebroot") {
		c.LocalWebRoot = sec.Key("localwebroot").String()
	}
	if sec.HasKey("nntpserver") {
		c.NNTPServer = sec.Key("nntpserver").String()
	}
	if sec.HasKey("sslverify") {
		c.SSLVerify = sec.Key("sslverify").MustBool(c.SSLVerify)
	}
	if sec.HasKey("maxnumurls") {
		c.MaxNumURLs = sec.Key("maxnumurls").MustInt(c.MaxNumURLs)
	}
	if sec.HasKey("maxrequestspersecond") {
		c.MaxRequestsPerSecond = sec.Key("maxrequestspersecond").MustFloat64(c.MaxRequestsPerSecond)
	}
	if sec.HasKey("maxrunseconds") {
		c.MaxRunSeconds = sec.Key("maxrunseconds").MustInt(c.MaxRunSeconds)
	}
	if sec.HasKey("maxfilesizeparse") {
		c.MaxFileSizeParse = sec.Key("maxfilesizeparse").MustInt64(c.MaxFileSizeParse)
	}
	if sec.HasKey("maxfilesizedownload") {
		c.MaxFileSizeDownload = sec.Key("maxfilesizedownload").MustInt64(c.MaxFileSizeDownload)
	}
	if sec.HasKey("maxhttpredirects") {
		c.MaxHTTPRedirects = sec.Key("maxhttpredirects").MustInt(c.MaxHTTPRedirects)
	}
	if sec.HasKey("allowedschemes") {
		c.AllowedSchemes = splitList(sec.Key("allowedschemes").String())
	}
	if sec.HasKey("resultcachesize") {
		c.ResultCacheSize = sec.Key("resultcachesize").MustInt(c.ResultCacheSize)
	}
	if sec.HasKey("anchorcachesize") {
		c.AnchorCacheSize = sec.Key("anchorcachesize").MustInt(c.AnchorCacheSize)
	}
	return nil
}

func applyFiltering(cfg *Config, f *ini.File) error {
	sec := f.Section("filtering")
	if err := checkKeys(sec, "checkextern", "ignorewarnings", "ignore",
		"nofollow", "internlinks", "externlinks"); err != nil {
		return err
	}
	fl := &cfg.Filtering
	if sec.HasKey("checkextern") {
		fl.CheckExtern = sec.Key("checkextern").MustBool(fl.CheckExtern)
	}
	if sec.HasKey("ignorewarnings") {
		fl.IgnoreWarnings = splitList(sec.Key("ignorewarnings").String())
	}
	var err error
	if fl.IgnoreURLs, err = appendPatterns(fl.IgnoreURLs, sec.Key("ignore").String(), false); err != nil {
		return err
	}
	if fl.NoFollowURLs, err = appendPatterns(fl.NoFollowURLs, sec.Key("nofollow").String(), false); err != nil {
		return err
	}
	if fl.InternLinks, err = appendPatterns(fl.InternLinks, sec.Key("internlinks").String(), false); err != nil {
		return err
	}
	if fl.ExternLinks, err = appendPatterns(fl.ExternLinks, sec.Key("externlinks").String(), true); err != nil {
		return err
	}
	return nil
}

func applyAuthentication(cfg *Config, f *ini.File) error {
	sec := f.Section("authentication")
	if err := checkKeys(sec, "entry", "loginurl", "loginuserfield",
		"loginpasswordfield", "loginextrafields"); err != nil {
		return err
	}
	a := &cfg.Authentication
	for _, line := range splitLines(sec.Key("entry").String()) {
		entry, err := parseAuthEntry(line)
		if err != nil {
			return err
		}
		a.Entries = append(a.Entries, entry)
	}
	if sec.HasKey("loginurl") {
		a.LoginURL = sec.Key("loginurl").String()
	}
	if sec.HasKey("loginuserfield") {
		a.LoginUserField = sec.Key("loginuserfield").String()
	}
	if sec.HasKey("loginpasswordfield") {
		a.LoginPasswordField = sec.Key("loginpasswordfield").String()
	}
	for _, line := range splitLines(sec.Key("loginextrafields").String()) {
		name, value, ok := strings.Cut(line, ":")
		if ok {
			a.LoginExtraFields[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return nil
}

// parseAuthEntry parses one "user[:password] pattern" line.
func parseAuthEntry(line string) (AuthEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return AuthEntry{}, fmt.Errorf("missing user or URL pattern in authentication data.")
	}
	user, password, _ := strings.Cut(fields[0], ":")
	pattern := strings.Join(fields[1:], " ")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return AuthEntry{}, fmt.Errorf("invalid authentication pattern %q: %w", pattern, err)
	}
	return AuthEntry{User: user, Password: password, Pattern: re}, nil
}

func applyOutput(cfg *Config, f *ini.File) error {
	sec := f.Section("output")
	if err := checkKeys(sec, "debug", "verbose", "quiet", "warnings",
		"status", "log", "fileoutput"); err != nil {
		return err
	}
	o := &cfg.Output
	if sec.HasKey("debug") {
		o.Debug = splitList(sec.Key("debug").String())
	}
	if sec.HasKey("verbose") {
		o.Verbose = sec.Key("verbose").MustBool(o.Verbose)
	}
	if sec.HasKey("quiet") {
		o.Quiet = sec.Key("quiet").MustBool(o.Quiet)
	}
	if sec.HasKey("warnings") {
		o.Warnings = sec.Key("warnings").MustBool(o.Warnings)
	}
	if sec.HasKey("status") {
		o.Status = sec.Key("status").MustBool(o.Status)
	}
	if sec.HasKey("log") {
		spec, err := ParseLoggerSpec(sec.Key("log").String())
		if err != nil {
			return err
		}
		o.Log = spec
	}
	for _, item := range splitList(sec.Key("fileoutput").String()) {
		spec, err := ParseLoggerSpec(item)
		if err != nil {
			return err
		}
		o.FileOutput = append(o.FileOutput, spec)
	}
	return nil
}

func applyLoggers(cfg *Config, f *ini.File) {
	for _, name := range LoggerTypes {
		if !hasSection(f, name) {
			continue
		}
		if cfg.Loggers[name] == nil {
			cfg.Loggers[name] = make(map[string]string)
		}
		for key, value := range f.Section(name).KeysHash() {
			cfg.Loggers[name][key] = value
		}
	}
}

// applyPlugins enables every plugin that has a config section of its
// own name and records the section options.
func applyPlugins(cfg *Config, f *ini.File) {
	for _, name := range PluginNames {
		if !hasSection(f, name) {
			continue
		}
		if !cfg.PluginEnabled(name) {
			cfg.Plugins.Enabled = append(cfg.Plugins.Enabled, name)
		}
		if cfg.Plugins.Options[name] == nil {
			cfg.Plugins.Options[name] = make(map[string]string)
		}
		for key, value := range f.Section(name).KeysHash() {
			cfg.Plugins.Options[name][key] = value
		}
	}
}

func hasSection(f *ini.File, name string) bool {
	for _, s := range f.SectionStrings() {
		if s == name {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func appendPatterns(dst []LinkPattern, s string, strict bool) ([]LinkPattern, error) {
	for _, line := range splitLines(s) {
		p, err := NewLinkPattern(line, strict)
		if err != nil {
			return nil, err
		}
		dst = append(dst, p)
	}
	return dst, nil
}

// ParseLoggerSpec parses "type[/encoding]" as given on the command
// line or in the output section.
func ParseLoggerSpec(s string) (LoggerSpec, error) {
	typ, encoding, _ := strings.Cut(s, "/")
	typ = strings.TrimSpace(strings.ToLower(typ))
	if !validLoggerType(typ) {
		return LoggerSpec{}, fmt.Errorf("unknown logger type %q", typ)
	}
	return LoggerSpec{Type: typ, Encoding: strings.TrimSpace(encoding)}, nil
}

func validLoggerType(typ string) bool {
	for _, t := range LoggerTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// LoggerTypes lists all registered output logger names.
var LoggerTypes = []string{
	"text", "html", "csv", "json", "gml", "dot", "xml", "gxml", "sql",
	"failures", "none", "mongodb",
}

// PluginNames lists all compiled-in plugin names.
var PluginNames = []string{
	"AnchorCheck", "CssSyntaxCheck", "SslCertCheck", "MarkdownCheck",
}

func applyEnvironment(cfg *Config) {
	if cfg.Checking.NNTPServer == "" {
		cfg.Checking.NNTPServer = os.Getenv("NNTP_SERVER")
	}
}
