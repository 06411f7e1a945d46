// Command linkchecker checks websites for broken links.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
	"github.com/linkchecker/linkchecker/internal/logger"
	"github.com/linkchecker/linkchecker/internal/plugin"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// Exit codes: 0 all fine, 1 errors or printed warnings, 2 usage or
// internal error.
const (
	exitOK       = 0
	exitProblems = 1
	exitUsage    = 2
)

var (
	flagConfig      []string
	flagThreads     int
	flagRecursion   int
	flagTimeout     time.Duration
	flagVersion     bool
	flagListPlugins bool
	flagStdin       bool
	flagDebug       []string
	flagFileOutput  []string
	flagNoStatus    bool
	flagNoWarnings  bool
	flagOutput      string
	flagQuiet       bool
	flagVerbose     bool
	flagCookieFile  string
	flagNoRobots    bool
	flagCheckExtern bool
	flagIgnoreURLs  []string
	flagNoFollow    []string
	flagNNTPServer  string
	flagUser        string
	flagPassword    bool
	flagUserAgent   string
)

func main() {
	os.Exit(run())
}

func run() int {
	exitCode := exitOK
	cmd := &cobra.Command{
		Use:           "linkchecker [flags] URL...",
		Short:         "Check websites for broken links",
		Long:          "LinkChecker checks links in web documents and full websites.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			exitCode, err = runCheck(cmd, args)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVarP(&flagConfig, "config", "f", nil, "use FILENAME as configuration file")
	flags.IntVarP(&flagThreads, "threads", "t", 0, "generate no more than the given number of threads")
	flags.IntVarP(&flagRecursion, "recursion-level", "r", 0, "check recursively all links up to given depth")
	flags.DurationVar(&flagTimeout, "timeout", 0, "timeout for connection attempts")
	flags.BoolVarP(&flagVersion, "version", "V", false, "print version and exit")
	flags.BoolVar(&flagListPlugins, "list-plugins", false, "print available check plugins and exit")
	flags.BoolVar(&flagStdin, "stdin", false, "read list of white-space separated URLs from stdin")
	flags.StringArrayVarP(&flagDebug, "debug", "D", nil, "print debugging output for the given logger")
	flags.StringArrayVarP(&flagFileOutput, "file-output", "F", nil, "output to a file TYPE[/ENCODING[/FILENAME]]")
	flags.BoolVar(&flagNoStatus, "no-status", false, "do not print check status messages")
	flags.BoolVar(&flagNoWarnings, "no-warnings", false, "do not log warnings")
	flags.StringVarP(&flagOutput, "output", "o", "", "output type TYPE[/ENCODING]")
	flags.BoolVarP(&flagQuiet, "quiet", "q", false, "quiet operation, same as -o none")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "log all checked URLs")
	flags.StringVar(&flagCookieFile, "cookiefile", "", "read a file with initial cookie data")
	flags.BoolVar(&flagNoRobots, "no-robots", false, "disable robots.txt checks")
	flags.BoolVar(&flagCheckExtern, "check-extern", false, "check external URLs")
	flags.StringArrayVar(&flagIgnoreURLs, "ignore-url", nil, "only check syntax of URLs matching the given regex")
	flags.StringArrayVar(&flagNoFollow, "no-follow-url", nil, "check but do not recurse into URLs matching the given regex")
	flags.StringVarP(&flagNNTPServer, "nntp-server", "N", "", "specify an NNTP server for news: links")
	flags.StringVarP(&flagUser, "user", "u", "", "username for HTTP and FTP authorization")
	flags.BoolVarP(&flagPassword, "password", "p", false, "read a password from console")
	flags.StringVar(&flagUserAgent, "user-agent", "", "specify the User-Agent header")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "linkchecker: %s\n", err)
		if exitCode == exitOK {
			exitCode = exitUsage
		}
	}
	return exitCode
}

// bindEnvironment reads flag values through viper so that every flag
// can also be set as LINKCHECKER_<NAME> in the environment.
func bindEnvironment(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("linkchecker")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.BindPFlags(cmd.Flags())
	return v
}

// changed reports whether a flag was given explicitly or set through
// the environment.
func changed(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) {
		return true
	}
	env := "LINKCHECKER_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return os.Getenv(env) != ""
}

func runCheck(cmd *cobra.Command, args []string) (int, error) {
	if flagVersion {
		fmt.Printf("LinkChecker %s\n", config.Version)
		return exitOK, nil
	}
	if flagListPlugins {
		for _, info := range plugin.Available() {
			fmt.Printf("%s\n%s\n\n", info.Name, strutil.Indent(strutil.Wrap(info.Description, 72), "  "))
		}
		return exitOK, nil
	}

	v := bindEnvironment(cmd)
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return exitUsage, err
	}
	if err := applyFlags(cmd, v, cfg); err != nil {
		return exitUsage, err
	}

	seeds := append([]string(nil), args...)
	if flagStdin {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Split(bufio.ScanWords)
		for scanner.Scan() {
			seeds = append(seeds, scanner.Text())
		}
	}
	if len(seeds) == 0 {
		cmd.Usage()
		return exitUsage, fmt.Errorf("no URLs given to check")
	}

	primary, fileLoggers, err := buildLoggers(cfg)
	if err != nil {
		return exitUsage, err
	}
	fanout := logger.NewFanout(cfg, append([]logger.Logger{primary}, fileLoggers...)...)

	agg, err := engine.NewAggregate(cfg, fanout, newLogger(cfg))
	if err != nil {
		return exitUsage, err
	}
	for _, seed := range seeds {
		if err := agg.AddSeed(seed); err != nil {
			return exitUsage, err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		agg.Abort()
	}()

	if err := agg.Start(ctx); err != nil {
		agg.Finish()
		return exitUsage, err
	}
	agg.Wait(ctx)
	agg.Finish()

	if fanout.ErrorsLogged() > 0 || fanout.WarningsLogged() > 0 {
		return exitProblems, nil
	}
	return exitOK, nil
}

// applyFlags copies explicitly set flags and environment values over
// the loaded configuration.
func applyFlags(cmd *cobra.Command, v *viper.Viper, cfg *config.Config) error {
	if changed(cmd, "threads") {
		cfg.Checking.Threads = v.GetInt("threads")
	}
	if changed(cmd, "recursion-level") {
		cfg.Checking.RecursionLevel = v.GetInt("recursion-level")
	}
	if changed(cmd, "timeout") {
		cfg.Checking.Timeout = v.GetDuration("timeout")
	}
	if changed(cmd, "cookiefile") {
		cfg.Checking.CookieFile = v.GetString("cookiefile")
	}
	if changed(cmd, "nntp-server") {
		cfg.Checking.NNTPServer = v.GetString("nntp-server")
	}
	if changed(cmd, "user-agent") {
		cfg.Checking.UserAgent = v.GetString("user-agent")
	}
	if v.GetBool("no-robots") {
		cfg.Checking.RobotsTxt = false
	}
	if v.GetBool("check-extern") {
		cfg.Filtering.CheckExtern = true
	}
	for _, raw := range flagIgnoreURLs {
		p, err := config.NewLinkPattern(raw, false)
		if err != nil {
			return err
		}
		cfg.Filtering.IgnoreURLs = append(cfg.Filtering.IgnoreURLs, p)
	}
	for _, raw := range flagNoFollow {
		p, err := config.NewLinkPattern(raw, false)
		if err != nil {
			return err
		}
		cfg.Filtering.NoFollowURLs = append(cfg.Filtering.NoFollowURLs, p)
	}
	if v.GetBool("verbose") {
		cfg.Output.Verbose = true
	}
	if v.GetBool("no-warnings") {
		cfg.Output.Warnings = false
	}
	if v.GetBool("no-status") {
		cfg.Output.Status = false
	}
	if v.GetBool("quiet") {
		cfg.Output.Quiet = true
	}
	if len(flagDebug) > 0 {
		cfg.Output.Debug = flagDebug
	}
	if flagUser != "" {
		password := ""
		if flagPassword {
			var err error
			password, err = readPassword()
			if err != nil {
				return err
			}
		}
		cfg.Authentication.Entries = append(cfg.Authentication.Entries, config.AuthEntry{
			User:     flagUser,
			Password: password,
			Pattern:  regexp.MustCompile("^.*$"),
		})
	}
	return nil
}

// readPassword prompts for a password without echoing when stdin is a
// terminal.
func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(raw), err
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

// buildLoggers assembles the primary logger and the -F file loggers.
func buildLoggers(cfg *config.Config) (logger.Logger, []logger.Logger, error) {
	spec := cfg.Output.Log
	if flagOutput != "" {
		var err error
		spec, err = config.ParseLoggerSpec(flagOutput)
		if err != nil {
			return nil, nil, loggerTypeError(flagOutput, "--output")
		}
	}
	if flagQuiet || cfg.Output.Quiet {
		spec = config.LoggerSpec{Type: "none"}
	}
	primary, err := logger.New(spec, cfg, os.Stdout)
	if err != nil {
		return nil, nil, err
	}

	fileSpecs := append([]config.LoggerSpec(nil), cfg.Output.FileOutput...)
	for _, raw := range flagFileOutput {
		spec, err := parseFileOutput(raw)
		if err != nil {
			return nil, nil, err
		}
		fileSpecs = append(fileSpecs, spec)
	}
	var fileLoggers []logger.Logger
	for _, spec := range fileSpecs {
		l, err := logger.New(spec, cfg, nil)
		if err != nil {
			return nil, nil, err
		}
		fileLoggers = append(fileLoggers, l)
	}
	return primary, fileLoggers, nil
}

// parseFileOutput parses a -F argument of the form
// TYPE[/ENCODING[/FILENAME]].
func parseFileOutput(raw string) (config.LoggerSpec, error) {
	parts := strings.SplitN(raw, "/", 3)
	spec, err := config.ParseLoggerSpec(parts[0])
	if err != nil {
		return config.LoggerSpec{}, loggerTypeError(raw, "--file-output")
	}
	if len(parts) > 1 {
		spec.Encoding = parts[1]
	}
	if len(parts) > 2 {
		spec.Filename = parts[2]
	}
	return spec, nil
}

func loggerTypeError(raw, option string) error {
	typ, _, _ := strings.Cut(raw, "/")
	return fmt.Errorf("Unknown logger type %q in %q for option %s", typ, raw, option)
}

// newLogger builds the slog logger behind the crawl components. Debug
// output is switched on by -D.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if len(cfg.Output.Debug) > 0 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
