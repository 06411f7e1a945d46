package checker

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/linkchecker/linkchecker/internal/config"
)

// Session is the HTTP client a worker uses for all its requests.
// Redirects are never followed automatically so each hop can be
// classified and logged; compression is negotiated but decompressed by
// hand so the downloaded byte count stays accurate.
type Session struct {
	client *http.Client
	cfg    *config.Config
	logger *slog.Logger
}

// NewSession builds a session over the shared cookie jar. Proxies come
// from the environment (http_proxy, https_proxy, no_proxy).
func NewSession(cfg *config.Config, jar http.CookieJar, logger *slog.Logger) *Session {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Checking.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.Checking.SSLVerify,
		},
		DisableCompression: true,
	}
	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Checking.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &Session{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "session"),
	}
}

// Request carries the per-request extras of a session call.
type Request struct {
	Referer  string
	User     string
	Password string
}

// Get performs a single GET without following redirects. The caller
// owns the response body.
func (s *Session) Get(ctx context.Context, rawurl string, extra Request) (*http.Response, error) {
	return s.do(ctx, http.MethodGet, rawurl, nil, extra)
}

// PostForm submits form values, used by the login step.
func (s *Session) PostForm(ctx context.Context, rawurl string, form io.Reader, extra Request) (*http.Response, error) {
	return s.do(ctx, http.MethodPost, rawurl, form, extra)
}

func (s *Session) do(ctx context.Context, method, rawurl string, body io.Reader, extra Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.Checking.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if extra.Referer != "" {
		req.Header.Set("Referer", extra.Referer)
	}
	if extra.User != "" {
		req.SetBasicAuth(extra.User, extra.Password)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("request complete",
		"method", method,
		"url", rawurl,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

// Jar exposes the shared cookie jar.
func (s *Session) Jar() http.CookieJar {
	return s.client.Jar
}

// Close releases idle connections.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

// decompressedReader wraps the body with the decoder matching the
// Content-Encoding header. Handles gzip, deflate and brotli.
func decompressedReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
