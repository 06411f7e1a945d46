package plugin

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/strutil"
)

// defaultCertWarnDays is how close to expiry a certificate may get
// before a warning is issued.
const defaultCertWarnDays = 14

// SslCertCheck warns about expired or soon to expire server
// certificates on internal https URLs. Each host is inspected once.
type SslCertCheck struct {
	warnDays  int
	sslVerify bool

	mu   sync.Mutex
	seen map[string]bool
}

// NewSslCertCheck reads the sslcertwarndays option, falling back to
// the default on absent or unparseable values.
func NewSslCertCheck(options map[string]string, sslVerify bool) *SslCertCheck {
	warnDays := defaultCertWarnDays
	if raw, ok := options["sslcertwarndays"]; ok {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			warnDays = days
		}
	}
	return &SslCertCheck{
		warnDays:  warnDays,
		sslVerify: sslVerify,
		seen:      make(map[string]bool),
	}
}

func (p *SslCertCheck) Name() string { return "SslCertCheck" }

func (p *SslCertCheck) Description() string {
	return "Check SSL certificates of https links for expiration."
}

// CheckConnection inspects the peer certificate of the final hop.
func (p *SslCertCheck) CheckConnection(ctx context.Context, u *checker.URL) {
	if u.Scheme != "https" || u.Extern {
		return
	}
	p.mu.Lock()
	if p.seen[u.Host] {
		p.mu.Unlock()
		return
	}
	p.seen[u.Host] = true
	p.mu.Unlock()

	if !p.sslVerify {
		u.AddWarning(checker.WarnSSLVerifyDisabled,
			"SSL certificate verification is disabled.")
	}
	if u.TLS == nil || len(u.TLS.PeerCertificates) == 0 {
		return
	}
	cert := u.TLS.PeerCertificates[0]
	now := time.Now()
	if now.After(cert.NotAfter) {
		u.AddWarning(checker.WarnSSLCertExpired,
			"SSL certificate is expired on %s.", strutil.Time(cert.NotAfter))
		return
	}
	remaining := cert.NotAfter.Sub(now)
	if remaining < time.Duration(p.warnDays)*24*time.Hour {
		u.AddWarning(checker.WarnSSLCertExpiring,
			"SSL certificate expires on %s and is only %s valid.",
			strutil.Time(cert.NotAfter), strutil.DurationLong(remaining))
	}
}
