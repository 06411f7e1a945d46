package plugin

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/parser"
)

// validatorURL is the W3C CSS validation service.
const validatorURL = "https://jigsaw.w3.org/css-validator/validator"

// CssSyntaxCheck sends stylesheet URLs to the W3C CSS validator. The
// service asks for at most one request every two seconds, which the
// limiter enforces across all workers.
type CssSyntaxCheck struct {
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewCssSyntaxCheck creates the plugin with its own throttled client.
func NewCssSyntaxCheck(userAgent string) *CssSyntaxCheck {
	return &CssSyntaxCheck{
		userAgent: userAgent,
		client:    &http.Client{Timeout: 60 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func (p *CssSyntaxCheck) Name() string { return "CssSyntaxCheck" }

func (p *CssSyntaxCheck) Description() string {
	return "Check the syntax of CSS stylesheets with the W3C validator."
}

// CheckContent submits css documents to the validator and turns an
// Invalid verdict into a warning.
func (p *CssSyntaxCheck) CheckContent(ctx context.Context, u *checker.URL) {
	if parser.ContentMimetypes[strings.ToLower(u.ContentType)] != "css" {
		return
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	query := url.Values{}
	query.Set("uri", u.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		validatorURL+"?"+query.Encode(), nil)
	if err != nil {
		return
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		u.AddWarning(checker.WarnURLErrorGettingContent,
			"Could not validate CSS: %s", err)
		return
	}
	defer resp.Body.Close()
	status := resp.Header.Get("X-W3C-Validator-Status")
	if status == "Invalid" {
		errors := resp.Header.Get("X-W3C-Validator-Errors")
		if errors == "" {
			errors = "unknown number of"
		}
		u.AddWarning(checker.WarnSyntaxCSS,
			"W3C validator found %s CSS syntax errors.", errors)
	}
}
