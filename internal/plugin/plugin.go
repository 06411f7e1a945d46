// Package plugin holds the optional per-URL checks that run on top of
// the scheme checkers. Connection plugins see the URL right after the
// connection succeeded, content plugins see it once the body has been
// downloaded.
package plugin

import (
	"context"
	"log/slog"

	"github.com/linkchecker/linkchecker/internal/cache"
	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
)

// Plugin is the base interface of all plugins.
type Plugin interface {
	Name() string
	Description() string
}

// PreConnectPlugin inspects a built URL before any connection is
// made. It may add info or warnings; returning false cancels the
// check, in which case the plugin should have set a result on the URL.
type PreConnectPlugin interface {
	Plugin
	CheckPreConnect(ctx context.Context, u *checker.URL) bool
}

// ConnectionPlugin inspects a URL after the transport-level check, for
// example its TLS state. It may add warnings but never changes
// validity.
type ConnectionPlugin interface {
	Plugin
	CheckConnection(ctx context.Context, u *checker.URL)
}

// ContentPlugin inspects the downloaded document body.
type ContentPlugin interface {
	Plugin
	CheckContent(ctx context.Context, u *checker.URL)
}

// Manager owns the plugins enabled by the configuration and runs them
// at the three hook points.
type Manager struct {
	preConnect []PreConnectPlugin
	connection []ConnectionPlugin
	content    []ContentPlugin
	logger     *slog.Logger
}

// NewManager instantiates every plugin the configuration enables.
func NewManager(cfg *config.Config, anchors *cache.AnchorCache, logger *slog.Logger) *Manager {
	m := &Manager{logger: logger.With("component", "plugins")}
	if cfg.PluginEnabled("AnchorCheck") {
		m.add(NewAnchorCheck(anchors))
	}
	if cfg.PluginEnabled("SslCertCheck") {
		m.add(NewSslCertCheck(cfg.PluginOptions("SslCertCheck"), cfg.Checking.SSLVerify))
	}
	if cfg.PluginEnabled("CssSyntaxCheck") {
		m.add(NewCssSyntaxCheck(cfg.Checking.UserAgent))
	}
	if cfg.PluginEnabled("MarkdownCheck") {
		m.add(NewMarkdownCheck(cfg.PluginOptions("MarkdownCheck")))
	}
	return m
}

// add sorts a plugin into the hook lists it implements.
func (m *Manager) add(p Plugin) {
	if pc, ok := p.(PreConnectPlugin); ok {
		m.preConnect = append(m.preConnect, pc)
		m.logger.Debug("pre-connect plugin enabled", "name", p.Name())
	}
	if cp, ok := p.(ConnectionPlugin); ok {
		m.connection = append(m.connection, cp)
		m.logger.Debug("connection plugin enabled", "name", p.Name())
	}
	if cp, ok := p.(ContentPlugin); ok {
		m.content = append(m.content, cp)
		m.logger.Debug("content plugin enabled", "name", p.Name())
	}
}

// RunPreConnect runs the pre-connection plugins on u. It returns false
// when a plugin cancels the check; the remaining plugins are skipped.
func (m *Manager) RunPreConnect(ctx context.Context, u *checker.URL) bool {
	for _, p := range m.preConnect {
		if !p.CheckPreConnect(ctx, u) {
			m.logger.Debug("check cancelled by plugin", "name", p.Name(), "url", u.URL)
			return false
		}
	}
	return true
}

// RunConnection runs all connection plugins on u.
func (m *Manager) RunConnection(ctx context.Context, u *checker.URL) {
	for _, p := range m.connection {
		p.CheckConnection(ctx, u)
	}
}

// RunContent runs all content plugins on u.
func (m *Manager) RunContent(ctx context.Context, u *checker.URL) {
	for _, p := range m.content {
		p.CheckContent(ctx, u)
	}
}

// Info describes one available plugin for --list-plugins.
type Info struct {
	Name        string
	Description string
}

// Available lists every plugin this build knows about.
func Available() []Info {
	all := []Plugin{
		NewAnchorCheck(nil),
		NewSslCertCheck(nil, true),
		NewCssSyntaxCheck(""),
		NewMarkdownCheck(nil),
	}
	infos := make([]Info, 0, len(all))
	for _, p := range all {
		infos = append(infos, Info{Name: p.Name(), Description: p.Description()})
	}
	return infos
}
