// Package browser manages headless Chrome sessions for listing fetches:
// launch and connect via Rod, apply a stealth identity per session,
// render pages to parseable HTML, and flag block interstitials.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"
)

// ErrSessionInit wraps failures to launch Chrome or prepare a page.
var ErrSessionInit = errors.New("browser: session init failed")

// ErrNavigationTimeout wraps navigations that exceeded the deadline.
var ErrNavigationTimeout = errors.New("browser: navigation timeout")

// ErrNavigationBlocked means the site served an interstitial instead of
// the listing. Retrying immediately makes it worse; callers back off.
var ErrNavigationBlocked = errors.New("browser: navigation blocked")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headful disables headless mode. Some interstitials only clear in a
	// real window.
	Headful bool

	// NavTimeout bounds a single navigation plus render. Default: 30s.
	NavTimeout time.Duration

	// SettleTimeout is how long to wait for a challenge interstitial to
	// clear itself before giving up on the page. Default: 5s.
	SettleTimeout time.Duration

	// ReuseLimit is how many sessions share one fingerprint before the
	// rotator switches identity. Default: 8.
	ReuseLimit int

	// Fingerprints overrides the identity pool. Default: DefaultFingerprints.
	Fingerprints []Fingerprint

	// BlockSignatures overrides the interstitial phrases. Default:
	// DefaultBlockSignatures.
	BlockSignatures []string

	// Rand seeds gesture and rotation randomness in tests.
	Rand   *rand.Rand
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 5 * time.Second
	}
	if c.ReuseLimit <= 0 {
		c.ReuseLimit = 8
	}
	if len(c.Fingerprints) == 0 {
		c.Fingerprints = DefaultFingerprints()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process and hands out stealth sessions.
type Manager struct {
	cfg     Config
	blocks  *BlockDetector
	mu      sync.Mutex
	rot     *rotator
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start before NewSession.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:    cfg,
		blocks: NewBlockDetector(cfg.BlockSignatures),
		rot:    newRotator(cfg.Fingerprints, cfg.ReuseLimit, cfg.Rand),
	}
}

// Start launches Chrome (or connects to a remote instance).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: manager is closed", ErrSessionInit)
	}
	if m.browser != nil {
		return nil
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		m.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(!m.cfg.Headful).
			Set("disable-blink-features", "AutomationControlled").
			Set("lang", "pt-BR")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("%w: launch: %v", ErrSessionInit, err)
		}
		wsURL = u
		m.lnch = l
		m.cfg.Logger.Info("browser: launched local chrome", "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("%w: connect: %v", ErrSessionInit, err)
	}
	m.browser = b
	return nil
}

// Close shuts down Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}

// Session is one stealth page carrying a fixed fingerprint.
type Session struct {
	page *rod.Page
	fp   Fingerprint
	mgr  *Manager
}

// NewSession opens a stealth page and applies the next fingerprint from
// the rotator: user agent, Accept-Language, viewport, and timezone.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	b := m.browser
	fp := m.rot.next()
	m.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("%w: manager not started", ErrSessionInit)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("%w: create page: %v", ErrSessionInit, err)
	}
	page = page.Context(ctx)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      fp.UserAgent,
		AcceptLanguage: fp.Locale,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("%w: user agent override: %v", ErrSessionInit, err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  fp.Width,
		Height: fp.Height,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("%w: viewport override: %v", ErrSessionInit, err)
	}
	err = proto.EmulationSetTimezoneOverride{TimezoneID: fp.Timezone}.Call(page)
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("%w: timezone override: %v", ErrSessionInit, err)
	}

	m.cfg.Logger.Debug("browser: session ready",
		"viewport", fmt.Sprintf("%dx%d", fp.Width, fp.Height))
	return &Session{page: page, fp: fp, mgr: m}, nil
}

// Fingerprint returns the identity this session presents.
func (s *Session) Fingerprint() Fingerprint { return s.fp }

// Navigate loads a URL, waits for the render, and returns the parsed
// document. Block interstitials surface as ErrNavigationBlocked.
func (s *Session) Navigate(ctx context.Context, pageURL string) (*html.Node, error) {
	navCtx, cancel := context.WithTimeout(ctx, s.mgr.cfg.NavTimeout)
	defer cancel()
	page := s.page.Context(navCtx)

	if err := page.Navigate(pageURL); err != nil {
		return nil, navErr(pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		// Slow third-party resources stall the load event; the listing
		// markup is usually in place anyway, so render what we have.
		s.mgr.cfg.Logger.Warn("browser: wait load", "url", pageURL, "error", err)
	}

	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, navErr(pageURL, err)
	}
	doc := res.Value.Str()

	if sig, blocked := s.mgr.blocks.Blocked(doc); blocked {
		// Some interstitials are JS challenges that clear on their own.
		// Give the page one bounded settle window before declaring it dead.
		s.mgr.cfg.Logger.Warn("browser: challenge page, waiting",
			"url", pageURL, "signature", sig)
		select {
		case <-navCtx.Done():
			return nil, navErr(pageURL, navCtx.Err())
		case <-time.After(s.mgr.cfg.SettleTimeout):
		}
		res, err = page.Eval(`() => document.documentElement.outerHTML`)
		if err != nil {
			return nil, navErr(pageURL, err)
		}
		doc = res.Value.Str()
		if sig, blocked = s.mgr.blocks.Blocked(doc); blocked {
			return nil, fmt.Errorf("%w: %s (%s)", ErrNavigationBlocked, pageURL, sig)
		}
	}

	node, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("browser: parse %s: %w", pageURL, err)
	}
	return node, nil
}

func navErr(pageURL string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrNavigationTimeout, pageURL)
	}
	return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
}

// HumanInteract plays a randomized move/scroll/dwell sequence on the
// page. Call between navigation and extraction.
func (s *Session) HumanInteract(ctx context.Context) error {
	for _, g := range planGestures(s.mgr.cfg.Rand, s.fp.Width, s.fp.Height) {
		switch g.kind {
		case gestureMove:
			if err := s.page.Mouse.MoveLinear(proto.NewPoint(g.x, g.y), 8); err != nil {
				return fmt.Errorf("browser: mouse move: %w", err)
			}
		case gestureScroll:
			if err := s.page.Mouse.Scroll(0, g.y, 4); err != nil {
				return fmt.Errorf("browser: scroll: %w", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.pause):
		}
	}
	return nil
}

// Close releases the page. The fingerprint slot stays live for the next
// session until the rotator retires it.
func (s *Session) Close() error {
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}
