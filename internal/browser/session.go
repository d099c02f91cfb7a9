package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

// RodSession is a Session backed by a Chromium process launched by rod.
type RodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
	logger   *slog.Logger

	mu     sync.Mutex
	tabs   map[*rodTab]struct{}
	closed bool
}

// NewRodSession launches Chromium and connects to it.
func NewRodSession(cfg config.BrowserConfig, logger *slog.Logger) (*RodSession, error) {
	s := &RodSession{
		cfg:    cfg,
		logger: logger.With("component", "browser"),
		tabs:   make(map[*rodTab]struct{}),
	}

	s.launcher = s.newLauncher()
	controlURL, err := s.launcher.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.launcher.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s.browser = b

	s.logger.Info("browser ready",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
	)
	return s, nil
}

func (s *RodSession) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(s.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if s.cfg.NoSandbox {
		l = l.Set("no-sandbox").Set("disable-setuid-sandbox")
	}
	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}
	if s.cfg.UserDataDir != "" {
		l = l.UserDataDir(s.cfg.UserDataDir)
	}
	if s.cfg.WindowSize != "" {
		l = l.Set("window-size", s.cfg.WindowSize)
	}
	return l
}

// Open creates a tab, navigates to url and waits for the load event.
func (s *RodSession) Open(ctx context.Context, url string) (Tab, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("browser session is closed")
	}
	s.mu.Unlock()

	page, err := s.newPage()
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	if s.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}); err != nil {
			s.logger.Warn("failed to set user agent", "error", err)
		}
	}

	if err := s.navigate(ctx, page, url); err != nil {
		_ = page.Close()
		return nil, &types.FetchError{URL: url, Err: err}
	}

	t := &rodTab{page: page, session: s}
	s.mu.Lock()
	s.tabs[t] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("tab opened", "url", url)
	return t, nil
}

func (s *RodSession) newPage() (*rod.Page, error) {
	if s.cfg.Stealth {
		return stealth.Page(s.browser)
	}
	return s.browser.Page(proto.TargetCreateTarget{})
}

func (s *RodSession) navigate(ctx context.Context, page *rod.Page, url string) error {
	p := page.Context(ctx)
	if s.cfg.PageLoadTimeout > 0 {
		p = p.Timeout(s.cfg.PageLoadTimeout)
		defer p.CancelTimeout()
	}
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (s *RodSession) forget(t *rodTab) {
	s.mu.Lock()
	delete(s.tabs, t)
	s.mu.Unlock()
}

// Close closes every open tab and quits the browser. It is safe to call
// more than once.
func (s *RodSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tabs := make([]*rodTab, 0, len(s.tabs))
	for t := range s.tabs {
		tabs = append(tabs, t)
	}
	s.tabs = map[*rodTab]struct{}{}
	s.mu.Unlock()

	for _, t := range tabs {
		_ = t.page.Close()
	}

	err := s.browser.Close()
	if err != nil {
		s.launcher.Kill()
	}
	// A caller-supplied profile directory is left in place.
	if s.cfg.UserDataDir == "" {
		s.launcher.Cleanup()
	}

	s.logger.Info("browser closed", "open_tabs", len(tabs))
	return err
}

// Available reports whether a Chromium binary can be found, either at bin
// or in rod's usual locations.
func Available(bin string) bool {
	if bin != "" {
		return true
	}
	_, ok := launcher.LookPath()
	return ok
}
