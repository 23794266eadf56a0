package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/monitoring"
)

// ErrSessionClosed is returned by OpenPage after Close
var ErrSessionClosed = errors.New("browser session closed")

// Config controls how the browser is launched
type Config struct {
	Bin       string
	Headless  bool
	NoSandbox bool
	Stealth   bool
	Proxy     string
}

// Session owns the browser process shared by all fetches
type Session struct {
	cfg     Config
	proxy   *ProxyConfig
	blocker *Blocker
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	closed   bool
}

var _ fetch.Session = (*Session)(nil)

// NewSession creates a session. The browser is not launched until Start or
// the first OpenPage. A nil blocker disables ad blocking for every page.
func NewSession(cfg Config, blocker *Blocker, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Session{
		cfg:     cfg,
		blocker: blocker,
		logger:  logger.Named("browser"),
	}

	if cfg.Proxy != "" {
		proxy, err := ParseProxy(cfg.Proxy)
		if err != nil {
			s.logger.Warn("ignoring unparseable proxy", zap.Error(err))
		} else {
			s.proxy = proxy
		}
	}
	return s
}

// WithMetrics adds metrics tracking to the session
func (s *Session) WithMetrics(metrics *monitoring.Metrics) *Session {
	s.metrics = metrics
	return s
}

// Start launches and connects to the browser if it is not running yet
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.browser != nil {
		return nil
	}

	// The browser outlives the request that happened to start it.
	l := s.newLauncher().Context(context.WithoutCancel(ctx))
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect to browser: %w", err)
	}

	s.launcher = l
	s.browser = browser
	s.logger.Info("browser started",
		zap.Bool("headless", s.cfg.Headless),
		zap.Bool("stealth", s.cfg.Stealth),
		zap.Bool("proxy", s.proxy != nil))
	return nil
}

func (s *Session) newLauncher() *launcher.Launcher {
	l := launcher.New().Headless(s.cfg.Headless)

	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}
	if s.cfg.NoSandbox {
		l = l.NoSandbox(true).
			Set("disable-setuid-sandbox").
			Set("disable-dev-shm-usage")
	}
	if s.proxy != nil {
		l = l.Proxy(s.proxy.Server)
	}

	return l.Set("disable-blink-features", "AutomationControlled").
		Set("disable-background-networking").
		Set("disable-extensions").
		Set("mute-audio").
		Set("no-first-run")
}

// Started reports whether the browser is running
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browser != nil
}

// OpenPage opens a fresh tab
func (s *Session) OpenPage(ctx context.Context, opts fetch.PageOptions) (fetch.Page, error) {
	s.mu.Lock()
	if err := s.startLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	browser := s.browser
	s.mu.Unlock()

	var (
		rp  *rod.Page
		err error
	)
	if s.cfg.Stealth {
		rp, err = stealth.Page(browser)
	} else {
		rp, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, classify("", fmt.Errorf("create page: %w", err))
	}

	page, err := newPage(rp, s.logger)
	if err != nil {
		_ = rp.Close()
		return nil, classify("", err)
	}

	ic := &interceptor{page: page, proxy: s.proxy}
	if opts.Adblock {
		ic.blocker = s.blocker
	}
	if s.metrics != nil {
		ic.onBlock = s.metrics.IncBlockedRequests
	}
	if err := ic.start(); err != nil {
		_ = page.Close()
		return nil, classify("", err)
	}

	return page, nil
}

// Close shuts the browser down. Later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.browser == nil {
		return nil
	}

	err := s.browser.Close()
	s.browser = nil
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
	s.logger.Info("browser stopped")
	return err
}
