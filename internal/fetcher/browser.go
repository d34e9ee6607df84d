package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// BrowserManager implements SessionProvider with a fresh headless Chromium
// per session via Rod.
type BrowserManager struct {
	cfg    *BrowserConfig
	logger *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// BrowserOption configures the BrowserManager.
type BrowserOption func(*BrowserManager)

// WithRand sets the randomness source used for user-agent selection.
func WithRand(rng *rand.Rand) BrowserOption {
	return func(bm *BrowserManager) { bm.rng = rng }
}

// NewBrowserManager creates a session provider for the given configuration.
func NewBrowserManager(cfg *BrowserConfig, logger *slog.Logger, opts ...BrowserOption) *BrowserManager {
	bm := &BrowserManager{
		cfg:    cfg,
		logger: logger.With("component", "browser"),
	}
	for _, opt := range opts {
		opt(bm)
	}
	if bm.rng == nil {
		bm.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return bm
}

// Acquire launches Chromium, opens a stealth page, and applies the user
// agent, viewport and fingerprint overrides.
func (bm *BrowserManager) Acquire(ctx context.Context) (Session, error) {
	start := time.Now()

	l := launcher.New().Headless(bm.cfg.Headless)
	for _, f := range bm.cfg.LaunchFlags() {
		if f.Value == "" {
			l = l.Set(flags.Flag(f.Name))
		} else {
			l = l.Set(flags.Flag(f.Name), f.Value)
		}
	}
	if bm.cfg.Bin != "" {
		l = l.Bin(bm.cfg.Bin)
	}

	controlURL, err := bm.launch(ctx, l)
	if err != nil {
		return nil, &types.AcquireError{Stage: "launch", Err: err}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		killLauncher(l)
		return nil, &types.AcquireError{Stage: "connect", Err: err}
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		killLauncher(l)
		return nil, &types.AcquireError{Stage: "page", Err: err}
	}

	ua := bm.pickUserAgent()
	if ua != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: bm.cfg.Language,
		})
		if err != nil {
			bm.logger.Warn("failed to set user agent", "error", err)
		}
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             bm.cfg.WindowWidth,
		Height:            bm.cfg.WindowHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		bm.logger.Warn("failed to set viewport", "error", err)
	}

	if _, err := page.EvalOnNewDocument(bm.cfg.StealthJS()); err != nil {
		bm.logger.Warn("failed to inject stealth script", "error", err)
	}

	bm.logger.Debug("browser session ready",
		"user_agent", ua,
		"duration", time.Since(start),
	)

	return &rodSession{
		page:        page,
		browser:     browser,
		launcher:    l,
		pageTimeout: bm.cfg.PageTimeout,
		logger:      bm.logger,
	}, nil
}

// launch starts the browser process, bounded by the launch timeout.
func (bm *BrowserManager) launch(ctx context.Context, l *launcher.Launcher) (string, error) {
	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		done <- result{u, err}
	}()

	timeout := bm.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.url, r.err
	case <-timer.C:
		killLauncher(l)
		return "", fmt.Errorf("browser did not start within %s", timeout)
	case <-ctx.Done():
		killLauncher(l)
		return "", ctx.Err()
	}
}

func (bm *BrowserManager) pickUserAgent() string {
	bm.rngMu.Lock()
	defer bm.rngMu.Unlock()
	return bm.cfg.PickUserAgent(bm.rng)
}

func killLauncher(l *launcher.Launcher) {
	l.Kill()
	l.Cleanup()
}

// rodSession is a Session backed by a single Rod page.
type rodSession struct {
	page        *rod.Page
	browser     *rod.Browser
	launcher    *launcher.Launcher
	pageTimeout time.Duration
	logger      *slog.Logger

	once       sync.Once
	releaseErr error
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.pageTimeout)
	if err := p.Navigate(url); err != nil {
		return mapTimeout(fmt.Errorf("navigate %s: %w", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return mapTimeout(fmt.Errorf("wait load %s: %w", url, err))
	}
	return nil
}

func (s *rodSession) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := s.page.Context(ctx).Timeout(timeout).Element(selector); err != nil {
		return mapTimeout(fmt.Errorf("wait for %q: %w", selector, err))
	}
	return nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (s *rodSession) ClickText(ctx context.Context, selector, text string) error {
	p := s.page.Context(ctx).Timeout(s.pageTimeout)

	el, err := p.ElementR(selector, regexp.QuoteMeta(text))
	if err != nil {
		return mapTimeout(fmt.Errorf("find %q containing %q: %w", selector, text, err))
	}

	wait := p.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", text, err)
	}
	wait()
	return nil
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// Release closes the page and browser and kills the Chromium process.
// Subsequent calls return the first result.
func (s *rodSession) Release() error {
	s.once.Do(func() {
		var errs []error
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		killLauncher(s.launcher)
		s.releaseErr = errors.Join(errs...)
		if s.releaseErr != nil {
			s.logger.Debug("browser release reported errors", "error", s.releaseErr)
		}
	})
	return s.releaseErr
}

// mapTimeout converts Rod deadline errors into types.ErrTimeout.
func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	return err
}
