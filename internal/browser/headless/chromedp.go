// Package headless drives a real Chrome over the DevTools protocol via
// chromedp, implementing the browser capability the robot navigates with.
package headless

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/browser"
)

// lookupInterval is the cadence between element re-scans inside a wait budget.
const lookupInterval = 250 * time.Millisecond

// Config controls the Chrome session.
type Config struct {
	UserAgent  string
	Headless   bool
	NavTimeout time.Duration
	// DriverLog receives Chrome's combined stdout/stderr when set, so a
	// driver log file exists for the finalizer to upload.
	DriverLog string
}

// Session is a live Chrome session. The whole run shares one tab: the EDGAR
// navigation chain depends on page state carrying over between steps.
type Session struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	navTimeout      time.Duration
	userAgent       string
	driverLog       *os.File

	closeOnce sync.Once
	closeErr  error
}

var _ browser.Session = (*Session)(nil)

// New launches Chrome and warms the session up.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	var driverLog *os.File
	if cfg.DriverLog != "" {
		f, err := os.OpenFile(cfg.DriverLog, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open driver log: %w", err)
		}
		driverLog = f
		opts = append(opts, chromedp.CombinedOutput(f))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		if driverLog != nil {
			_ = driverLog.Close()
		}
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Session{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		navTimeout:      cfg.NavTimeout,
		userAgent:       cfg.UserAgent,
		driverLog:       driverLog,
	}, nil
}

// Navigate loads url in the session tab and waits for the document body.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(s.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := s.run(ctx, tasks); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// FindByTagAndAttr re-scans the page for elements of tag whose attr value
// contains match until one appears or the wait budget expires.
func (s *Session) FindByTagAndAttr(ctx context.Context, tag, attr, match string, wait time.Duration) ([]browser.Element, error) {
	selector := fmt.Sprintf(`%s[%s*=%q]`, tag, attr, match)
	deadline := time.Now().Add(wait)
	for {
		var nodes []*cdp.Node
		err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", selector, err)
		}
		if len(nodes) > 0 {
			elements := make([]browser.Element, 0, len(nodes))
			for _, node := range nodes {
				elements = append(elements, &element{session: s, xpath: node.FullXPath()})
			}
			return elements, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%q after %v: %w", selector, wait, browser.ErrElementNotFound)
		}
		if err := sleepContext(ctx, lookupInterval); err != nil {
			return nil, fmt.Errorf("lookup %q: %w", selector, err)
		}
	}
}

// SetDownloadDir routes subsequent downloads into dir via Browser.setDownloadBehavior.
func (s *Session) SetDownloadDir(ctx context.Context, dir string) error {
	action := cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir)
	if err := s.run(ctx, action); err != nil {
		return fmt.Errorf("set download dir %s: %w", dir, err)
	}
	return nil
}

// Close tears down the browser and allocator. chromedp.Cancel waits for the
// Chrome process to exit, so the driver log is complete before it is closed.
// Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil {
			s.closeErr = fmt.Errorf("cancel browser: %w", err)
		}
		s.browserCancel()
		s.allocatorCancel()
		if s.driverLog != nil {
			if err := s.driverLog.Close(); err != nil && s.closeErr == nil {
				s.closeErr = fmt.Errorf("close driver log: %w", err)
			}
		}
		if s.logger != nil {
			s.logger.Debug("browser session closed")
		}
	})
	return s.closeErr
}

// run executes actions against the session tab, bounded by the navigation
// timeout and the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// element addresses a located node by its full XPath. EDGAR pages are static
// enough between steps for the path to stay valid.
type element struct {
	session *Session
	xpath   string
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.session.run(ctx, chromedp.Clear(e.xpath, chromedp.BySearch)); err != nil {
		return fmt.Errorf("clear %s: %w", e.xpath, err)
	}
	return nil
}

func (e *element) SendKeysAndSubmit(ctx context.Context, text string) error {
	if err := e.session.run(ctx, chromedp.SendKeys(e.xpath, text+kb.Enter, chromedp.BySearch)); err != nil {
		return fmt.Errorf("send keys %s: %w", e.xpath, err)
	}
	return nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.session.run(ctx, chromedp.Click(e.xpath, chromedp.BySearch)); err != nil {
		return fmt.Errorf("click %s: %w", e.xpath, err)
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	var out string
	if err := e.session.run(ctx, chromedp.Text(e.xpath, &out, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("text %s: %w", e.xpath, err)
	}
	return out, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
