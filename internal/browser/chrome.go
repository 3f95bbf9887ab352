package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
	"github.com/desertthunder/wavecrawl/internal/shared"
)

const (
	defaultNavigateTimeout = 30 * time.Second
	defaultActionTimeout   = 10 * time.Second
	userAgent              = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// ChromeOpts configures [ChromeRenderer].
type ChromeOpts struct {
	Headless        bool
	ExecPath        string        // Chrome binary; empty lets chromedp find one
	NavigateTimeout time.Duration // per navigation (default: 30s)
	ActionTimeout   time.Duration // per lookup or click (default: 10s)
	Logger          *log.Logger
}

// ChromeRenderer launches a headless Chrome per session via chromedp.
type ChromeRenderer struct {
	opts ChromeOpts
}

// NewChromeRenderer creates a renderer with opts, filling in default timeouts.
func NewChromeRenderer(opts ChromeOpts) *ChromeRenderer {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = defaultNavigateTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &ChromeRenderer{opts: opts}
}

// Open starts a browser and a single tab.
func (r *ChromeRenderer) Open(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.opts.Headless),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	if r.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithDebugf(r.opts.Logger.Debugf))

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("%w: failed to start browser: %v", shared.ErrServiceUnavailable, err)
	}

	return &chromeSession{
		tab:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        r.opts,
	}, nil
}

type chromeSession struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        ChromeOpts
}

// bound derives a tab context that ends at timeout or when ctx is done, whichever is first.
func (s *chromeSession) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.bound(ctx, s.opts.NavigateTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrNavigation, url, err)
	}
	return nil
}

func (s *chromeSession) FindText(ctx context.Context, selector string) (string, bool) {
	return s.lookup(ctx, selector, "")
}

func (s *chromeSession) FindAttribute(ctx context.Context, selector, attr string) (string, bool) {
	return s.lookup(ctx, selector, attr)
}

func (s *chromeSession) lookup(ctx context.Context, selector, attr string) (string, bool) {
	runCtx, cancel := s.bound(ctx, s.opts.ActionTimeout)
	defer cancel()

	var res lookup
	if err := chromedp.Run(runCtx, chromedp.Evaluate(lookupScript(selector, attr), &res)); err != nil {
		s.opts.Logger.Debug("lookup failed", "selector", selector, "error", err)
		return "", false
	}
	if !res.Found {
		return "", false
	}
	return strings.TrimSpace(res.Value), true
}

func (s *chromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	runCtx, cancel := s.bound(ctx, timeout)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.WaitVisible(selector, queryOption(selector))) == nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	runCtx, cancel := s.bound(ctx, s.opts.ActionTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Click(selector, queryOption(selector), chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) ScrollToFraction(ctx context.Context, fraction float64) error {
	runCtx, cancel := s.bound(ctx, s.opts.ActionTimeout)
	defer cancel()

	var ok bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(scrollScript(fraction), &ok)); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

// Close shuts the tab down and then the browser process.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.tab)
	s.cancelTab()
	s.cancelAlloc()
	return err
}

func queryOption(selector string) chromedp.QueryOption {
	if IsXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
