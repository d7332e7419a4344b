package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"ytshorts/pkg/config"
	errs "ytshorts/pkg/errors"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/retry"
)

// Options configures the headless browser
type Options struct {
	BrowserPath string
	Headless    bool
	NoSandbox   bool
	DisableGPU  bool
	Width       int
	Height      int
}

// OptionsFromConfig converts the capture settings
func OptionsFromConfig(cfg config.CaptureConfig) Options {
	return Options{
		BrowserPath: cfg.BrowserPath,
		Headless:    cfg.Headless,
		NoSandbox:   cfg.NoSandbox,
		DisableGPU:  cfg.DisableGPU,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}
}

// allocatorOptions builds the Chrome command line flags
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	alloc := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	alloc = append(alloc, chromedp.Flag("headless", opts.Headless))
	if opts.NoSandbox {
		alloc = append(alloc, chromedp.NoSandbox)
	}
	if opts.DisableGPU {
		alloc = append(alloc, chromedp.DisableGPU)
	}
	if opts.Width > 0 && opts.Height > 0 {
		alloc = append(alloc, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.BrowserPath != "" {
		alloc = append(alloc, chromedp.ExecPath(opts.BrowserPath))
	}
	return alloc
}

// Session is one browser process with a single tab
type Session struct {
	opts        Options
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      logger.Logger
	closeOnce   sync.Once
}

// New starts a browser. The process lives until Close or until ctx ends.
func New(ctx context.Context, opts Options, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "browser")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:        opts,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      log,
	}

	// The first Run launches the process.
	var actions []chromedp.Action
	if opts.Width > 0 && opts.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		s.Close()
		return nil, errs.Wrap(errs.ErrorTypeBrowser, err, "failed to start browser")
	}

	log.InfoWithFields("Browser started", map[string]interface{}{
		"headless": opts.Headless,
		"width":    opts.Width,
		"height":   opts.Height,
	})
	return s, nil
}

// Navigate loads url in the tab
func (s *Session) Navigate(url string) error {
	s.logger.DebugWithFields("Navigating", map[string]interface{}{"url": url})
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, err, "failed to load %s", url)
	}
	return nil
}

// Warmup waits d so the page's animation is running before capture
func (s *Session) Warmup(d time.Duration) error {
	return retry.Wait(s.ctx, d)
}

// Screenshot captures the viewport as PNG
func (s *Session) Screenshot() ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(s.ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeBrowser, err, "failed to capture screenshot")
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(s.ctx); cerr != nil && s.ctx.Err() == nil {
			err = errs.Wrap(errs.ErrorTypeBrowser, cerr, "failed to close browser")
		}
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug("Browser closed")
	})
	return err
}
