package capture

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"ytshorts/pkg/browser"
	"ytshorts/pkg/config"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/noise"
	"ytshorts/pkg/page"
	"ytshorts/pkg/retry"
	"ytshorts/pkg/storage"
)

// Browser is the part of a browser session the capture run needs
type Browser interface {
	Navigate(url string) error
	Warmup(d time.Duration) error
	Screenshot() ([]byte, error)
	Close() error
}

// Opener starts a browser
type Opener func(ctx context.Context, opts browser.Options, log logger.Logger) (Browser, error)

// ChromeOpener starts headless Chrome via the browser package
func ChromeOpener(ctx context.Context, opts browser.Options, log logger.Logger) (Browser, error) {
	s, err := browser.New(ctx, opts, log)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Summary describes a finished capture run
type Summary struct {
	URL      string
	Frames   []string
	Duration time.Duration
}

// Runner loads the animation page in a browser and writes frames
type Runner struct {
	cfg    config.CaptureConfig
	open   Opener
	logger logger.Logger
}

// NewRunner creates a Runner. A nil opener uses ChromeOpener.
func NewRunner(cfg config.CaptureConfig, open Opener, log logger.Logger) *Runner {
	if open == nil {
		open = ChromeOpener
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Runner{cfg: cfg, open: open, logger: log.WithField("component", "capture")}
}

// Run writes the page (unless a URL is configured), opens the browser,
// waits for the warm-up, writes the frames and closes the browser. The
// browser is closed on every path.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	url := r.cfg.URL
	if url == "" {
		var err error
		url, err = page.WriteFile(r.cfg.HTMLPath, page.FromConfig(r.cfg))
		if err != nil {
			return nil, err
		}
		r.logger.DebugWithFields("Animation page written", map[string]interface{}{"path": r.cfg.HTMLPath})
	}

	b, err := r.open(ctx, browser.OptionsFromConfig(r.cfg), r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			r.logger.WithError(cerr).Warn("Failed to close browser")
		}
	}()

	if err := b.Navigate(url); err != nil {
		return nil, err
	}
	if err := b.Warmup(r.cfg.Warmup); err != nil {
		return nil, err
	}

	var frames []string
	if r.cfg.Screenshots {
		frames, err = r.screenshots(ctx, b)
	} else {
		frames, err = noise.Generate(ctx, r.cfg.OutputDirectory, r.cfg.Frames, noise.Options{
			Width:   r.cfg.Width,
			Height:  r.cfg.Height,
			Pattern: r.cfg.NamePattern,
			Workers: r.cfg.Workers,
			Pace:    r.cfg.Pace,
			Seed:    r.cfg.Seed,
			Logger:  r.logger,
		})
	}
	if err != nil {
		return nil, err
	}

	summary := &Summary{URL: url, Frames: frames, Duration: time.Since(start)}
	r.logger.InfoWithFields(fmt.Sprintf("Captured %d frames in YouTube Shorts format", len(frames)), map[string]interface{}{
		"output":   r.cfg.OutputDirectory,
		"duration": summary.Duration,
	})
	return summary, nil
}

func (r *Runner) screenshots(ctx context.Context, b Browser) ([]string, error) {
	store, err := storage.NewFrameStore(r.cfg.OutputDirectory, r.cfg.NamePattern, r.logger)
	if err != nil {
		return nil, err
	}

	frames := make([]string, 0, r.cfg.Frames)
	for i := 0; i < r.cfg.Frames; i++ {
		if i > 0 {
			if err := retry.Wait(ctx, r.cfg.Pace); err != nil {
				return nil, err
			}
		}
		shot, err := b.Screenshot()
		if err != nil {
			return nil, err
		}
		path, size, err := store.SaveFrame(i, bytes.NewReader(shot))
		if err != nil {
			return nil, err
		}
		logger.LogFrame(i, r.cfg.Frames, path, int(size))
		frames = append(frames, path)
	}
	return frames, nil
}
