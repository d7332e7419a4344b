package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ytshorts/pkg/browser"
	"ytshorts/pkg/config"
	"ytshorts/pkg/logger"
)

type fakeBrowser struct {
	navigated   []string
	warmed      time.Duration
	shots       int
	closed      int
	navigateErr error
}

func (f *fakeBrowser) Navigate(url string) error {
	f.navigated = append(f.navigated, url)
	return f.navigateErr
}

func (f *fakeBrowser) Warmup(d time.Duration) error {
	f.warmed = d
	return nil
}

func (f *fakeBrowser) Screenshot() ([]byte, error) {
	f.shots++
	return []byte("\x89PNG fake"), nil
}

func (f *fakeBrowser) Close() error {
	f.closed++
	return nil
}

func opener(b *fakeBrowser, got *browser.Options) Opener {
	return func(ctx context.Context, opts browser.Options, log logger.Logger) (Browser, error) {
		if got != nil {
			*got = opts
		}
		return b, nil
	}
}

func testConfig(t *testing.T) config.CaptureConfig {
	cfg := config.DefaultConfig().Capture
	dir := t.TempDir()
	cfg.HTMLPath = filepath.Join(dir, "animation.html")
	cfg.OutputDirectory = filepath.Join(dir, "frames")
	cfg.Width = 6
	cfg.Height = 8
	cfg.Frames = 4
	cfg.Pace = 0
	cfg.Warmup = 10 * time.Millisecond
	cfg.Seed = 1
	return cfg
}

func TestRunWritesNoiseFrames(t *testing.T) {
	cfg := testConfig(t)
	fb := &fakeBrowser{}
	var opts browser.Options

	summary, err := NewRunner(cfg, opener(fb, &opts), logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Frames, 4)
	assert.Equal(t, filepath.Join(cfg.OutputDirectory, "frame_000.png"), summary.Frames[0])
	assert.Equal(t, filepath.Join(cfg.OutputDirectory, "frame_003.png"), summary.Frames[3])

	assert.Len(t, fb.navigated, 1)
	assert.True(t, strings.HasPrefix(fb.navigated[0], "file://"))
	assert.Equal(t, 10*time.Millisecond, fb.warmed)
	assert.Zero(t, fb.shots)
	assert.Equal(t, 1, fb.closed)
	assert.True(t, opts.Headless)

	html, err := os.ReadFile(cfg.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "moveTitle")
}

func TestRunScreenshots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Screenshots = true
	cfg.URL = "https://example.test/anim"
	fb := &fakeBrowser{}

	summary, err := NewRunner(cfg, opener(fb, nil), logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.test/anim"}, fb.navigated)
	assert.Equal(t, 4, fb.shots)
	assert.Len(t, summary.Frames, 4)
	_, err = os.Stat(cfg.HTMLPath)
	assert.True(t, os.IsNotExist(err), "no page is written when a URL is configured")
}

func TestRunClosesBrowserOnFailure(t *testing.T) {
	cfg := testConfig(t)
	fb := &fakeBrowser{navigateErr: errors.New("net::ERR_FILE_NOT_FOUND")}

	_, err := NewRunner(cfg, opener(fb, nil), logger.NewNopLogger()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, fb.closed)
}

func TestRunOpenFailure(t *testing.T) {
	cfg := testConfig(t)
	boom := errors.New("chrome not found")
	failing := func(ctx context.Context, opts browser.Options, log logger.Logger) (Browser, error) {
		return nil, boom
	}

	_, err := NewRunner(cfg, failing, logger.NewNopLogger()).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
