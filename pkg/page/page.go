package page

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ytshorts/pkg/config"
)

//go:embed animation.html.tmpl
var animationHTML string

var animationTemplate = template.Must(template.New("animation").Parse(animationHTML))

// Options controls the rendered animation page
type Options struct {
	DocumentTitle string
	Title         string
	FontSize      int
	Width         int
	Height        int
	Duration      time.Duration
	FromColor     string
	ToColor       string
	Background    string
}

// DefaultOptions returns the stock animation: a red-to-blue title sliding
// across a black 1080x1920 page every five seconds.
func DefaultOptions() Options {
	return Options{
		DocumentTitle: "CSS Animation",
		Title:         "Hello, CSS Animation!",
		FontSize:      150,
		Width:         1080,
		Height:        1920,
		Duration:      5 * time.Second,
		FromColor:     "red",
		ToColor:       "blue",
		Background:    "#000",
	}
}

// FromConfig overlays the capture settings on DefaultOptions
func FromConfig(cfg config.CaptureConfig) Options {
	opts := DefaultOptions()
	if cfg.Title != "" {
		opts.Title = cfg.Title
	}
	if cfg.FontSize > 0 {
		opts.FontSize = cfg.FontSize
	}
	if cfg.Width > 0 {
		opts.Width = cfg.Width
	}
	if cfg.Height > 0 {
		opts.Height = cfg.Height
	}
	if cfg.AnimationDuration > 0 {
		opts.Duration = cfg.AnimationDuration
	}
	return opts
}

type view struct {
	Options
	Seconds string
}

// Render executes the animation template
func Render(opts Options) ([]byte, error) {
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("animation duration must be positive, got %s", opts.Duration)
	}

	var buf bytes.Buffer
	v := view{
		Options: opts,
		Seconds: strconv.FormatFloat(opts.Duration.Seconds(), 'f', -1, 64),
	}
	if err := animationTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to render animation page: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the page to path and returns its file:// URL
func WriteFile(path string, opts Options) (string, error) {
	data, err := Render(opts)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("failed to create page directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write animation page: %w", err)
	}
	return FileURL(abs), nil
}

// FileURL returns the file:// URL for an absolute path
func FileURL(abs string) string {
	return "file://" + filepath.ToSlash(abs)
}
