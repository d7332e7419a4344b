package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv
const EnvPrefix = "YTSHORTS_"

// Config holds all configuration options for ytshorts
type Config struct {
	// Text-to-image backend
	Diffusion DiffusionConfig `yaml:"diffusion" json:"diffusion"`

	// Frame generation and the ephemeral frame directory
	Frames FramesConfig `yaml:"frames" json:"frames"`

	// Video encoder invocation
	Encoder EncoderConfig `yaml:"encoder" json:"encoder"`

	// Production loop
	Loop LoopConfig `yaml:"loop" json:"loop"`

	// Browser capture command
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	RateLimit     RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Retry         RetryConfig        `yaml:"retry" json:"retry"`
	History       HistoryConfig      `yaml:"history" json:"history"`
	Metadata      MetadataConfig     `yaml:"metadata" json:"metadata"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// DiffusionConfig holds the text-to-image API settings
type DiffusionConfig struct {
	Endpoint       string        `yaml:"endpoint" json:"endpoint"`
	Model          string        `yaml:"model" json:"model"`
	Prompt         string        `yaml:"prompt" json:"prompt"`
	NegativePrompt string        `yaml:"negative_prompt" json:"negative_prompt"`
	Width          int           `yaml:"width" json:"width"`
	Height         int           `yaml:"height" json:"height"`
	Steps          int           `yaml:"steps" json:"steps"`
	CFGScale       float64       `yaml:"cfg_scale" json:"cfg_scale"`
	Sampler        string        `yaml:"sampler" json:"sampler"`
	Seed           int64         `yaml:"seed" json:"seed"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`

	// APIToken is never written to disk; it comes from the environment or the token store
	APIToken string `yaml:"-" json:"-"`
}

// FramesConfig holds frame generation settings
type FramesConfig struct {
	Count         int           `yaml:"count" json:"count"`
	Pause         time.Duration `yaml:"pause" json:"pause"`
	Workers       int           `yaml:"workers" json:"workers"`
	BaseDirectory string        `yaml:"base_directory" json:"base_directory"`
	DirPrefix     string        `yaml:"dir_prefix" json:"dir_prefix"`
	NamePattern   string        `yaml:"name_pattern" json:"name_pattern"`
}

// EncoderConfig holds the ffmpeg invocation settings
type EncoderConfig struct {
	Binary          string        `yaml:"binary" json:"binary"`
	Framerate       int           `yaml:"framerate" json:"framerate"`
	CRF             int           `yaml:"crf" json:"crf"`
	Codec           string        `yaml:"codec" json:"codec"`
	PixelFormat     string        `yaml:"pixel_format" json:"pixel_format"`
	Scale           string        `yaml:"scale" json:"scale"`
	OutputDirectory string        `yaml:"output_directory" json:"output_directory"`
	OutputPrefix    string        `yaml:"output_prefix" json:"output_prefix"`
	Extension       string        `yaml:"extension" json:"extension"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

// LoopConfig holds the production loop settings
type LoopConfig struct {
	Interval        time.Duration `yaml:"interval" json:"interval"`
	MaxCycles       int           `yaml:"max_cycles" json:"max_cycles"`
	PromptsFile     string        `yaml:"prompts_file" json:"prompts_file"`
	WatchPrompts    bool          `yaml:"watch_prompts" json:"watch_prompts"`
	TimestampFormat string        `yaml:"timestamp_format" json:"timestamp_format"`
}

// CaptureConfig holds the headless browser capture settings
type CaptureConfig struct {
	BrowserPath       string        `yaml:"browser_path" json:"browser_path"`
	URL               string        `yaml:"url" json:"url"`
	HTMLPath          string        `yaml:"html_path" json:"html_path"`
	Headless          bool          `yaml:"headless" json:"headless"`
	NoSandbox         bool          `yaml:"no_sandbox" json:"no_sandbox"`
	DisableGPU        bool          `yaml:"disable_gpu" json:"disable_gpu"`
	Warmup            time.Duration `yaml:"warmup" json:"warmup"`
	Frames            int           `yaml:"frames" json:"frames"`
	Pace              time.Duration `yaml:"pace" json:"pace"`
	OutputDirectory   string        `yaml:"output_directory" json:"output_directory"`
	NamePattern       string        `yaml:"name_pattern" json:"name_pattern"`
	Width             int           `yaml:"width" json:"width"`
	Height            int           `yaml:"height" json:"height"`
	Screenshots       bool          `yaml:"screenshots" json:"screenshots"`
	Title             string        `yaml:"title" json:"title"`
	FontSize          int           `yaml:"font_size" json:"font_size"`
	AnimationDuration time.Duration `yaml:"animation_duration" json:"animation_duration"`
	Workers           int           `yaml:"workers" json:"workers"`
	Seed              int64         `yaml:"seed" json:"seed"`
}

// RateLimitConfig holds rate limiting configuration for diffusion requests
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int `yaml:"burst" json:"burst"`
	// Cooldown is the first wait after a 429; zero means one token interval
	Cooldown    time.Duration `yaml:"cooldown" json:"cooldown"`
	MaxCooldown time.Duration `yaml:"max_cooldown" json:"max_cooldown"`
}

// RetryConfig holds retry configuration for diffusion requests
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// Strategy is exponential, linear or constant
	Strategy   string        `yaml:"strategy" json:"strategy"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	Jitter     float64       `yaml:"jitter" json:"jitter"`
}

// HistoryConfig holds the run ledger settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// MetadataConfig controls the sidecar written next to every video
type MetadataConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Format  string `yaml:"format" json:"format"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Diffusion: DiffusionConfig{
			Endpoint:  "http://127.0.0.1:7860",
			Model:     "runwayml/stable-diffusion-v1-5",
			Prompt:    "A dog walking in a park during sunset, high resolution, 9:16 aspect ratio",
			Width:     1080,
			Height:    1920,
			Steps:     25,
			CFGScale:  7.0,
			Sampler:   "Euler a",
			Seed:      -1,
			Timeout:   5 * time.Minute,
			UserAgent: "ytshorts/1.0",
		},
		Frames: FramesConfig{
			Count:         60,
			Pause:         100 * time.Millisecond,
			Workers:       1,
			BaseDirectory: ".",
			DirPrefix:     "frames_",
			NamePattern:   "frame_%05d.png",
		},
		Encoder: EncoderConfig{
			Binary:          "ffmpeg",
			Framerate:       30,
			CRF:             20,
			Codec:           "libx264",
			PixelFormat:     "yuv420p",
			Scale:           "1080:1920",
			OutputDirectory: ".",
			OutputPrefix:    "output_",
			Extension:       ".mp4",
			Timeout:         10 * time.Minute,
		},
		Loop: LoopConfig{
			Interval:        60 * time.Second,
			MaxCycles:       0,
			TimestampFormat: "20060102-150405",
		},
		Capture: CaptureConfig{
			HTMLPath:          filepath.Join(os.TempDir(), "animation.html"),
			Headless:          true,
			NoSandbox:         true,
			DisableGPU:        true,
			Warmup:            2 * time.Second,
			Frames:            60,
			Pace:              time.Second / 60,
			OutputDirectory:   "frames",
			NamePattern:       "frame_%03d.png",
			Width:             1080,
			Height:            1920,
			Title:             "Hello, CSS Animation!",
			FontSize:          150,
			AnimationDuration: 5 * time.Second,
			Workers:           4,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             1,
			Cooldown:          30 * time.Second,
			MaxCooldown:       5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Strategy:    "exponential",
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
			Jitter:      0.1,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(os.Getenv("HOME"), ".ytshorts", "history.db"),
		},
		Metadata: MetadataConfig{
			Enabled: true,
			Format:  "json",
		},
		Notifications: NotificationConfig{
			Enabled:          false,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from YTSHORTS_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = strings.ToLower(v) == "true" || v == "1"
		}
	}

	setString("ENDPOINT", &c.Diffusion.Endpoint)
	setString("API_TOKEN", &c.Diffusion.APIToken)
	setString("MODEL", &c.Diffusion.Model)
	setString("PROMPT", &c.Diffusion.Prompt)
	setDuration("DIFFUSION_TIMEOUT", &c.Diffusion.Timeout)

	setInt("FRAMES", &c.Frames.Count)
	setInt("WORKERS", &c.Frames.Workers)
	setString("FRAMES_DIR", &c.Frames.BaseDirectory)

	setString("FFMPEG", &c.Encoder.Binary)
	setString("OUTPUT_DIR", &c.Encoder.OutputDirectory)
	setInt("CRF", &c.Encoder.CRF)
	setInt("FRAMERATE", &c.Encoder.Framerate)

	setDuration("INTERVAL", &c.Loop.Interval)
	setInt("MAX_CYCLES", &c.Loop.MaxCycles)
	setString("PROMPTS_FILE", &c.Loop.PromptsFile)

	setString("BROWSER_PATH", &c.Capture.BrowserPath)

	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setDuration("RATE_LIMIT_COOLDOWN", &c.RateLimit.Cooldown)
	setString("RETRY_STRATEGY", &c.Retry.Strategy)
	setString("HISTORY_PATH", &c.History.Path)
	setBool("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".ytshorts.yaml",
		".ytshorts.yml",
		filepath.Join(home, ".config", "ytshorts", "config.yaml"),
		filepath.Join(home, ".config", "ytshorts", "config.yml"),
		filepath.Join(home, ".ytshorts.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes by default
func DefaultConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "ytshorts", "config.yaml")
}

var (
	framePatternRe = regexp.MustCompile(`^[^%]*%0[1-9]d[^%]*$`)
	scaleRe        = regexp.MustCompile(`^-?\d+:-?\d+$`)
)

var validURL = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
})

// Validate checks if the configuration is valid. All section errors are joined.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		fn   func() error
	}{
		{"diffusion", c.Diffusion.Validate},
		{"frames", c.Frames.Validate},
		{"encoder", c.Encoder.Validate},
		{"loop", c.Loop.Validate},
		{"capture", c.Capture.Validate},
		{"rate_limit", c.RateLimit.Validate},
		{"retry", c.Retry.Validate},
		{"history", c.History.Validate},
		{"metadata", c.Metadata.Validate},
		{"notifications", c.Notifications.Validate},
		{"logging", c.Logging.Validate},
	}

	var errs []error
	for _, s := range sections {
		if err := s.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates the diffusion configuration.
func (c *DiffusionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required, validURL),
		validation.Field(&c.Prompt, validation.Required),
		validation.Field(&c.Width, validation.Required, validation.Min(64), validation.Max(4096)),
		validation.Field(&c.Height, validation.Required, validation.Min(64), validation.Max(4096)),
		validation.Field(&c.Steps, validation.Required, validation.Min(1), validation.Max(150)),
		validation.Field(&c.CFGScale, validation.Min(0.0), validation.Max(30.0)),
		validation.Field(&c.Seed, validation.Min(int64(-1))),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	)
}

// Validate validates the frames configuration. A zero count is allowed.
func (c *FramesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Count, validation.Min(0)),
		validation.Field(&c.Pause, validation.Min(time.Duration(0))),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(32)),
		validation.Field(&c.BaseDirectory, validation.Required),
		validation.Field(&c.NamePattern, validation.Required, validation.Match(framePatternRe)),
	)
}

// Validate validates the encoder configuration.
func (c *EncoderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
		validation.Field(&c.Framerate, validation.Required, validation.Min(1), validation.Max(240)),
		validation.Field(&c.CRF, validation.Min(0), validation.Max(51)),
		validation.Field(&c.Codec, validation.Required),
		validation.Field(&c.PixelFormat, validation.Required),
		validation.Field(&c.Scale, validation.Required, validation.Match(scaleRe)),
		validation.Field(&c.OutputDirectory, validation.Required),
		validation.Field(&c.Extension, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Validate validates the loop configuration.
func (c *LoopConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxCycles, validation.Min(0)),
		validation.Field(&c.PromptsFile, validation.When(c.WatchPrompts, validation.Required)),
		validation.Field(&c.TimestampFormat, validation.Required),
	)
}

// Validate validates the capture configuration.
func (c *CaptureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.When(c.URL != "", validURL)),
		validation.Field(&c.HTMLPath, validation.When(c.URL == "", validation.Required)),
		validation.Field(&c.Warmup, validation.Min(time.Duration(0))),
		validation.Field(&c.Frames, validation.Min(0)),
		validation.Field(&c.Pace, validation.Min(time.Duration(0))),
		validation.Field(&c.OutputDirectory, validation.Required),
		validation.Field(&c.NamePattern, validation.Required, validation.Match(framePatternRe)),
		validation.Field(&c.Width, validation.Required, validation.Min(1)),
		validation.Field(&c.Height, validation.Required, validation.Min(1)),
		validation.Field(&c.FontSize, validation.Required, validation.Min(1)),
		validation.Field(&c.AnimationDuration, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	)
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RequestsPerMinute, validation.Required, validation.Min(1)),
		validation.Field(&c.Burst, validation.Required, validation.Min(1)),
		validation.Field(&c.Cooldown, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxCooldown, validation.Min(c.Cooldown)),
	)
}

// Validate validates the retry configuration.
func (c *RetryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.Strategy, validation.Required, validation.In("exponential", "linear", "constant")),
		validation.Field(&c.BaseDelay, validation.Required),
		validation.Field(&c.MaxDelay, validation.Required, validation.Min(c.BaseDelay)),
		validation.Field(&c.Multiplier, validation.Required, validation.Min(1.0)),
		validation.Field(&c.Jitter, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// Validate validates the metadata configuration.
func (c *MetadataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.When(c.Enabled, validation.Required), validation.In("json", "yaml")),
	)
}

// Validate validates the notification configuration.
func (c *NotificationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NotificationType, validation.Required, validation.In("terminal", "desktop", "none")),
	)
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("console", "json")),
	)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["prompt"].(string); ok && v != "" {
		c.Diffusion.Prompt = v
	}
	if v, ok := flags["endpoint"].(string); ok && v != "" {
		c.Diffusion.Endpoint = v
	}
	if v, ok := flags["frames"].(int); ok {
		c.Frames.Count = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Frames.Workers = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Encoder.OutputDirectory = v
	}
	if v, ok := flags["interval"].(time.Duration); ok {
		c.Loop.Interval = v
	}
	if v, ok := flags["cycles"].(int); ok && v >= 0 {
		c.Loop.MaxCycles = v
	}
	if v, ok := flags["prompts-file"].(string); ok && v != "" {
		c.Loop.PromptsFile = v
	}
	if v, ok := flags["capture-frames"].(int); ok {
		c.Capture.Frames = v
	}
	if v, ok := flags["warmup"].(time.Duration); ok {
		c.Capture.Warmup = v
	}
	if v, ok := flags["screenshots"].(bool); ok {
		c.Capture.Screenshots = v
	}
	if v, ok := flags["browser"].(string); ok && v != "" {
		c.Capture.BrowserPath = v
	}
	if v, ok := flags["url"].(string); ok && v != "" {
		c.Capture.URL = v
	}
	if v, ok := flags["capture-output"].(string); ok && v != "" {
		c.Capture.OutputDirectory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// godotenv never overrides variables already set in the environment
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".ytshorts.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
