package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Frames.Count != 60 {
		t.Errorf("Expected default frame count to be 60, got %d", config.Frames.Count)
	}
	if config.Frames.NamePattern != "frame_%05d.png" {
		t.Errorf("Expected default name pattern frame_%%05d.png, got %s", config.Frames.NamePattern)
	}
	if config.Encoder.Framerate != 30 || config.Encoder.CRF != 20 {
		t.Errorf("Expected framerate 30 and crf 20, got %d and %d", config.Encoder.Framerate, config.Encoder.CRF)
	}
	if config.Loop.Interval != 60*time.Second {
		t.Errorf("Expected default interval to be 60s, got %s", config.Loop.Interval)
	}
	if config.Diffusion.Width != 1080 || config.Diffusion.Height != 1920 {
		t.Errorf("Expected 1080x1920, got %dx%d", config.Diffusion.Width, config.Diffusion.Height)
	}
	if config.Capture.NamePattern != "frame_%03d.png" {
		t.Errorf("Expected capture pattern frame_%%03d.png, got %s", config.Capture.NamePattern)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("YTSHORTS_API_TOKEN", "sk-test")
	t.Setenv("YTSHORTS_PROMPT", "a neon city in the rain")
	t.Setenv("YTSHORTS_FRAMES", "12")
	t.Setenv("YTSHORTS_INTERVAL", "5m")
	t.Setenv("YTSHORTS_OUTPUT_DIR", "/tmp/videos")
	t.Setenv("YTSHORTS_NOTIFICATIONS_ENABLED", "true")
	t.Setenv("YTSHORTS_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Diffusion.APIToken != "sk-test" {
		t.Errorf("Expected api token from env, got %q", config.Diffusion.APIToken)
	}
	if config.Diffusion.Prompt != "a neon city in the rain" {
		t.Errorf("Expected prompt from env, got %q", config.Diffusion.Prompt)
	}
	if config.Frames.Count != 12 {
		t.Errorf("Expected frames to be 12, got %d", config.Frames.Count)
	}
	if config.Loop.Interval != 5*time.Minute {
		t.Errorf("Expected interval 5m, got %s", config.Loop.Interval)
	}
	if config.Encoder.OutputDirectory != "/tmp/videos" {
		t.Errorf("Expected output dir /tmp/videos, got %s", config.Encoder.OutputDirectory)
	}
	if !config.Notifications.Enabled {
		t.Error("Expected notifications to be enabled")
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("YTSHORTS_FRAMES", "sixty")
	t.Setenv("YTSHORTS_INTERVAL", "soon")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for malformed env values")
	}
	if !strings.Contains(err.Error(), "YTSHORTS_FRAMES") || !strings.Contains(err.Error(), "YTSHORTS_INTERVAL") {
		t.Errorf("Expected both variables in error, got %v", err)
	}
	if config.Frames.Count != 60 {
		t.Errorf("Malformed value must not change the field, got %d", config.Frames.Count)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "zero frames is allowed",
			mutate: func(c *Config) { c.Frames.Count = 0 },
		},
		{
			name:      "negative frames",
			mutate:    func(c *Config) { c.Frames.Count = -1 },
			wantError: "frames",
		},
		{
			name:      "relative endpoint",
			mutate:    func(c *Config) { c.Diffusion.Endpoint = "localhost" },
			wantError: "diffusion",
		},
		{
			name:      "pattern without padded verb",
			mutate:    func(c *Config) { c.Frames.NamePattern = "frame_%d.png" },
			wantError: "frames",
		},
		{
			name:      "crf out of range",
			mutate:    func(c *Config) { c.Encoder.CRF = 60 },
			wantError: "encoder",
		},
		{
			name:      "bad scale",
			mutate:    func(c *Config) { c.Encoder.Scale = "1080x1920" },
			wantError: "encoder",
		},
		{
			name:      "watch without prompts file",
			mutate:    func(c *Config) { c.Loop.WatchPrompts = true },
			wantError: "loop",
		},
		{
			name:      "max delay below base delay",
			mutate:    func(c *Config) { c.Retry.MaxDelay = time.Second },
			wantError: "retry",
		},
		{
			name:      "unknown retry strategy",
			mutate:    func(c *Config) { c.Retry.Strategy = "fibonacci" },
			wantError: "retry",
		},
		{
			name:      "jitter above one",
			mutate:    func(c *Config) { c.Retry.Jitter = 1.5 },
			wantError: "retry",
		},
		{
			name:   "linear retry strategy",
			mutate: func(c *Config) { c.Retry.Strategy = "linear" },
		},
		{
			name:      "max cooldown below cooldown",
			mutate:    func(c *Config) { c.RateLimit.MaxCooldown = time.Second },
			wantError: "rate_limit",
		},
		{
			name:   "cooldown derived from rate",
			mutate: func(c *Config) { c.RateLimit.Cooldown = 0; c.RateLimit.MaxCooldown = 0 },
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: "logging",
		},
		{
			name:      "unknown metadata format",
			mutate:    func(c *Config) { c.Metadata.Format = "toml" },
			wantError: "metadata",
		},
		{
			name:   "history path not needed when disabled",
			mutate: func(c *Config) { c.History.Enabled = false; c.History.Path = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %q", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantError)
			}
		})
	}
}

func TestValidateJoinsSectionErrors(t *testing.T) {
	config := DefaultConfig()
	config.Encoder.Binary = ""
	config.Logging.Level = ""

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "encoder") || !strings.Contains(err.Error(), "logging") {
		t.Errorf("Expected both sections in error, got %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	config.MergeCommandLineFlags(map[string]interface{}{
		"prompt":    "flag prompt",
		"frames":    0,
		"workers":   3,
		"interval":  10 * time.Second,
		"cycles":    2,
		"output":    "/flag/output",
		"log-level": "error",
	})

	if config.Diffusion.Prompt != "flag prompt" {
		t.Errorf("Expected prompt from flags, got %q", config.Diffusion.Prompt)
	}
	if config.Frames.Count != 0 {
		t.Errorf("Expected explicit zero frames to be kept, got %d", config.Frames.Count)
	}
	if config.Frames.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", config.Frames.Workers)
	}
	if config.Loop.Interval != 10*time.Second || config.Loop.MaxCycles != 2 {
		t.Errorf("Unexpected loop config %+v", config.Loop)
	}
	if config.Encoder.OutputDirectory != "/flag/output" {
		t.Errorf("Expected output directory /flag/output, got %s", config.Encoder.OutputDirectory)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Diffusion.APIToken = "must-not-be-saved"
	config.Frames.Count = 24
	config.Loop.Interval = 90 * time.Second

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if strings.Contains(string(data), "must-not-be-saved") {
		t.Error("API token was written to the config file")
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Frames.Count != 24 {
		t.Errorf("Expected frame count 24, got %d", loaded.Frames.Count)
	}
	if loaded.Loop.Interval != 90*time.Second {
		t.Errorf("Expected interval 90s, got %s", loaded.Loop.Interval)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, "config.yaml")
	yamlContent := "frames:\n  count: 10\n  workers: 2\nencoder:\n  crf: 18\n"
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("YTSHORTS_FRAMES", "20")

	config, err := Load(configPath, map[string]interface{}{"workers": 4})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Encoder.CRF != 18 {
		t.Errorf("Expected crf from file, got %d", config.Encoder.CRF)
	}
	if config.Frames.Count != 20 {
		t.Errorf("Expected env to override file, got %d", config.Frames.Count)
	}
	if config.Frames.Workers != 4 {
		t.Errorf("Expected flag to override file, got %d", config.Frames.Workers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err == nil {
		t.Error("Expected error for explicit missing config file")
	}
}
