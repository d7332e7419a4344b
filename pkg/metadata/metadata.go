package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported sidecar formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// VideoMetadata describes one produced video
type VideoMetadata struct {
	// Core identifiers
	CycleID string `json:"cycle_id" yaml:"cycle_id"`
	Video   string `json:"video" yaml:"video"`

	// Generation inputs
	Prompt         string `json:"prompt" yaml:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty" yaml:"negative_prompt,omitempty"`
	Model          string `json:"model,omitempty" yaml:"model,omitempty"`
	Seed           int64  `json:"seed" yaml:"seed"`

	// Media properties
	Width     int   `json:"width" yaml:"width"`
	Height    int   `json:"height" yaml:"height"`
	Frames    int   `json:"frames" yaml:"frames"`
	Framerate int   `json:"framerate" yaml:"framerate"`
	CRF       int   `json:"crf" yaml:"crf"`
	FileSize  int64 `json:"file_size,omitempty" yaml:"file_size,omitempty"`

	// Timestamps
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time     `json:"completed_at" yaml:"completed_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Path returns the sidecar path for a video in the given format
func Path(videoPath, format string) string {
	return videoPath + "." + normalizeFormat(format)
}

func normalizeFormat(format string) string {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Save writes the metadata next to the video and returns the sidecar path
func (m *VideoMetadata) Save(videoPath, format string) (string, error) {
	format = normalizeFormat(format)

	var (
		data []byte
		err  error
	)
	if format == FormatYAML {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	path := Path(videoPath, format)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata file: %w", err)
	}

	return path, nil
}

// Load reads the sidecar for a video
func Load(videoPath, format string) (*VideoMetadata, error) {
	format = normalizeFormat(format)

	data, err := os.ReadFile(Path(videoPath, format))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta VideoMetadata
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &meta)
	} else {
		err = json.Unmarshal(data, &meta)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// GetFormattedPrompt returns a single-line prompt truncated for display
func (m *VideoMetadata) GetFormattedPrompt(maxLength int) string {
	prompt := strings.Join(strings.Fields(m.Prompt), " ")
	if maxLength > 3 && len(prompt) > maxLength {
		prompt = prompt[:maxLength-3] + "..."
	}
	return prompt
}

// GetAspectRatio returns the aspect ratio as a string
func (m *VideoMetadata) GetAspectRatio() string {
	if m.Height == 0 {
		return "unknown"
	}

	ratio := float64(m.Width) / float64(m.Height)

	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}

// Exists checks if a sidecar exists for a video
func Exists(videoPath, format string) bool {
	_, err := os.Stat(Path(videoPath, format))
	return err == nil
}
