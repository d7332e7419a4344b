package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"ytshorts/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) Logger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return NewWithWriter(buf, zerolog.DebugLevel)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name: "console output at info",
			cfg:  &config.LoggingConfig{Level: "info"},
		},
		{
			name: "json output at debug",
			cfg:  &config.LoggingConfig{Level: "debug", Format: "json"},
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name: "file output in nested dir",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(dir, "logs", "ytshorts.log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
			if tt.cfg.File != "" {
				if _, err := os.Stat(tt.cfg.File); err != nil {
					t.Errorf("log file not created: %v", err)
				}
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	cases := map[string]func(string){
		"debug": l.Debug,
		"info":  l.Info,
		"warn":  l.Warn,
		"error": l.Error,
	}

	for level, logFn := range cases {
		t.Run(level, func(t *testing.T) {
			buf.Reset()
			logFn(level + " message")
			out := buf.String()
			if !strings.Contains(out, level+" message") {
				t.Errorf("message not found in output: %s", out)
			}
			if !strings.Contains(out, `"level":"`+level+`"`) {
				t.Errorf("level not found in output: %s", out)
			}
			if !strings.Contains(out, `"app":"ytshorts"`) {
				t.Errorf("app field not found in output: %s", out)
			}
		})
	}
}

func TestWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	child := l.WithField("cycle_id", "c-1")
	child.Info("child")
	if !strings.Contains(buf.String(), `"cycle_id":"c-1"`) {
		t.Errorf("field missing from child output: %s", buf.String())
	}

	buf.Reset()
	l.Info("parent")
	if strings.Contains(buf.String(), "cycle_id") {
		t.Errorf("child field leaked into parent: %s", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("ffmpeg exited with status 1")).Error("encode failed")

	out := buf.String()
	if !strings.Contains(out, "encode failed") {
		t.Error("message not found in output")
	}
	if !strings.Contains(out, "ffmpeg exited with status 1") {
		t.Error("error text not found in output")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.InfoWithFields("all types", map[string]interface{}{
		"prompt":   "a lighthouse at dusk",
		"frames":   60,
		"bytes":    int64(4096),
		"cfg":      7.5,
		"once":     true,
		"started":  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		"interval": time.Minute,
		"args":     []string{"-y", "-framerate", "30"},
		"indices":  []int{0, 1, 2},
		"custom":   struct{ Name string }{Name: "x"},
	})

	out := buf.String()
	for _, want := range []string{
		`"prompt":"a lighthouse at dusk"`,
		`"frames":60`,
		`"bytes":4096`,
		`"once":true`,
		`"args":["-y","-framerate","30"]`,
		`"indices":[0,1,2]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithField("component", "pipeline").
		WithField("cycle_id", "abc").
		WithFields(map[string]interface{}{"frames": 3}).
		WarnWithFields("chained", map[string]interface{}{"status": "failed"})

	out := buf.String()
	for _, want := range []string{
		`"component":"pipeline"`,
		`"cycle_id":"abc"`,
		`"frames":3`,
		`"status":"failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")
	WithField("key", "value").Info("with field")
	WithFields(map[string]interface{}{"k1": "v1"}).Info("with fields")
	WithError(errors.New("boom")).Error("with error")
}

func TestComponentHelpers(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	tl := NewTestLogger()
	SetLogger(tl)

	LogCycle("cycle-1", "success", 60, 3*time.Second, nil)
	LogCycle("cycle-2", "failed", 0, time.Second, errors.New("encoder failed"))
	LogCleanup("/tmp/frames_x", 59, 1)
	LogEncode("ffmpeg", []string{"-y"}, time.Second, nil)

	msg, ok := tl.FindMessage("Cycle completed")
	if !ok {
		t.Fatal("expected Cycle completed message")
	}
	if msg.Fields["cycle_id"] != "cycle-1" || msg.Fields["frames"] != 60 {
		t.Errorf("unexpected fields: %v", msg.Fields)
	}

	failed, ok := tl.FindMessage("Cycle failed")
	if !ok {
		t.Fatal("expected Cycle failed message")
	}
	if failed.Level != "ERROR" || failed.Error == nil {
		t.Errorf("expected ERROR with error attached, got %+v", failed)
	}

	if !tl.HasMessage("Cleanup left files behind") {
		t.Error("expected cleanup warning")
	}
	if !tl.HasMessage("Encoder finished") {
		t.Error("expected encoder message")
	}
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "noise").WithError(errors.New("x"))
	child.Warn("partial")

	msgs := tl.GetMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Fields["component"] != "noise" || msgs[0].Error == nil {
		t.Errorf("unexpected message: %+v", msgs[0])
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear() did not drop messages")
	}
}
