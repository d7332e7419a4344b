package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ytshorts/internal/framegen"
	"ytshorts/pkg/config"
	"ytshorts/pkg/encoder"
	errs "ytshorts/pkg/errors"
	"ytshorts/pkg/history"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/metadata"
	"ytshorts/pkg/retry"
)

type stubGenerator struct {
	failAt int
}

func (g stubGenerator) GenerateFrame(ctx context.Context, index int) ([]byte, error) {
	if g.failAt >= 0 && index == g.failAt {
		return nil, errs.New(errs.ErrorTypeAuth, 401, "bad token")
	}
	return []byte(fmt.Sprintf("png-%d", index)), nil
}

// stubEncoder counts the frames visible through the input pattern and writes
// the output, or fails with a fixed exit code.
type stubEncoder struct {
	mu         sync.Mutex
	exitCode   int
	seenFrames []int
}

func (e *stubEncoder) Encode(ctx context.Context, inputPattern, output string) (*encoder.Result, error) {
	n := 0
	for {
		if _, err := os.Stat(fmt.Sprintf(inputPattern, n)); err != nil {
			break
		}
		n++
	}
	e.mu.Lock()
	e.seenFrames = append(e.seenFrames, n)
	e.mu.Unlock()

	if e.exitCode != 0 {
		return nil, errs.New(errs.ErrorTypeEncoder, e.exitCode, "ffmpeg exited with status %d", e.exitCode)
	}
	if n == 0 {
		return nil, errs.New(errs.ErrorTypeEncoder, 254, "no input frames")
	}
	if err := os.WriteFile(output, []byte("video"), 0644); err != nil {
		return nil, err
	}
	return &encoder.Result{Output: output, Size: 5}, nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []*history.Entry
}

func (m *memRecorder) Record(ctx context.Context, e *history.Entry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type recordingNotifier struct {
	successes, errors []string
}

func (n *recordingNotifier) SendSuccess(title, message string) { n.successes = append(n.successes, message) }
func (n *recordingNotifier) SendError(title, message string)   { n.errors = append(n.errors, message) }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Frames.BaseDirectory = filepath.Join(dir, "work")
	cfg.Frames.Count = 5
	cfg.Frames.Pause = 0
	cfg.Frames.Workers = 2
	cfg.Encoder.OutputDirectory = dir
	cfg.Loop.Interval = time.Millisecond
	cfg.Notifications.Enabled = true
	cfg.Notifications.OnComplete = true
	cfg.Notifications.OnError = true
	return cfg
}

func newProducer(t *testing.T, cfg *config.Config, gen stubGenerator, enc *stubEncoder, rec *memRecorder, n *recordingNotifier) *Producer {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	deps := Deps{
		Generators: func(prompt string) framegen.Generator { return gen },
		Encoder:    enc,
		Retry:      &retry.Config{MaxAttempts: 1, Logger: logger.NewNopLogger()},
		Logger:     logger.NewNopLogger(),
		Now:        c.Now,
	}
	if rec != nil {
		deps.Recorder = rec
	}
	if n != nil {
		deps.Notifier = n
	}
	p, err := New(cfg, deps)
	require.NoError(t, err)
	return p
}

func regularFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(config.DefaultConfig(), Deps{Encoder: &stubEncoder{}})
	assert.Error(t, err)
	_, err = New(config.DefaultConfig(), Deps{Generators: func(string) framegen.Generator { return stubGenerator{} }})
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Frames.BaseDirectory = "/work"
	cfg.Encoder.OutputDirectory = "/videos"
	p, err := New(cfg, Deps{
		Generators: func(string) framegen.Generator { return stubGenerator{failAt: -1} },
		Encoder:    &stubEncoder{},
	})
	require.NoError(t, err)

	frameDir, output := p.Paths(time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC))
	assert.Equal(t, filepath.Join("/work", "frames_20240301-090507"), frameDir)
	assert.Equal(t, filepath.Join("/videos", "output_20240301-090507.mp4"), output)
}

func TestRunCycleSuccess(t *testing.T) {
	cfg := testConfig(t)
	enc := &stubEncoder{}
	rec := &memRecorder{}
	n := &recordingNotifier{}
	p := newProducer(t, cfg, stubGenerator{failAt: -1}, enc, rec, n)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	result := p.RunCycle(context.Background(), start)

	require.NoError(t, result.Err)
	assert.Equal(t, history.StatusSuccess, result.Status)
	assert.Equal(t, 5, result.FramesGenerated)
	assert.Equal(t, []int{5}, enc.seenFrames, "the encoder sees exactly the generated frames")
	assert.Equal(t, filepath.Join(cfg.Encoder.OutputDirectory, "output_20240301-120000.mp4"), result.VideoPath)

	_, err := os.Stat(result.VideoPath)
	require.NoError(t, err)
	assert.Len(t, result.Cleanup.Removed, 5)
	assert.Zero(t, regularFiles(t, result.FrameDir))

	assert.True(t, metadata.Exists(result.VideoPath, cfg.Metadata.Format))
	meta, err := metadata.Load(result.VideoPath, cfg.Metadata.Format)
	require.NoError(t, err)
	assert.Equal(t, result.ID, meta.CycleID)
	assert.Equal(t, cfg.Diffusion.Prompt, meta.Prompt)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, history.StatusSuccess, rec.entries[0].Status)
	assert.Equal(t, 5, rec.entries[0].FramesRemoved)
	assert.Equal(t, []string{"output_20240301-120000.mp4"}, n.successes)
}

func TestRunCycleCleansUpWhenEncoderFails(t *testing.T) {
	cfg := testConfig(t)
	enc := &stubEncoder{exitCode: 1}
	rec := &memRecorder{}
	n := &recordingNotifier{}
	p := newProducer(t, cfg, stubGenerator{failAt: -1}, enc, rec, n)

	result := p.RunCycle(context.Background(), time.Now())

	require.Error(t, result.Err)
	assert.True(t, errs.IsType(result.Err, errs.ErrorTypeEncoder))
	assert.Equal(t, history.StatusFailed, result.Status)
	assert.Zero(t, regularFiles(t, result.FrameDir), "frames are removed even though encoding failed")
	assert.False(t, metadata.Exists(result.VideoPath, cfg.Metadata.Format))

	require.Len(t, rec.entries, 1)
	assert.Empty(t, rec.entries[0].VideoPath)
	assert.Contains(t, rec.entries[0].Error, "exited with status 1")
	assert.Len(t, n.errors, 1)
}

func TestRunCycleCleansUpWhenGenerationFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Frames.Workers = 1
	enc := &stubEncoder{}
	p := newProducer(t, cfg, stubGenerator{failAt: 3}, enc, &memRecorder{}, &recordingNotifier{})

	result := p.RunCycle(context.Background(), time.Now())

	require.Error(t, result.Err)
	assert.True(t, errs.IsType(result.Err, errs.ErrorTypeAuth))
	assert.Empty(t, enc.seenFrames, "the encoder is not run after a generation failure")
	assert.Equal(t, 3, result.FramesGenerated)
	assert.Len(t, result.Cleanup.Removed, 3)
	assert.Zero(t, regularFiles(t, result.FrameDir))
}

func TestRunCycleZeroFramesFailsInEncoder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Frames.Count = 0
	enc := &stubEncoder{}
	p := newProducer(t, cfg, stubGenerator{failAt: -1}, enc, &memRecorder{}, &recordingNotifier{})

	result := p.RunCycle(context.Background(), time.Now())

	assert.Equal(t, []int{0}, enc.seenFrames, "the encoder is still invoked")
	require.Error(t, result.Err)
	assert.Equal(t, history.StatusFailed, result.Status)
}

func TestRunCycleCancelledIsRecorded(t *testing.T) {
	cfg := testConfig(t)
	rec := &memRecorder{}
	p := newProducer(t, cfg, stubGenerator{failAt: -1}, &stubEncoder{}, rec, &recordingNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := p.RunCycle(ctx, time.Now())

	assert.Equal(t, history.StatusCancelled, result.Status)
	require.Len(t, rec.entries, 1, "cancelled cycles are still recorded")
	assert.Equal(t, history.StatusCancelled, rec.entries[0].Status)
}

func TestRunStopsAfterMaxCycles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Loop.MaxCycles = 3
	cfg.Frames.Count = 2
	rec := &memRecorder{}
	enc := &stubEncoder{}
	p := newProducer(t, cfg, stubGenerator{failAt: -1}, enc, rec, &recordingNotifier{})

	cycles, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, cycles)
	require.Len(t, rec.entries, 3)

	seen := map[string]bool{}
	for _, e := range rec.entries {
		assert.Equal(t, history.StatusSuccess, e.Status)
		assert.False(t, seen[e.FrameDir], "each cycle gets its own frame directory")
		seen[e.FrameDir] = true
	}
}

func TestRunContinuesAfterFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Loop.MaxCycles = 2
	rec := &memRecorder{}
	p := newProducer(t, cfg, stubGenerator{failAt: -1}, &stubEncoder{exitCode: 1}, rec, &recordingNotifier{})

	cycles, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cycles)
	for _, e := range rec.entries {
		assert.Equal(t, history.StatusFailed, e.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Loop.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	p, err := New(cfg, Deps{
		Generators: func(string) framegen.Generator { return stubGenerator{failAt: -1} },
		Encoder:    &stubEncoder{},
		Logger:     logger.NewNopLogger(),
		Now:        c.Now,
		OnCycle:    func(*CycleResult) { cancel() },
	})
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		cycles, _ := p.Run(ctx)
		done <- cycles
	}()

	select {
	case cycles := <-done:
		assert.Equal(t, 1, cycles)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestNotificationsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifications.Enabled = false
	n := &recordingNotifier{}
	p := newProducer(t, cfg, stubGenerator{failAt: -1}, &stubEncoder{exitCode: 2}, nil, n)

	p.RunCycle(context.Background(), time.Now())
	assert.Empty(t, n.errors)
}

func TestEntryFromResult(t *testing.T) {
	r := &CycleResult{
		ID:        "id",
		Status:    history.StatusFailed,
		Err:       errors.New("boom"),
		VideoPath: "out.mp4",
	}
	e := r.Entry()
	assert.Equal(t, "boom", e.Error)
	assert.Empty(t, e.VideoPath)
}

func TestHooksRunAroundCycle(t *testing.T) {
	cfg := testConfig(t)
	var events []string
	var mu sync.Mutex
	add := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, s)
	}

	p, err := New(cfg, Deps{
		Generators: func(string) framegen.Generator { return stubGenerator{failAt: -1} },
		Encoder:    &stubEncoder{},
		Retry:      &retry.Config{MaxAttempts: 1, Logger: logger.NewNopLogger()},
		Logger:     logger.NewNopLogger(),
		OnStart:    func(r *CycleResult) { add("start:" + r.Prompt) },
		OnFrame:    func(framegen.Result) { add("frame") },
		OnCycle:    func(r *CycleResult) { add("done:" + r.Status) },
	})
	require.NoError(t, err)

	p.RunCycle(context.Background(), time.Now())

	require.Len(t, events, 7)
	assert.Equal(t, "start:"+cfg.Diffusion.Prompt, events[0])
	assert.Equal(t, "done:"+history.StatusSuccess, events[6])
}
