package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"ytshorts/internal/framegen"
	"ytshorts/pkg/config"
	"ytshorts/pkg/encoder"
	"ytshorts/pkg/history"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/metadata"
	"ytshorts/pkg/prompts"
	"ytshorts/pkg/ratelimit"
	"ytshorts/pkg/retry"
	"ytshorts/pkg/storage"
)

// Encoder turns a frame pattern into a video file
type Encoder interface {
	Encode(ctx context.Context, inputPattern, output string) (*encoder.Result, error)
}

// Recorder persists finished cycles
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// Notifier tells the user about finished cycles
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}

// GeneratorFactory returns the frame generator for one prompt
type GeneratorFactory func(prompt string) framegen.Generator

// Deps are the collaborators of a Producer. Generators and Encoder are
// required; the rest are optional.
type Deps struct {
	Prompts    prompts.Source
	Generators GeneratorFactory
	Encoder    Encoder
	Recorder   Recorder
	Notifier   Notifier
	Limiter    ratelimit.Limiter
	Retry      *retry.Config
	Logger     logger.Logger
	// OnStart is called before the frames of a cycle are requested
	OnStart func(*CycleResult)
	// OnCycle is called after every cycle, including failed ones
	OnCycle func(*CycleResult)
	// OnFrame is called for every finished frame job
	OnFrame func(framegen.Result)
	// Now defaults to time.Now
	Now func() time.Time
}

// Producer runs the generate, encode, cleanup loop
type Producer struct {
	cfg  *config.Config
	deps Deps
	log  logger.Logger
}

// New creates a Producer
func New(cfg *config.Config, deps Deps) (*Producer, error) {
	if deps.Generators == nil {
		return nil, errors.New("pipeline: a generator factory is required")
	}
	if deps.Encoder == nil {
		return nil, errors.New("pipeline: an encoder is required")
	}
	if deps.Prompts == nil {
		deps.Prompts = prompts.Static(cfg.Diffusion.Prompt)
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Unlimited{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetLogger()
	}
	if deps.Retry == nil {
		deps.Retry = retry.FromSettings(cfg.Retry, cfg.RateLimit, deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Producer{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.WithField("component", "pipeline"),
	}, nil
}

// Paths returns the frame directory and output video for a cycle started at now
func (p *Producer) Paths(now time.Time) (frameDir, output string) {
	ts := now.Format(p.cfg.Loop.TimestampFormat)
	frameDir = filepath.Join(p.cfg.Frames.BaseDirectory, p.cfg.Frames.DirPrefix+ts)
	output = filepath.Join(p.cfg.Encoder.OutputDirectory, p.cfg.Encoder.OutputPrefix+ts+p.cfg.Encoder.Extension)
	return frameDir, output
}

// RunCycle produces one video. Any generation or encoding error is captured
// in the result rather than returned, and the frame directory is cleaned
// whatever happened.
func (p *Producer) RunCycle(ctx context.Context, now time.Time) *CycleResult {
	frameDir, output := p.Paths(now)
	result := &CycleResult{
		ID:              history.NewID(),
		Prompt:          p.deps.Prompts.Next(),
		FrameDir:        frameDir,
		VideoPath:       output,
		FramesRequested: p.cfg.Frames.Count,
		StartedAt:       now,
	}
	log := p.log.WithFields(map[string]interface{}{
		"cycle_id":  result.ID,
		"frame_dir": frameDir,
	})
	log.InfoWithFields("Starting cycle", map[string]interface{}{
		"prompt": result.Prompt,
		"frames": result.FramesRequested,
	})
	if p.deps.OnStart != nil {
		p.deps.OnStart(result)
	}

	store, err := storage.NewFrameStore(frameDir, p.cfg.Frames.NamePattern, log)
	if err == nil {
		err = p.produce(ctx, store, result)
		result.Cleanup = store.Clean()
		logger.LogCleanup(frameDir, len(result.Cleanup.Removed), len(result.Cleanup.Failed))
	}
	p.finish(ctx, result, err)
	return result
}

// produce generates the frames and encodes them
func (p *Producer) produce(ctx context.Context, store *storage.FrameStore, result *CycleResult) error {
	pool := framegen.NewPool(framegen.Options{
		Workers:   p.cfg.Frames.Workers,
		Pause:     p.cfg.Frames.Pause,
		Generator: p.deps.Generators(result.Prompt),
		Store:     store,
		Limiter:   p.deps.Limiter,
		Retry:     p.deps.Retry,
		Logger:    p.deps.Logger,
		OnResult:  p.deps.OnFrame,
	})

	summary, err := pool.Generate(ctx, p.cfg.Frames.Count)
	result.FramesGenerated = summary.Generated
	result.GenerateDuration = summary.Duration
	if err != nil {
		return fmt.Errorf("generate frames: %w", err)
	}

	encodeStart := time.Now()
	enc, err := p.deps.Encoder.Encode(ctx, store.InputPattern(), result.VideoPath)
	result.EncodeDuration = time.Since(encodeStart)
	if err != nil {
		return fmt.Errorf("encode video: %w", err)
	}
	result.VideoSize = enc.Size
	return nil
}

// finish sets the status and runs the post-cycle side effects
func (p *Producer) finish(ctx context.Context, result *CycleResult, err error) {
	result.FinishedAt = p.deps.Now()
	result.Err = err
	switch {
	case err == nil:
		result.Status = history.StatusSuccess
	case ctx.Err() != nil:
		result.Status = history.StatusCancelled
	default:
		result.Status = history.StatusFailed
	}

	if err == nil && p.cfg.Metadata.Enabled {
		path, merr := p.sidecar(result).Save(result.VideoPath, p.cfg.Metadata.Format)
		if merr != nil {
			p.log.WithError(merr).Warn("Failed to write metadata")
		} else {
			result.MetadataPath = path
		}
	}

	if p.deps.Recorder != nil {
		if rerr := p.deps.Recorder.Record(context.WithoutCancel(ctx), result.Entry()); rerr != nil {
			p.log.WithError(rerr).Warn("Failed to record cycle history")
		}
	}

	logger.LogCycle(result.ID, result.Status, result.FramesGenerated, result.Duration(), err)
	p.notify(result)

	if p.deps.OnCycle != nil {
		p.deps.OnCycle(result)
	}
}

func (p *Producer) sidecar(result *CycleResult) *metadata.VideoMetadata {
	return &metadata.VideoMetadata{
		CycleID:        result.ID,
		Video:          filepath.Base(result.VideoPath),
		Prompt:         result.Prompt,
		NegativePrompt: p.cfg.Diffusion.NegativePrompt,
		Model:          p.cfg.Diffusion.Model,
		Seed:           p.cfg.Diffusion.Seed,
		Width:          p.cfg.Diffusion.Width,
		Height:         p.cfg.Diffusion.Height,
		Frames:         result.FramesGenerated,
		Framerate:      p.cfg.Encoder.Framerate,
		CRF:            p.cfg.Encoder.CRF,
		FileSize:       result.VideoSize,
		StartedAt:      result.StartedAt,
		CompletedAt:    result.FinishedAt,
		Duration:       result.Duration(),
	}
}

func (p *Producer) notify(result *CycleResult) {
	n := p.cfg.Notifications
	if p.deps.Notifier == nil || !n.Enabled {
		return
	}
	switch result.Status {
	case history.StatusSuccess:
		if n.OnComplete {
			p.deps.Notifier.SendSuccess("Video ready", filepath.Base(result.VideoPath))
		}
	case history.StatusFailed:
		if n.OnError {
			p.deps.Notifier.SendError("Cycle failed", result.Err.Error())
		}
	}
}

// Run repeats RunCycle, waiting the loop interval between cycles, until ctx
// is cancelled or the configured number of cycles has run. Failed cycles do
// not stop the loop. It returns the number of cycles run.
func (p *Producer) Run(ctx context.Context) (int, error) {
	maxCycles := p.cfg.Loop.MaxCycles
	logger.LogComponentStart("pipeline", map[string]interface{}{
		"interval":   p.cfg.Loop.Interval,
		"max_cycles": maxCycles,
		"frames":     p.cfg.Frames.Count,
	})

	cycles := 0
	for {
		if ctx.Err() != nil {
			logger.LogComponentStop("pipeline", "cancelled")
			return cycles, nil
		}

		p.RunCycle(ctx, p.deps.Now())
		cycles++

		if maxCycles > 0 && cycles >= maxCycles {
			logger.LogComponentStop("pipeline", "max cycles reached")
			return cycles, nil
		}

		p.log.InfoWithFields("Waiting before next cycle", map[string]interface{}{
			"interval": p.cfg.Loop.Interval,
		})
		if err := retry.Wait(ctx, p.cfg.Loop.Interval); err != nil {
			logger.LogComponentStop("pipeline", "cancelled")
			return cycles, nil
		}
	}
}
