package framegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"ytshorts/pkg/logger"
	"ytshorts/pkg/ratelimit"
	"ytshorts/pkg/retry"
)

// Generator renders the image for one frame index
type Generator interface {
	GenerateFrame(ctx context.Context, index int) ([]byte, error)
}

// FrameSaver stores frame bytes under the name for index
type FrameSaver interface {
	SaveFrame(index int, r io.Reader) (string, int64, error)
}

// Job represents a single frame to produce
type Job struct {
	Index int
	Total int
}

// Result represents the outcome of a Job
type Result struct {
	Job      Job
	Success  bool
	Skipped  bool
	Path     string
	Size     int64
	Error    error
	Duration time.Duration
}

// Summary aggregates the results of one Generate call
type Summary struct {
	Requested int
	Generated int
	Failed    int
	Skipped   int
	Errors    []error
	Duration  time.Duration
}

// Options configures a Pool
type Options struct {
	Workers   int
	Pause     time.Duration
	Generator Generator
	Store     FrameSaver
	Limiter   ratelimit.Limiter
	Retry     *retry.Config
	Logger    logger.Logger
	// OnResult is called from the collecting goroutine for every finished job
	OnResult func(Result)
}

// Pool generates numbered frames with a fixed number of workers
type Pool struct {
	numWorkers int
	pause      time.Duration
	generator  Generator
	store      FrameSaver
	limiter    ratelimit.Limiter
	retry      *retry.Config
	onResult   func(Result)
	logger     logger.Logger
}

// NewPool creates a frame generation pool
func NewPool(opts Options) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Retry == nil {
		opts.Retry = &retry.Config{MaxAttempts: 1}
	}

	return &Pool{
		numWorkers: opts.Workers,
		pause:      opts.Pause,
		generator:  opts.Generator,
		store:      opts.Store,
		limiter:    opts.Limiter,
		retry:      opts.Retry,
		onResult:   opts.OnResult,
		logger:     opts.Logger.WithField("component", "framegen"),
	}
}

// Generate produces frames 0..count-1. The first failure stops the remaining
// jobs and is returned; the summary is always filled in. A count of zero
// returns an empty summary and no error.
func (p *Pool) Generate(ctx context.Context, count int) (Summary, error) {
	start := time.Now()
	summary := Summary{Requested: count}
	if count <= 0 {
		return summary, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := p.numWorkers
	if workers > count {
		workers = count
	}

	p.logger.InfoWithFields("Starting frame generation", map[string]interface{}{
		"frames":      count,
		"num_workers": workers,
	})

	jobQueue := make(chan Job, count)
	resultQueue := make(chan Result, workers)
	for i := 0; i < count; i++ {
		jobQueue <- Job{Index: i, Total: count}
	}
	close(jobQueue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, cancel, i, jobQueue, resultQueue, &wg)
	}
	go func() {
		wg.Wait()
		close(resultQueue)
	}()

	for result := range resultQueue {
		switch {
		case result.Success:
			summary.Generated++
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Failed++
			summary.Errors = append(summary.Errors, result.Error)
			cancel()
		}
		if p.onResult != nil {
			p.onResult(result)
		}
	}
	summary.Duration = time.Since(start)

	p.logger.InfoWithFields("Frame generation finished", map[string]interface{}{
		"generated": summary.Generated,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"duration":  summary.Duration,
	})

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d frames failed: %w", summary.Failed, count, errors.Join(summary.Errors...))
	}
	if summary.Generated < count {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("frame generation interrupted after %d of %d frames: %w", summary.Generated, count, err)
		}
	}
	return summary, nil
}

// worker is the main worker routine
func (p *Pool) worker(ctx context.Context, stop context.CancelFunc, id int, jobs <-chan Job, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		var result Result
		if ctx.Err() != nil {
			result = Result{Job: job, Skipped: true}
		} else {
			result = p.processJob(ctx, job, id)
		}
		if !result.Success && !result.Skipped {
			stop()
		}
		results <- result
	}
}

// processJob produces and stores a single frame
func (p *Pool) processJob(ctx context.Context, job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := p.limiter.Wait(ctx); err != nil {
		result.Skipped = true
		return result
	}

	data, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		return p.generator.GenerateFrame(ctx, job.Index)
	}, p.retry)
	if err != nil {
		if ctx.Err() != nil {
			result.Skipped = true
			return result
		}
		result.Error = fmt.Errorf("frame %d: generate failed: %w", job.Index, err)
		result.Duration = time.Since(start)

		p.logger.ErrorWithFields("Worker failed to generate frame", map[string]interface{}{
			"worker_id": workerID,
			"frame":     job.Index,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}

	path, size, err := p.store.SaveFrame(job.Index, bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("frame %d: save failed: %w", job.Index, err)
		result.Duration = time.Since(start)

		p.logger.ErrorWithFields("Worker failed to save frame", map[string]interface{}{
			"worker_id": workerID,
			"frame":     job.Index,
			"error":     err.Error(),
		})
		return result
	}

	result.Success = true
	result.Path = path
	result.Size = size
	result.Duration = time.Since(start)

	p.logger.DebugWithFields("Frame saved", map[string]interface{}{
		"worker_id": workerID,
		"frame":     job.Index,
		"progress":  fmt.Sprintf("%d/%d", job.Index+1, job.Total),
		"size":      size,
		"duration":  result.Duration,
	})

	// Pause between generations; cancellation only shortens the wait
	_ = retry.Wait(ctx, p.pause)

	return result
}
