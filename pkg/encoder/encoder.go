package encoder

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ytshorts/pkg/config"
	errs "ytshorts/pkg/errors"
	"ytshorts/pkg/logger"
)

const stderrTailLines = 15

// Result describes a successful encode
type Result struct {
	Output   string
	Size     int64
	Duration time.Duration
	Args     []string
}

// Encoder turns a directory of numbered frames into a video by running ffmpeg
type Encoder struct {
	cfg    config.EncoderConfig
	runner Runner
	logger logger.Logger
}

// New creates an Encoder. A nil runner uses ExecRunner.
func New(cfg config.EncoderConfig, runner Runner, log logger.Logger) *Encoder {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Encoder{
		cfg:    cfg,
		runner: runner,
		logger: log.WithField("component", "encoder"),
	}
}

// Binary returns the encoder executable
func (e *Encoder) Binary() string {
	return e.cfg.Binary
}

// Args builds the ffmpeg argument list for inputPattern and output
func (e *Encoder) Args(inputPattern, output string) []string {
	return []string{
		"-y",
		"-framerate", strconv.Itoa(e.cfg.Framerate),
		"-i", inputPattern,
		"-c:v", e.cfg.Codec,
		"-pix_fmt", e.cfg.PixelFormat,
		"-vf", "scale=" + e.cfg.Scale,
		"-crf", strconv.Itoa(e.cfg.CRF),
		output,
	}
}

// Encode runs the encoder and checks that output was written. A non-zero
// exit becomes an encoder error carrying the exit code and the end of stderr.
func (e *Encoder) Encode(ctx context.Context, inputPattern, output string) (*Result, error) {
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create output directory")
		}
	}

	parent := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := e.Args(inputPattern, output)
	e.logger.InfoWithFields("Creating video", map[string]interface{}{
		"input":  inputPattern,
		"output": output,
	})

	run, err := e.runner.Run(ctx, e.cfg.Binary, args)
	if err != nil {
		logger.LogEncode(e.cfg.Binary, args, 0, err)
		if parent.Err() != nil {
			return nil, err
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errs.Wrap(errs.ErrorTypeEncoder, err, "%s timed out after %s", e.cfg.Binary, e.cfg.Timeout)
		}
		return nil, errs.Wrap(errs.ErrorTypeEncoder, err, "failed to run %s", e.cfg.Binary)
	}

	if run.ExitCode != 0 {
		encErr := errs.New(errs.ErrorTypeEncoder, run.ExitCode, "%s exited with status %d: %s",
			e.cfg.Binary, run.ExitCode, Tail(run.Stderr, stderrTailLines))
		logger.LogEncode(e.cfg.Binary, args, run.Duration, encErr)
		return nil, encErr
	}

	info, err := os.Stat(output)
	if err != nil {
		missing := errs.Wrap(errs.ErrorTypeEncoder, err, "%s reported success but produced no output", e.cfg.Binary)
		logger.LogEncode(e.cfg.Binary, args, run.Duration, missing)
		return nil, missing
	}

	logger.LogEncode(e.cfg.Binary, args, run.Duration, nil)
	e.logger.InfoWithFields("Video saved", map[string]interface{}{
		"output": output,
		"size":   info.Size(),
	})

	return &Result{
		Output:   output,
		Size:     info.Size(),
		Duration: run.Duration,
		Args:     args,
	}, nil
}

// Tail returns the last n non-empty lines of out
func Tail(out []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}
