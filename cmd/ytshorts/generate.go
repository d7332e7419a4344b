package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"ytshorts/internal/framegen"
	"ytshorts/pkg/auth"
	"ytshorts/pkg/config"
	"ytshorts/pkg/diffusion"
	"ytshorts/pkg/encoder"
	"ytshorts/pkg/history"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/pipeline"
	"ytshorts/pkg/prompts"
	"ytshorts/pkg/ratelimit"
	"ytshorts/pkg/retry"
	"ytshorts/pkg/ui"
)

var (
	genPrompt      string
	genFrames      int
	genInterval    time.Duration
	genOnce        bool
	genCycles      int
	genOutput      string
	genWorkers     int
	genEndpoint    string
	genPromptsFile string
	genProfile     string
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the frame, encode, cleanup loop",
	Long: `Generate videos from a text-to-image server.

Each cycle requests the configured number of frames for the next prompt,
stores them in a fresh timestamped directory, encodes them into an MP4
with ffmpeg and deletes the frames. Failed cycles are logged and the loop
continues. Press Ctrl+C to stop after the current step.`,
	Example: `  # Produce videos forever with the defaults
  ytshorts generate

  # One video with a custom prompt
  ytshorts generate --once --prompt "a lighthouse in a storm, 9:16"

  # Rotate through prompts from a file, three cycles, two minutes apart
  ytshorts generate --prompts-file prompts.txt --cycles 3 --interval 2m`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&genPrompt, "prompt", "p", "", "prompt used for every frame")
	generateCmd.Flags().IntVarP(&genFrames, "frames", "n", 60, "frames per video")
	generateCmd.Flags().DurationVarP(&genInterval, "interval", "i", time.Minute, "pause between cycles")
	generateCmd.Flags().BoolVar(&genOnce, "once", false, "run a single cycle")
	generateCmd.Flags().IntVar(&genCycles, "cycles", 0, "stop after this many cycles (0 runs forever)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "directory for finished videos")
	generateCmd.Flags().IntVarP(&genWorkers, "workers", "w", 1, "concurrent frame requests")
	generateCmd.Flags().StringVar(&genEndpoint, "endpoint", "", "text-to-image server URL")
	generateCmd.Flags().StringVar(&genPromptsFile, "prompts-file", "", "file with one prompt per line")
	generateCmd.Flags().StringVar(&genProfile, "profile", auth.DefaultProfile, "stored token profile")
}

// generateFlags collects only the flags the user actually set
func generateFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if set("prompt") {
		flags["prompt"] = genPrompt
	}
	if set("frames") {
		flags["frames"] = genFrames
	}
	if set("interval") {
		flags["interval"] = genInterval
	}
	if set("cycles") {
		flags["cycles"] = genCycles
	}
	if genOnce {
		flags["cycles"] = 1
	}
	if set("output") {
		flags["output"] = genOutput
	}
	if set("workers") {
		flags["workers"] = genWorkers
	}
	if set("endpoint") {
		flags["endpoint"] = genEndpoint
	}
	if set("prompts-file") {
		flags["prompts-file"] = genPromptsFile
	}
	return flags
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(generateFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("ytshorts starting")

	resolveToken(cfg, genProfile, log)

	ctx, stop := signalContext()
	defer stop()

	client := diffusion.NewClient(cfg.Diffusion, log)
	display := ui.NewProgressDisplay(nil, verbose)

	deps := pipeline.Deps{
		Generators: func(prompt string) framegen.Generator {
			return client.ForRequest(diffusion.RequestFromConfig(cfg.Diffusion, prompt))
		},
		Encoder: encoder.New(cfg.Encoder, nil, log),
		Limiter: ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		Retry:   retry.FromSettings(cfg.Retry, cfg.RateLimit, log),
		Logger:  log,
		OnStart: func(r *pipeline.CycleResult) {
			display.StartCycle(r.Prompt, r.FramesRequested)
		},
		OnFrame: func(r framegen.Result) {
			switch {
			case r.Success:
				display.FrameDone(r.Job.Index, r.Size)
			case r.Error != nil && !r.Skipped:
				display.FrameFailed(r.Job.Index, r.Error)
			}
		},
	}
	finished := 0
	deps.OnCycle = func(r *pipeline.CycleResult) {
		display.FinishCycle(r.VideoPath, r.Err)
		finished++
		if ctx.Err() == nil && (cfg.Loop.MaxCycles == 0 || finished < cfg.Loop.MaxCycles) {
			display.Waiting(cfg.Loop.Interval)
		}
	}

	if cfg.Loop.PromptsFile != "" {
		src, err := prompts.NewFileSource(cfg.Loop.PromptsFile, cfg.Diffusion.Prompt, log)
		if err != nil {
			return fmt.Errorf("failed to load prompts: %w", err)
		}
		ui.PrintInfo("Prompts", fmt.Sprintf("%d from %s", src.Len(), cfg.Loop.PromptsFile))
		if cfg.Loop.WatchPrompts {
			go func() {
				err := src.Watch(ctx, func(n int) {
					ui.PrintInfo("Prompts reloaded", fmt.Sprintf("%d", n))
				})
				if err != nil {
					log.WithError(err).Warn("Prompt file watcher stopped")
				}
			}()
		}
		deps.Prompts = src
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()
		deps.Recorder = store
	}

	if cfg.Notifications.Enabled && cfg.Notifications.NotificationType != "none" {
		deps.Notifier = ui.NewNotifier(cfg.Notifications.NotificationType, nil)
	}

	producer, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}

	printPlan(cfg)

	cycles, err := producer.Run(ctx)
	if err != nil {
		return err
	}

	succeeded, failed := display.Totals()
	ui.PrintHighlight(fmt.Sprintf("[%d CYCLES • %d VIDEOS • %d FAILED]", cycles, succeeded, failed))
	if ctx.Err() != nil {
		ui.PrintWarning("Interrupted")
	}
	return nil
}

// resolveToken fills the API token from the token store when neither the
// environment nor the config provided one
func resolveToken(cfg *config.Config, profile string, log logger.Logger) {
	if cfg.Diffusion.APIToken != "" {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Token store unavailable")
		return
	}
	token, err := manager.Retrieve(profile)
	if err != nil {
		if !errors.Is(err, auth.ErrTokenNotFound) {
			log.WithError(err).Warn("Failed to read stored token")
		}
		return
	}
	cfg.Diffusion.APIToken = token.Value
	if token.Endpoint != "" && cfg.Diffusion.Endpoint == config.DefaultConfig().Diffusion.Endpoint {
		cfg.Diffusion.Endpoint = token.Endpoint
	}
	log.WithField("profile", token.Profile).Info("Using stored API token")
}

func printPlan(cfg *config.Config) {
	ui.PrintInfo("Endpoint", cfg.Diffusion.Endpoint)
	ui.PrintInfo("Frames", fmt.Sprintf("%d per video, %d workers", cfg.Frames.Count, cfg.Frames.Workers))
	ui.PrintInfo("Output", filepath.Clean(cfg.Encoder.OutputDirectory))
	cycles := "until interrupted"
	if cfg.Loop.MaxCycles > 0 {
		cycles = fmt.Sprintf("%d", cfg.Loop.MaxCycles)
	}
	ui.PrintInfo("Cycles", cycles)
	ui.PrintHighlight("[STARTING PRODUCTION LOOP]")
}
