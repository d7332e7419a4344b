package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"ytshorts/internal/capture"
	"ytshorts/pkg/encoder"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/ui"
)

var (
	capFrames      int
	capWarmup      time.Duration
	capScreenshots bool
	capBrowser     string
	capOutput      string
	capURL         string
	capEncode      bool
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture frames of an animated page in a headless browser",
	Long: `Render a CSS animation page, open it in headless Chrome at 1080x1920
and write numbered PNG frames.

By default the frames are random noise images, which makes the command a
quick smoke test of the browser and output plumbing. With --screenshots
every frame is a real screenshot of the page.`,
	Example: `  # 60 noise frames into ./frames
  ytshorts capture

  # Real screenshots of a page you host yourself, encoded afterwards
  ytshorts capture --screenshots --url http://localhost:8080/ --encode`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().IntVarP(&capFrames, "frames", "n", 60, "number of frames")
	captureCmd.Flags().DurationVar(&capWarmup, "warmup", 2*time.Second, "wait after loading the page")
	captureCmd.Flags().BoolVar(&capScreenshots, "screenshots", false, "save real screenshots instead of noise frames")
	captureCmd.Flags().StringVar(&capBrowser, "browser", "", "path to the Chrome or Chromium binary")
	captureCmd.Flags().StringVarP(&capOutput, "output", "o", "", "directory for the frames")
	captureCmd.Flags().StringVar(&capURL, "url", "", "capture this URL instead of the generated page")
	captureCmd.Flags().BoolVar(&capEncode, "encode", false, "encode the frames into a video afterwards")
}

func captureFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if set("frames") {
		flags["capture-frames"] = capFrames
	}
	if set("warmup") {
		flags["warmup"] = capWarmup
	}
	if set("screenshots") {
		flags["screenshots"] = capScreenshots
	}
	if set("browser") {
		flags["browser"] = capBrowser
	}
	if set("output") {
		flags["capture-output"] = capOutput
	}
	if set("url") {
		flags["url"] = capURL
	}
	return flags
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(captureFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()

	ctx, stop := signalContext()
	defer stop()

	mode := "noise"
	if cfg.Capture.Screenshots {
		mode = "screenshots"
	}
	ui.PrintInfo("Frames", fmt.Sprintf("%d (%s)", cfg.Capture.Frames, mode))
	ui.PrintInfo("Output", cfg.Capture.OutputDirectory)
	ui.PrintHighlight("[LAUNCHING BROWSER]")

	summary, err := capture.NewRunner(cfg.Capture, nil, log).Run(ctx)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Captured %d frames in %s", len(summary.Frames), ui.FormatDuration(summary.Duration)))

	if !capEncode {
		return nil
	}

	output := filepath.Join(cfg.Encoder.OutputDirectory,
		"capture_"+time.Now().Format(cfg.Loop.TimestampFormat)+cfg.Encoder.Extension)
	pattern := filepath.Join(cfg.Capture.OutputDirectory, cfg.Capture.NamePattern)
	result, err := encoder.New(cfg.Encoder, nil, log).Encode(ctx, pattern, output)
	if err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Video created: %s (%s)", result.Output, ui.FormatBytes(result.Size)))
	return nil
}
