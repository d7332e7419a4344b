package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ytshorts/pkg/history"
	"ytshorts/pkg/metadata"
	"ytshorts/pkg/ui"
)

var (
	historyLimit   int
	historyDetails bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent production cycles",
	Long: `List the most recent cycles recorded by generate, newest first, with totals.

With --details, successful cycles also show the aspect ratio, seed and
prompt read from the metadata file next to each video.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "number of cycles to show (0 shows all)")
	historyCmd.Flags().BoolVarP(&historyDetails, "details", "d", false, "show details from each video's metadata file")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
		ui.PrintInfo("No history yet", cfg.History.Path)
		return nil
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	entries, err := store.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	ui.PrintHighlight("Recent Cycles")
	fmt.Fprintln(ui.Output)
	for _, e := range entries {
		fmt.Fprintln(ui.Output, formatEntry(e))
		if historyDetails {
			if line := sidecarDetails(e, cfg.Metadata.Format); line != "" {
				fmt.Fprintln(ui.Output, line)
			}
		}
	}

	fmt.Fprintln(ui.Output)
	ui.PrintInfo("Total", fmt.Sprintf("%d cycles, %d frames", stats.Total, stats.Frames))
	ui.PrintInfo("Outcome", fmt.Sprintf("%d succeeded, %d failed, %d cancelled", stats.Succeeded, stats.Failed, stats.Cancelled))
	if !stats.LastSuccess.IsZero() {
		ui.PrintInfo("Last video", stats.LastSuccess.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func formatEntry(e history.Entry) string {
	status := ui.Green(fmt.Sprintf("%-9s", e.Status))
	detail := e.VideoPath
	switch e.Status {
	case history.StatusFailed:
		status = ui.Red(fmt.Sprintf("%-9s", e.Status))
		detail = e.Error
	case history.StatusCancelled:
		status = ui.Yellow(fmt.Sprintf("%-9s", e.Status))
		detail = ""
	}
	return fmt.Sprintf("%s  %s  %3d/%-3d  %6s  %s",
		e.StartedAt.Local().Format("2006-01-02 15:04:05"),
		status,
		e.FramesGenerated,
		e.FramesRequested,
		ui.FormatDuration(e.Duration()),
		detail,
	)
}

// sidecarDetails summarises the metadata file of a successful cycle.
// It returns "" when there is no readable sidecar.
func sidecarDetails(e history.Entry, format string) string {
	if e.Status != history.StatusSuccess || !metadata.Exists(e.VideoPath, format) {
		return ""
	}
	meta, err := metadata.Load(e.VideoPath, format)
	if err != nil {
		return ui.Dim("    " + err.Error())
	}
	return ui.Dim(fmt.Sprintf("    %s %dx%d  seed %d  %s",
		meta.GetAspectRatio(), meta.Width, meta.Height, meta.Seed, meta.GetFormattedPrompt(60)))
}
