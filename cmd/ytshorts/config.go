package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"ytshorts/pkg/auth"
	"ytshorts/pkg/config"
	"ytshorts/pkg/diffusion"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage ytshorts configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (YTSHORTS_*)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source.

The API token is never part of the file and is shown masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the environment",
	Long: `Validate the configuration and check that:
  - every value is in range
  - the encoder binary can be found
  - the frame, output and history directories can be created

With --remote it also asks the diffusion server for its checkpoints and
checks that the configured model is among them.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var validateRemote bool

func init() {
	configValidateCmd.Flags().BoolVar(&validateRemote, "remote", false, "also check the diffusion server and model")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const configHeader = `# ytshorts configuration
#
# Durations use Go syntax: 500ms, 30s, 2m.
# The API token is read from YTSHORTS_API_TOKEN or the token store
# ("ytshorts auth login") and never from this file.

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Point diffusion.endpoint at your text-to-image server")
	fmt.Fprintln(ui.Output, "2. Run 'ytshorts config validate'")
	fmt.Fprintln(ui.Output, "3. Start producing with 'ytshorts generate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))
	fmt.Fprintln(ui.Output)

	token := "(not set)"
	if cfg.Diffusion.APIToken != "" {
		token = auth.SanitizeToken(cfg.Diffusion.APIToken)
	}
	ui.PrintInfo("API token", token)
	source := configFile
	if source == "" {
		source = "(search path)"
	}
	ui.PrintInfo("Config file", source)
	return nil
}

// checkEnvironment returns problems that would make generate fail at runtime
func checkEnvironment(cfg *config.Config) []error {
	var problems []error

	if _, err := exec.LookPath(cfg.Encoder.Binary); err != nil {
		problems = append(problems, fmt.Errorf("encoder binary %q not found: %w", cfg.Encoder.Binary, err))
	}

	dirs := []string{cfg.Frames.BaseDirectory, cfg.Encoder.OutputDirectory}
	if cfg.History.Enabled {
		dirs = append(dirs, filepath.Dir(cfg.History.Path))
	}
	if cfg.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.Logging.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create %s: %w", dir, err))
		}
	}
	if cfg.Loop.PromptsFile != "" {
		if _, err := os.Stat(cfg.Loop.PromptsFile); err != nil {
			problems = append(problems, fmt.Errorf("prompts file: %w", err))
		}
	}
	return problems
}

// checkServer lists the server's checkpoints and looks for the configured model
func checkServer(ctx context.Context, cfg *config.Config) error {
	if cfg.Diffusion.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Diffusion.Timeout)
		defer cancel()
	}

	client := diffusion.NewClient(cfg.Diffusion, logger.GetLogger())
	model, err := client.CheckModel(ctx, cfg.Diffusion.Model)
	if err != nil {
		return fmt.Errorf("diffusion server %s: %w", cfg.Diffusion.Endpoint, err)
	}
	if model != nil {
		ui.PrintInfo("Model", model.Title)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if problems := checkEnvironment(cfg); len(problems) > 0 {
		ui.PrintError("Environment has problems:")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %v\n", p)
		}
		return errors.Join(problems...)
	}

	if validateRemote {
		resolveToken(cfg, auth.DefaultProfile, logger.GetLogger())
		ctx, stop := signalContext()
		defer stop()
		if err := checkServer(ctx, cfg); err != nil {
			ui.PrintError("Diffusion server check failed")
			return err
		}
		ui.PrintSuccess("Diffusion server reachable")
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Endpoint: %s\n", cfg.Diffusion.Endpoint)
	fmt.Fprintf(ui.Output, "  Frames per video: %d\n", cfg.Frames.Count)
	fmt.Fprintf(ui.Output, "  Interval: %s\n", cfg.Loop.Interval)
	fmt.Fprintf(ui.Output, "  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Fprintf(ui.Output, "  Output directory: %s\n", cfg.Encoder.OutputDirectory)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
