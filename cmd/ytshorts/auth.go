package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"ytshorts/pkg/auth"
	"ytshorts/pkg/ui"
)

var loginEndpoint string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API tokens",
	Long: `Manage API tokens for the text-to-image server.

Tokens are stored in the system keychain when available and in an
encrypted file otherwise. YTSHORTS_API_TOKEN is read as a fallback.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store an API token",
	Example: `  # Store the default token
  ytshorts auth login

  # Store a token for a hosted gateway under its own profile
  ytshorts auth login gateway --endpoint https://sd.example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored API token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored API tokens",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVar(&loginEndpoint, "endpoint", "", "endpoint this token belongs to")
}

func profileArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	profile := profileArg(args)

	auth.ShowTokenGuide()
	fmt.Println()

	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Printf("A token for '%s' already exists. Replace it? (y/N): ", profile)
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Printf("API token for '%s': ", profile)
	value, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if value == "" {
		return errors.New("token must not be empty")
	}

	token := &auth.Token{
		Profile:      profile,
		Endpoint:     loginEndpoint,
		Value:        value,
		LastModified: time.Now(),
	}
	if err := manager.Store(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Token saved for '%s': %s", profile, auth.SanitizeToken(value)))
	if profile != auth.DefaultProfile {
		fmt.Printf("\nUse it with:\n  ytshorts generate --profile %s\n", profile)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	profile := profileArg(args)

	if err := manager.Delete(profile); err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			ui.PrintWarning("No stored token for " + profile)
			return nil
		}
		return fmt.Errorf("failed to remove token: %w", err)
	}
	ui.PrintSuccess("Token removed: " + profile)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	tokens, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	if len(tokens) == 0 {
		ui.PrintInfo("No stored tokens", "Use 'ytshorts auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Tokens")
	fmt.Fprintln(ui.Output)
	for _, t := range tokens {
		fmt.Fprintf(ui.Output, "%s  %s\n", ui.Cyan(fmt.Sprintf("%-12s", t.Profile)), auth.SanitizeToken(t.Value))
		if t.Endpoint != "" {
			fmt.Fprintf(ui.Output, "  Endpoint: %s\n", t.Endpoint)
		}
		if !t.LastModified.IsZero() {
			fmt.Fprintf(ui.Output, "  Last Modified: %s\n", t.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	if os.Getenv(auth.TokenEnvVar) != "" {
		fmt.Fprintf(ui.Output, "\n%s is set and used when no stored token exists\n", auth.TokenEnvVar)
	}
	return nil
}

// readPassword reads a secret from stdin without echoing when stdin is a terminal
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
