// Command console is the pushconsole operator CLI. SDK-facing commands run a
// lifecycle controller against a simulated device and a pushconsole server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/pushconsole/internal/config"
	"github.com/kiranshivaraju/pushconsole/internal/gatewayclient"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	apiKey    string
	timeout   time.Duration
	verbose   bool

	// Set by initializeClient
	cfg    *config.Config
	client *gatewayclient.Client
	logger *slog.Logger
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "console",
		Short: "pushconsole operator console",
		Long: `console drives the pushconsole gateway the way a browser session would:
it bootstraps a simulated push device, tags it with the selected website and
creates segments, lists subscribers and sends test notifications.`,
		PersistentPreRunE: initializeClient,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("PUSHCONSOLE_SERVER", "http://localhost:8080"), "pushconsole server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PUSHCONSOLE_API_KEY"), "API key for the pushconsole server")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log lifecycle transitions")

	rootCmd.AddCommand(newTenantsCommand())
	rootCmd.AddCommand(newSegmentCommand())
	rootCmd.AddCommand(newSubscribersCommand())
	rootCmd.AddCommand(newSendCommand())
	rootCmd.AddCommand(newSubscribeCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newKeysCommand())

	return rootCmd
}

// initializeClient loads configuration and sets up the logger and the
// gateway client.
func initializeClient(cmd *cobra.Command, args []string) error {
	// Skip client initialization for help commands
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err = gatewayclient.New(gatewayclient.Config{
		ServerURL: serverURL,
		APIKey:    apiKey,
		Timeout:   timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
