package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/askdesk/internal/config"
	"github.com/ziadkadry99/askdesk/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "askdesk",
	Short: "Grounded help-desk chat with human handoff",
	Long: `askdesk answers questions from a knowledge-retrieval service, grounds
every reply in the retrieved passages, and flags conversations that need
a human. It serves chat over HTTP and WebSocket, runs evaluation suites,
and exposes the assistant to AI agents via MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".askdesk.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `askdesk init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays free for command output and the MCP protocol.
func newLogger(cfg *config.Config) *slog.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return logger
}
