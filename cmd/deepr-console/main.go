package main

import (
	"os"

	"github.com/eternisai/deepr-console/internal/config"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deepr-console",
	Short: "Terminal client for the AI Open Deep Research Engine",
	Long: `deepr-console connects to a deep research backend over WebSocket,
streams research plans and reports to the terminal, and saves
exported reports locally.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig and newLogger are shared by every subcommand.
func loadConfig() *config.Config {
	return config.LoadConfig()
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
}
