// Command lted runs the LTED membership service and its maintenance jobs.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lted/internal/platform/config"
	"lted/internal/platform/logger"
)

const programName = "lted"

var globalFlags = struct {
	logLevel string
}{}

// loadConfig reads the environment and builds the process logger. A
// --log-level flag overrides LTED_LOG_LEVEL.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if globalFlags.logLevel != "" {
		cfg.LogLevel = globalFlags.logLevel
	}
	log := logger.New(cfg.LogLevel).With("component", programName)
	slog.SetDefault(log)
	return cfg, log, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Legislative district committee membership service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&globalFlags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		serveCommand(),
		reconcileCommand(),
		migrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
