package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/siherrmann/mapper/helper"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	envFile string
	timeout time.Duration

	// Logger
	logger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mapper",
	Short: "Map entities of two catalogs with a text generation service",
	Long: `mapper relates every entity of a source catalog (pain points, strategic
initiatives, data entities, applications) to entities of a target catalog
(capabilities, data entities, applications).

Sources are sent in batches to a text generation service. Replies of the form
"ID -> TARGET1, TARGET2" are validated against both catalogs and stored per source,
so mapping a source again replaces its earlier relationships.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine, the environment may already be set.
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env") {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = helper.NewLogger(os.Stderr, level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file with API keys and database settings")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Timeout of the whole command")

	rootCmd.AddCommand(newMapCmd())
	rootCmd.AddCommand(newRetryCmd())
	rootCmd.AddCommand(sheetsCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext is cancelled on SIGINT/SIGTERM or after the global timeout.
// Batches finished before the cancellation are kept.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal, stopping after the current batch")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
