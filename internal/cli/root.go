// Package cli provides the command-line interface for surello.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/surello/internal/config"
	"github.com/raphaelgruber/surello/internal/db"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and db client
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	dbClient   *db.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "surello",
	Short: "Idempotent bulk loader for SurrealDB",
	Long: `Surello loads a directory of SurrealQL scripts, CSV files and JSON Lines
files into SurrealDB. Every successfully loaded file is recorded in the
surello_history table and skipped on later runs, so running it twice over
the same directory loads each file once.

Supported files:
  *.surql   executed as a SurrealQL script
  *.csv     one record per row in table file_<name>_csv
  *.jsonl   one record per line in table file_<name>_jsonl`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)

		ctx := cmd.Context()
		dbClient, err = db.NewClient(ctx, cfg.DB(), logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeResources()
	},
}

// closeResources releases the db client and the log file.
// Safe to call more than once.
func closeResources() {
	if dbClient != nil {
		if err := dbClient.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
		dbClient = nil
	}
	if logCleanup != nil {
		_ = logCleanup()
		logCleanup = nil
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command context; a run in progress stops
// before its next file.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRun is skipped when RunE fails.
		closeResources()
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(historyCmd)
}
