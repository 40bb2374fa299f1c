package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/surello/internal/config"
	"github.com/raphaelgruber/surello/internal/history"
	"github.com/raphaelgruber/surello/internal/loader"
	"github.com/raphaelgruber/surello/internal/metrics"
	"github.com/raphaelgruber/surello/internal/scanner"
	"github.com/raphaelgruber/surello/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	runFailFast       bool
	runRecordFailures bool
	runFollowSymlinks bool
	runWatch          bool
	runProgress       bool
	runStats          bool
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Load every new file under a directory",
	Long: `Scan a directory recursively and load every supported file that has not
been loaded before. The directory defaults to SURELLO_DATA_DIR (surello_data).

A failed file is logged and left unrecorded, so it is retried on the next run.
Use --fail-fast to stop at the first failure instead.

Examples:
  surello run
  surello run ./seed
  surello run ./seed --fail-fast
  surello run ./seed --watch
  surello run ./seed --stats`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "abort the run on the first failed file")
	runCmd.Flags().BoolVar(&runRecordFailures, "record-failures", false, "append a history entry for failed files")
	runCmd.Flags().BoolVar(&runFollowSymlinks, "follow-symlinks", false, "follow symbolic links while scanning")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "keep running and load files as they appear")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "show a progress bar (default: when stdout is a terminal)")
	runCmd.Flags().BoolVar(&runStats, "stats", false, "print timing statistics after the run")
}

// dataDir returns the directory argument or the configured default.
func dataDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.DataDir
}

// applyRunFlags overrides config values with flags set on the command line.
func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("fail-fast") {
		cfg.FailFast = runFailFast
	}
	if flags.Changed("record-failures") {
		cfg.RecordFailures = runRecordFailures
	}
	if flags.Changed("follow-symlinks") {
		cfg.FollowSymlinks = runFollowSymlinks
	}
}

// newOrchestrator wires the pipeline over the connected db client.
func newOrchestrator(root string, collector *metrics.Collector, onEvent func(service.Event), log *slog.Logger) *service.Orchestrator {
	return service.NewOrchestrator(
		history.New(dbClient),
		loader.NewRegistry(dbClient, log),
		scanner.New(scanner.Options{FollowSymlinks: cfg.FollowSymlinks, Logger: log}),
		service.Options{
			Root:           root,
			FailFast:       cfg.FailFast,
			RecordFailures: cfg.RecordFailures,
			Metrics:        collector,
			OnEvent:        onEvent,
		},
		log,
	)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	applyRunFlags(cmd)
	root := dataDir(args)
	collector := metrics.NewCollector()

	useProgress := runProgress
	if !cmd.Flags().Changed("progress") {
		useProgress = term.IsTerminal(int(os.Stdout.Fd())) && !runWatch
	}

	var (
		result *service.RunResult
		err    error
	)
	if useProgress {
		// Log lines would tear the progress display; keep only the file log.
		fileLogger, cleanup := config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
		defer cleanup()
		result, err = runWithProgress(ctx, root, collector, fileLogger)
	} else {
		orch := newOrchestrator(root, collector, printEvent(os.Stdout), logger)
		result, err = orch.Run(ctx)
	}
	if !useProgress {
		// The progress view renders its own summary.
		printRunSummary(os.Stdout, result)
	}

	if runStats {
		printStats(os.Stdout, collector.Snapshot())
	}
	if err != nil {
		return err
	}

	if !runWatch {
		return runError(result)
	}

	if failed := runError(result); failed != nil {
		logger.Warn("initial run had failures; watching anyway", "error", failed)
	}
	orch := newOrchestrator(root, collector, printEvent(os.Stdout), logger)
	w := service.NewWatcher(orch, logger)
	w.OnRun = func(r *service.RunResult, _ error) {
		printRunSummary(os.Stdout, r)
	}
	fmt.Fprintf(os.Stdout, "Watching %s for changes (Ctrl+C to stop)\n", root)
	return w.Watch(ctx)
}

// printEvent writes each per-file decision as a status line.
func printEvent(w io.Writer) func(service.Event) {
	return func(ev service.Event) {
		fmt.Fprintln(w, ev.Message())
	}
}

// runWithProgress plans the run to learn the file count, then executes it
// behind a progress bar.
func runWithProgress(ctx context.Context, root string, collector *metrics.Collector, log *slog.Logger) (*service.RunResult, error) {
	planner := newOrchestrator(root, nil, nil, log)
	plan, err := planner.Plan(ctx)
	if err != nil {
		return &service.RunResult{State: service.StateAborted}, err
	}
	total := service.CountActions(plan)[service.ActionLoad]

	return RunLoadProgress(ctx, total, func(ctx context.Context, onEvent func(service.Event)) (*service.RunResult, error) {
		return newOrchestrator(root, collector, onEvent, log).Run(ctx)
	})
}
