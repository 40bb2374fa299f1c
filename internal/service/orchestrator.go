// Package service provides the load pipeline: scan, classify, deduplicate
// against history, dispatch to a loader and record the outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/surello/internal/history"
	"github.com/raphaelgruber/surello/internal/loader"
	"github.com/raphaelgruber/surello/internal/metrics"
	"github.com/raphaelgruber/surello/internal/models"
	"github.com/raphaelgruber/surello/internal/scanner"
)

// HistoryStore is the history accessor used by the orchestrator.
type HistoryStore interface {
	LoadAll(ctx context.Context) (*history.Snapshot, error)
	Append(ctx context.Context, entry models.HistoryEntry) (string, error)
}

// FileScanner produces the files to consider.
type FileScanner interface {
	Scan(root string) (iter.Seq2[scanner.Entry, error], error)
}

// State is the terminal state of a run.
type State string

const (
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Options configures a run.
type Options struct {
	// Root is the directory to scan.
	Root string
	// FailFast aborts the run on the first load failure instead of
	// continuing with the next file.
	FailFast bool
	// RecordFailures appends a history entry carrying the error text for
	// failed loads. Such entries never count as executed.
	RecordFailures bool
	// Metrics receives per-operation timings. Optional.
	Metrics *metrics.Collector
	// OnEvent is called synchronously for every per-file decision. Optional.
	OnEvent func(Event)
}

// FileFailure describes one file that failed to load.
type FileFailure struct {
	Path string
	Type models.SourceType
	Err  error
}

// RunResult summarizes a run.
type RunResult struct {
	RunID       string
	State       State
	Loaded      int // loaded and recorded
	Unrecorded  int // loaded but the history append failed
	Skipped     int // already executed
	Unsupported int
	Failed      int
	ScanErrors  int
	Records     int // records created by tabular and line-records loads
	Failures    []FileFailure
	Duration    time.Duration
}

// Processed returns the number of files dispatched to a loader.
func (r *RunResult) Processed() int {
	return r.Loaded + r.Unrecorded + r.Failed
}

// Orchestrator runs the load pipeline. One run is strictly sequential.
type Orchestrator struct {
	history HistoryStore
	loaders loader.Registry
	scanner FileScanner
	opts    Options
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator. All state is passed in; the
// history snapshot is loaded at the start of every run.
func NewOrchestrator(h HistoryStore, loaders loader.Registry, sc FileScanner, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		history: h,
		loaders: loaders,
		scanner: sc,
		opts:    opts,
		logger:  logger,
	}
}

// Root returns the scanned directory.
func (o *Orchestrator) Root() string {
	return o.opts.Root
}

// Run executes one pass over the root directory.
// The returned result is never nil. A non-nil error means the run aborted:
// the history could not be read, the root could not be scanned, the context
// was cancelled, or a load failed with FailFast set.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: uuid.New().String()[:8], State: StateCompleted}
	logger := o.logger.With("run_id", result.RunID)
	started := time.Now()
	defer func() { result.Duration = time.Since(started) }()

	logger.Info("run starting", "root", o.opts.Root)

	snap, seq, err := o.prepare(ctx)
	if err != nil {
		result.State = StateAborted
		logger.Error("run aborted", "error", err)
		return result, err
	}
	logger.Info("history loaded", "entries", snap.Len(), "executed", snap.Executed())

	for entry, scanErr := range seq {
		if err := ctx.Err(); err != nil {
			result.State = StateAborted
			logger.Warn("run cancelled", "error", err)
			return result, fmt.Errorf("run cancelled: %w", err)
		}

		if scanErr != nil {
			result.ScanErrors++
			logger.Warn("skipping unreadable entry", "path", entry.Path, "error", scanErr)
			o.emit(Event{Kind: EventScanError, Path: entry.Path, Err: scanErr})
			continue
		}

		p := o.decide(snap, entry)
		switch p.Action {
		case ActionUnsupported:
			result.Unsupported++
			logger.Info("unsupported type or unknown file", "path", p.Path)
			o.emit(Event{Kind: EventUnsupported, Path: p.Path, Type: p.Type})

		case ActionSkip:
			result.Skipped++
			logger.Info("skipping previously executed file",
				"path", p.Path,
				"type", p.Type,
				"executed_at", p.Previous.ExecutionDatetimeUTC)
			o.emit(Event{Kind: EventSkipped, Path: p.Path, Type: p.Type, Previous: p.Previous})

		case ActionLoad:
			if err := o.load(ctx, logger, p, result); err != nil {
				result.State = StateAborted
				logger.Error("run aborted", "path", p.Path, "error", err)
				return result, fmt.Errorf("abort at %s: %w", p.Path, err)
			}
		}
	}

	logger.Info("run complete",
		"loaded", result.Loaded,
		"skipped", result.Skipped,
		"unsupported", result.Unsupported,
		"failed", result.Failed,
		"unrecorded", result.Unrecorded,
		"scan_errors", result.ScanErrors)
	return result, nil
}

// prepare loads the history snapshot and opens the scan.
func (o *Orchestrator) prepare(ctx context.Context) (*history.Snapshot, iter.Seq2[scanner.Entry, error], error) {
	started := time.Now()
	snap, err := o.history.LoadAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	o.opts.Metrics.RecordTiming(metrics.OpHistoryLoad, time.Since(started))

	started = time.Now()
	seq, err := o.scanner.Scan(o.opts.Root)
	if err != nil {
		return nil, nil, err
	}
	o.opts.Metrics.RecordTiming(metrics.OpScan, time.Since(started))
	return snap, seq, nil
}

// load dispatches one file to its loader and records the outcome.
// Returns an error only when the run must abort.
func (o *Orchestrator) load(ctx context.Context, logger *slog.Logger, p PlannedFile, result *RunResult) error {
	l := o.loaders[p.Type]

	logger.Info("loading file", "path", p.Path, "type", p.Type, "symlink", p.Symlink)
	started := time.Now()
	stats, err := l.Load(ctx, p.Path)
	o.opts.Metrics.RecordLoad(metrics.LoadOp(p.Type), time.Since(started), stats.Records)

	if err != nil {
		result.Failed++
		result.Records += stats.Records
		result.Failures = append(result.Failures, FileFailure{Path: p.Path, Type: p.Type, Err: err})
		logger.Error("load failed", "path", p.Path, "type", p.Type, "records_created", stats.Records, "error", err)
		o.emit(Event{Kind: EventFailed, Path: p.Path, Type: p.Type, Stats: stats, Err: err})

		if o.opts.RecordFailures && ctx.Err() == nil {
			if _, appendErr := o.record(ctx, p, err.Error()); appendErr != nil {
				logger.Warn("failed to record load failure", "path", p.Path, "error", appendErr)
			}
		}
		if o.opts.FailFast || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}

	result.Records += stats.Records
	id, err := o.record(ctx, p, models.ResultOK)
	if err != nil {
		result.Unrecorded++
		logger.Error("loaded but not recorded; file will be retried next run", "path", p.Path, "error", err)
		o.emit(Event{Kind: EventUnrecorded, Path: p.Path, Type: p.Type, Stats: stats, Err: err})
		return nil
	}

	result.Loaded++
	logger.Info("file loaded",
		"path", p.Path,
		"type", p.Type,
		"records", stats.Records,
		"statements", stats.Statements,
		"history_id", id)
	o.emit(Event{Kind: EventLoaded, Path: p.Path, Type: p.Type, Stats: stats})
	return nil
}

func (o *Orchestrator) record(ctx context.Context, p PlannedFile, outcome string) (string, error) {
	started := time.Now()
	id, err := o.history.Append(ctx, models.NewHistoryEntry(p.Path, p.Type, outcome))
	o.opts.Metrics.RecordTiming(metrics.OpHistoryAppend, time.Since(started))
	return id, err
}

func (o *Orchestrator) emit(ev Event) {
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(ev)
	}
}
