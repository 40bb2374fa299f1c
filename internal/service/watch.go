package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last filesystem change
// before a new run starts.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-runs the orchestrator whenever files under the root change.
// Runs never overlap: changes arriving during a run schedule one more run.
type Watcher struct {
	orch     *Orchestrator
	logger   *slog.Logger
	debounce time.Duration

	// OnRun is called after every triggered run. Optional.
	OnRun func(*RunResult, error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for orch's root directory.
func NewWatcher(orch *Orchestrator, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{orch: orch, logger: logger, debounce: DefaultDebounce}
}

// SetDebounce overrides the quiet period.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watch blocks until ctx is done. It does not perform an initial run.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	root := w.orch.Root()
	if err := w.addTree(fw, root); err != nil {
		return err
	}
	w.logger.Info("watching for changes", "root", root, "debounce", w.debounce)

	trigger := make(chan struct{}, 1)
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				// New directories must be watched explicitly.
				if err := w.addTree(fw, event.Name); err != nil {
					w.logger.Debug("watch new path", "path", event.Name, "error", err)
				}
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
				w.schedule(trigger)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-trigger:
			result, err := w.orch.Run(ctx)
			if err != nil && ctx.Err() == nil {
				w.logger.Error("triggered run failed", "error", err)
			}
			if w.OnRun != nil {
				w.OnRun(result, err)
			}
		}
	}
}

// schedule debounces rapid changes into a single trigger.
func (w *Watcher) schedule(trigger chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// addTree watches dir and every directory below it. Non-directories are ignored.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("skipping unwatchable directory", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
