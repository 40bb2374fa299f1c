package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/surello/internal/models"
)

// ScriptLoader submits a whole .surql file as one statement batch.
type ScriptLoader struct {
	backend Backend
	logger  *slog.Logger
}

// NewScriptLoader creates a script loader. A nil logger uses slog.Default.
func NewScriptLoader(backend Backend, logger *slog.Logger) *ScriptLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptLoader{backend: backend, logger: logger}
}

// Load reads the file and executes it. Any backend error fails the load.
func (l *ScriptLoader) Load(ctx context.Context, path string) (Stats, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, &LoadError{Path: path, Type: models.SourceScript, Err: fmt.Errorf("%w: %w", ErrRead, err)}
	}

	results, err := l.backend.ExecuteScript(ctx, string(script))
	if err != nil {
		return Stats{}, &LoadError{Path: path, Type: models.SourceScript, Err: fmt.Errorf("%w: %w", ErrBackendRejected, err)}
	}

	for i, r := range results {
		l.logger.Debug("script statement", "file", path, "statement", i+1, "status", r.Status, "time", r.Time)
	}
	return Stats{Statements: len(results)}, nil
}
