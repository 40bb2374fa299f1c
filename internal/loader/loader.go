// Package loader parses source files and pushes their content into the backend.
// There is one loader per supported source type.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/surello/internal/db"
	"github.com/raphaelgruber/surello/internal/models"
)

// Sentinel errors wrapped by LoadError.
var (
	// ErrRead indicates the source file could not be read.
	ErrRead = errors.New("read source")

	// ErrParse indicates the source file is malformed for its format.
	ErrParse = errors.New("parse source")

	// ErrBackendRejected indicates the backend refused a script or record.
	ErrBackendRejected = errors.New("backend rejected")
)

// Backend is the subset of the store handle used by loaders.
type Backend interface {
	Create(ctx context.Context, table string, content map[string]any) (string, error)
	ExecuteScript(ctx context.Context, script string) ([]models.StatementResult, error)
}

// Loader loads one file into the backend.
type Loader interface {
	Load(ctx context.Context, path string) (Stats, error)
}

// Stats summarizes what a single Load call wrote.
type Stats struct {
	Collection string // target collection, empty for scripts
	Records    int    // records created
	Statements int    // script statements executed
}

// LoadError describes a failed load. Row is the 1-based data row or line
// that failed, or 0 when the failure is not tied to a row.
type LoadError struct {
	Path string
	Type models.SourceType
	Row  int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("load %s (%s) row %d: %v", e.Path, e.Type, e.Row, e.Err)
	}
	return fmt.Sprintf("load %s (%s): %v", e.Path, e.Type, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// CollectionName derives the target collection for a tabular or line-records
// file: "file_" followed by the base name with every "." replaced by "_".
// orders.csv -> file_orders_csv. Existing data depends on this exact scheme.
func CollectionName(path string) string {
	return "file_" + strings.ReplaceAll(filepath.Base(path), ".", "_")
}

// Registry maps each source type to its loader.
type Registry map[models.SourceType]Loader

// NewRegistry builds the default registry over backend.
func NewRegistry(backend Backend, logger *slog.Logger) Registry {
	return Registry{
		models.SourceScript:      NewScriptLoader(backend, logger),
		models.SourceTabular:     NewTabularLoader(backend),
		models.SourceLineRecords: NewLineRecordsLoader(backend),
	}
}

// recordWriter creates one record per row and tracks progress for errors.
type recordWriter struct {
	backend    Backend
	path       string
	typ        models.SourceType
	collection string
	created    int
}

func newRecordWriter(backend Backend, path string, typ models.SourceType) *recordWriter {
	return &recordWriter{
		backend:    backend,
		path:       path,
		typ:        typ,
		collection: CollectionName(path),
	}
}

// write creates one record. A transaction conflict is retried once.
func (w *recordWriter) write(ctx context.Context, row int, record map[string]any) error {
	_, err := w.backend.Create(ctx, w.collection, record)
	if errors.Is(err, db.ErrTransactionConflict) {
		_, err = w.backend.Create(ctx, w.collection, record)
	}
	if err != nil {
		return w.fail(row, fmt.Errorf("%w: %w", ErrBackendRejected, err))
	}
	w.created++
	return nil
}

func (w *recordWriter) fail(row int, err error) *LoadError {
	return &LoadError{Path: w.path, Type: w.typ, Row: row, Err: err}
}

func (w *recordWriter) stats() Stats {
	return Stats{Collection: w.collection, Records: w.created}
}
