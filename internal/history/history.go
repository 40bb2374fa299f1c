// Package history reads and appends execution records in the backend's
// history collection. Entries are append-only.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/raphaelgruber/surello/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

var (
	// ErrRead indicates the history collection could not be fetched.
	ErrRead = errors.New("read history")

	// ErrWrite indicates a history entry could not be appended.
	ErrWrite = errors.New("write history")
)

// Backend is the subset of the store handle used by the accessor.
type Backend interface {
	Select(ctx context.Context, table string) ([]map[string]any, error)
	Create(ctx context.Context, table string, content map[string]any) (string, error)
}

// Store is the history accessor.
type Store struct {
	backend Backend
	table   string
}

// New creates a Store over the reserved history collection.
func New(backend Backend) *Store {
	return &Store{backend: backend, table: models.HistoryTable}
}

// LoadAll fetches the entire history collection.
func (s *Store) LoadAll(ctx context.Context) (*Snapshot, error) {
	rows, err := s.backend.Select(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	entries := make([]models.HistoryEntry, 0, len(rows))
	for i, row := range rows {
		entry, err := decodeEntry(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrRead, i, err)
		}
		entries = append(entries, entry)
	}
	return NewSnapshot(entries), nil
}

// Append inserts one immutable entry and returns its record ID.
func (s *Store) Append(ctx context.Context, entry models.HistoryEntry) (string, error) {
	id, err := s.backend.Create(ctx, s.table, entry.Content())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrWrite, entry.SourcePath, err)
	}
	return id, nil
}

// Filter narrows a history listing. Zero values match everything.
type Filter struct {
	Type       models.SourceType
	PathPrefix string
	FailedOnly bool
}

func (f Filter) match(e models.HistoryEntry) bool {
	if f.Type != "" && e.SourceType != f.Type {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(e.SourcePath, f.PathPrefix) {
		return false
	}
	if f.FailedOnly && e.Succeeded() {
		return false
	}
	return true
}

// List returns the entries matching filter, oldest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]models.HistoryEntry, error) {
	snap, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.HistoryEntry
	for _, e := range snap.entries {
		if filter.match(e) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b models.HistoryEntry) int {
		if c := a.ExecutedAt().Compare(b.ExecutedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.SourcePath, b.SourcePath)
	})
	return out, nil
}

// decodeEntry converts a raw record into a HistoryEntry.
// Missing string fields decode as empty; wrongly typed fields are an error.
func decodeEntry(row map[string]any) (models.HistoryEntry, error) {
	var e models.HistoryEntry
	var err error

	if e.SourcePath, err = stringField(row, "source_path"); err != nil {
		return e, err
	}
	st, err := stringField(row, "source_type")
	if err != nil {
		return e, err
	}
	e.SourceType = models.SourceType(st)
	if e.ExecutionDatetimeUTC, err = stringField(row, "execution_datetime_utc"); err != nil {
		return e, err
	}
	if e.ExecutionResult, err = stringField(row, "execution_result"); err != nil {
		return e, err
	}

	switch id := row["id"].(type) {
	case surrealmodels.RecordID:
		e.ID = &id
	case *surrealmodels.RecordID:
		e.ID = id
	}
	return e, nil
}

func stringField(row map[string]any, key string) (string, error) {
	v, ok := row[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s: unexpected type %T", key, v)
	}
	return s, nil
}
