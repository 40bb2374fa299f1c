// Package models defines data structures for the surello loader.
package models

import (
	"path/filepath"
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// HistoryTable is the reserved collection holding execution history.
const HistoryTable = "surello_history"

// ResultOK is the execution_result value of a successful load.
const ResultOK = "ok"

// SourceType identifies the format of a source file.
// Values are persisted in history entries and must not change.
type SourceType string

const (
	SourceScript      SourceType = "surql"
	SourceTabular     SourceType = "csv"
	SourceColumnar    SourceType = "parquet" // reserved, no loader yet
	SourceLineRecords SourceType = "jsonlines"
)

// extensionTypes maps lowercase file extensions to source types.
var extensionTypes = map[string]SourceType{
	".surql": SourceScript,
	".csv":   SourceTabular,
	".jsonl": SourceLineRecords,
}

// Classify returns the source type for path based on its extension.
// The second return value is false for unsupported or missing extensions.
func Classify(path string) (SourceType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	t, ok := extensionTypes[ext]
	return t, ok
}

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceScript, SourceTabular, SourceColumnar, SourceLineRecords:
		return true
	}
	return false
}

// HistoryEntry is an immutable record of one file execution attempt.
type HistoryEntry struct {
	ID                   *surrealmodels.RecordID `json:"id,omitempty"`
	SourcePath           string                  `json:"source_path"`
	SourceType           SourceType              `json:"source_type"`
	ExecutionDatetimeUTC string                  `json:"execution_datetime_utc"`
	ExecutionResult      string                  `json:"execution_result"`
}

// NewHistoryEntry builds an entry stamped with the current UTC time.
func NewHistoryEntry(path string, t SourceType, result string) HistoryEntry {
	return HistoryEntry{
		SourcePath:           path,
		SourceType:           t,
		ExecutionDatetimeUTC: time.Now().UTC().Format(time.RFC3339Nano),
		ExecutionResult:      result,
	}
}

// Succeeded reports whether the entry marks a successful execution.
func (e HistoryEntry) Succeeded() bool {
	return e.ExecutionResult == ResultOK
}

// ExecutedAt parses the execution timestamp.
// Returns the zero time if the stored value is not RFC 3339.
func (e HistoryEntry) ExecutedAt() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, e.ExecutionDatetimeUTC)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Content returns the field mapping written to the backend.
func (e HistoryEntry) Content() map[string]any {
	return map[string]any{
		"source_path":            e.SourcePath,
		"source_type":            string(e.SourceType),
		"execution_datetime_utc": e.ExecutionDatetimeUTC,
		"execution_result":       e.ExecutionResult,
	}
}

// StatementResult is the backend's response to one statement of a script.
type StatementResult struct {
	Status string
	Time   string
	Result any
}
