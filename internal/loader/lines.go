package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/raphaelgruber/surello/internal/models"
)

// maxLineSize bounds a single JSON Lines record.
const maxLineSize = 16 * 1024 * 1024

// LineRecordsLoader loads JSON Lines files: one JSON object per line.
type LineRecordsLoader struct {
	backend Backend
}

// NewLineRecordsLoader creates a JSON Lines loader.
func NewLineRecordsLoader(backend Backend) *LineRecordsLoader {
	return &LineRecordsLoader{backend: backend}
}

// Load creates one record per non-blank line.
func (l *LineRecordsLoader) Load(ctx context.Context, path string) (Stats, error) {
	w := newRecordWriter(l.backend, path, models.SourceLineRecords)

	f, err := os.Open(path)
	if err != nil {
		return Stats{}, w.fail(0, fmt.Errorf("%w: %w", ErrRead, err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return w.stats(), w.fail(line, err)
		}

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		record, err := decodeObject(raw)
		if err != nil {
			return w.stats(), w.fail(line, fmt.Errorf("%w: %w", ErrParse, err))
		}
		if err := w.write(ctx, line, record); err != nil {
			return w.stats(), err
		}
	}
	if err := scanner.Err(); err != nil {
		return w.stats(), w.fail(line+1, fmt.Errorf("%w: %w", ErrRead, err))
	}

	return w.stats(), nil
}

// decodeObject parses one JSON object. Numbers become int64 when integral,
// float64 otherwise.
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	if dec.InputOffset() != int64(len(raw)) {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	return normalizeNumbers(record).(map[string]any), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	}
	return v
}
