package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/surello/internal/models"
)

// TabularLoader loads CSV files with a header row.
// Each data row becomes one record mapping column name to string value.
type TabularLoader struct {
	backend Backend
}

// NewTabularLoader creates a CSV loader.
func NewTabularLoader(backend Backend) *TabularLoader {
	return &TabularLoader{backend: backend}
}

// Load creates one record per data row. Rows are not batched: a failure
// midway leaves the rows created so far in place.
func (l *TabularLoader) Load(ctx context.Context, path string) (Stats, error) {
	w := newRecordWriter(l.backend, path, models.SourceTabular)

	f, err := os.Open(path)
	if err != nil {
		return Stats{}, w.fail(0, fmt.Errorf("%w: %w", ErrRead, err))
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return w.stats(), nil
	}
	if err != nil {
		return w.stats(), w.fail(0, fmt.Errorf("%w: header: %w", ErrParse, err))
	}
	// Strip a UTF-8 byte order mark from the first column name.
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return w.stats(), w.fail(row, err)
		}

		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return w.stats(), w.fail(row, fmt.Errorf("%w: %w", ErrParse, err))
		}

		record := make(map[string]any, len(header))
		for i, col := range header {
			record[col] = fields[i]
		}
		if err := w.write(ctx, row, record); err != nil {
			return w.stats(), err
		}
	}

	return w.stats(), nil
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
