package db

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/raphaelgruber/surello/internal/models"
)

// MemoryStore is an in-memory stand-in for Client.
// It is primarily useful for testing the pipeline without a SurrealDB server.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	tables  map[string][]map[string]any
	scripts []string
	seq     int

	// ScriptFunc, when set, handles ExecuteScript calls.
	// By default every script succeeds with a single OK statement.
	ScriptFunc func(script string) ([]models.StatementResult, error)

	// CreateFunc, when set, is consulted before each Create and may veto it.
	CreateFunc func(table string, content map[string]any) error

	// SelectErr, when set, fails every Select.
	SelectErr error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]map[string]any)}
}

// Create stores a copy of content and returns a sequential record ID.
func (m *MemoryStore) Create(ctx context.Context, table string, content map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateFunc != nil {
		if err := m.CreateFunc(table, content); err != nil {
			return "", err
		}
	}

	m.seq++
	id := fmt.Sprintf("%s:%d", table, m.seq)
	row := maps.Clone(content)
	if row == nil {
		row = map[string]any{}
	}
	m.tables[table] = append(m.tables[table], row)
	return id, nil
}

// Select returns copies of every record in table.
func (m *MemoryStore) Select(ctx context.Context, table string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SelectErr != nil {
		return nil, m.SelectErr
	}

	rows := make([]map[string]any, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		rows = append(rows, maps.Clone(r))
	}
	return rows, nil
}

// ExecuteScript records script and returns the ScriptFunc response.
func (m *MemoryStore) ExecuteScript(ctx context.Context, script string) ([]models.StatementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.scripts = append(m.scripts, script)
	fn := m.ScriptFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(script)
	}
	return []models.StatementResult{{Status: "OK"}}, nil
}

// Rows returns the number of records in table.
func (m *MemoryStore) Rows(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// Records returns copies of the records in table.
func (m *MemoryStore) Records(table string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]map[string]any, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		rows = append(rows, maps.Clone(r))
	}
	return rows
}

// Scripts returns the scripts executed so far.
func (m *MemoryStore) Scripts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.scripts...)
}

// TotalRows returns the number of records across all tables.
func (m *MemoryStore) TotalRows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rows := range m.tables {
		n += len(rows)
	}
	return n
}
