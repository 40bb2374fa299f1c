package history

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/surello/internal/db"
	"github.com/raphaelgruber/surello/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestStoreAppendAndLoadAll(t *testing.T) {
	ctx := context.Background()
	backend := db.NewMemoryStore()
	store := New(backend)

	snap, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())

	_, err = store.Append(ctx, models.NewHistoryEntry("surello_data/a.surql", models.SourceScript, models.ResultOK))
	require.NoError(t, err)
	_, err = store.Append(ctx, models.NewHistoryEntry("surello_data/b.csv", models.SourceTabular, "parse: bad row"))
	require.NoError(t, err)

	assert.Equal(t, 2, backend.Rows(models.HistoryTable))

	snap, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 1, snap.Executed())

	entry, ok := snap.Lookup("surello_data/a.surql", models.SourceScript)
	require.True(t, ok)
	assert.Equal(t, models.ResultOK, entry.ExecutionResult)

	_, ok = snap.Lookup("surello_data/b.csv", models.SourceTabular)
	assert.False(t, ok, "failed attempts must not count as executed")

	_, ok = snap.Lookup("surello_data/a.surql", models.SourceTabular)
	assert.False(t, ok, "source type is part of the key")
}

func TestStoreLoadAllReadError(t *testing.T) {
	backend := db.NewMemoryStore()
	backend.SelectErr = errors.New("connection refused")

	_, err := New(backend).LoadAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRead)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStoreLoadAllBadRow(t *testing.T) {
	ctx := context.Background()
	backend := db.NewMemoryStore()
	_, err := backend.Create(ctx, models.HistoryTable, map[string]any{"source_path": 12})
	require.NoError(t, err)

	_, err = New(backend).LoadAll(ctx)
	assert.ErrorIs(t, err, ErrRead)
}

func TestStoreAppendWriteError(t *testing.T) {
	backend := db.NewMemoryStore()
	backend.CreateFunc = func(string, map[string]any) error { return errors.New("disk full") }

	_, err := New(backend).Append(context.Background(), models.NewHistoryEntry("x.csv", models.SourceTabular, models.ResultOK))
	assert.ErrorIs(t, err, ErrWrite)
	assert.Contains(t, err.Error(), "x.csv")
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	backend := db.NewMemoryStore()
	store := New(backend)

	rows := []models.HistoryEntry{
		{SourcePath: "surello_data/z.csv", SourceType: models.SourceTabular, ExecutionDatetimeUTC: "2024-01-03T00:00:00Z", ExecutionResult: "ok"},
		{SourcePath: "surello_data/a.surql", SourceType: models.SourceScript, ExecutionDatetimeUTC: "2024-01-01T00:00:00Z", ExecutionResult: "ok"},
		{SourcePath: "other/b.jsonl", SourceType: models.SourceLineRecords, ExecutionDatetimeUTC: "2024-01-02T00:00:00Z", ExecutionResult: "parse error"},
	}
	for _, r := range rows {
		_, err := store.Append(ctx, r)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all sorted by time", Filter{}, []string{"surello_data/a.surql", "other/b.jsonl", "surello_data/z.csv"}},
		{"by type", Filter{Type: models.SourceTabular}, []string{"surello_data/z.csv"}},
		{"by prefix", Filter{PathPrefix: "surello_data/"}, []string{"surello_data/a.surql", "surello_data/z.csv"}},
		{"failed only", Filter{FailedOnly: true}, []string{"other/b.jsonl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			require.NoError(t, err)
			paths := make([]string, len(got))
			for i, e := range got {
				paths[i] = e.SourcePath
			}
			assert.Equal(t, tt.want, paths)
		})
	}
}

func TestDecodeEntry(t *testing.T) {
	id := surrealmodels.RecordID{Table: models.HistoryTable, ID: "r1"}
	e, err := decodeEntry(map[string]any{
		"id":                     id,
		"source_path":            "surello_data/a.surql",
		"source_type":            "surql",
		"execution_datetime_utc": "2024-01-01T00:00:00+00:00",
		"execution_result":       "ok",
	})
	require.NoError(t, err)
	require.NotNil(t, e.ID)
	assert.Equal(t, "r1", e.ID.ID)
	assert.Equal(t, models.SourceScript, e.SourceType)
	assert.True(t, e.Succeeded())

	// Missing fields decode as empty strings.
	e, err = decodeEntry(map[string]any{"source_path": "x"})
	require.NoError(t, err)
	assert.Equal(t, "", e.ExecutionResult)
	assert.Nil(t, e.ID)
}

func TestSnapshotFirstSuccessWins(t *testing.T) {
	snap := NewSnapshot([]models.HistoryEntry{
		{SourcePath: "a.csv", SourceType: models.SourceTabular, ExecutionResult: "boom", ExecutionDatetimeUTC: "t0"},
		{SourcePath: "a.csv", SourceType: models.SourceTabular, ExecutionResult: "ok", ExecutionDatetimeUTC: "t1"},
		{SourcePath: "a.csv", SourceType: models.SourceTabular, ExecutionResult: "ok", ExecutionDatetimeUTC: "t2"},
	})

	e, ok := snap.Lookup("a.csv", models.SourceTabular)
	require.True(t, ok)
	assert.Equal(t, "t1", e.ExecutionDatetimeUTC)
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, 1, snap.Executed())
}
