package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateSelect(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	content := map[string]any{"name": "alice"}
	id, err := store.Create(ctx, "file_people_csv", content)
	require.NoError(t, err)
	assert.Equal(t, "file_people_csv:1", id)

	// Mutating the caller's map must not change the stored record.
	content["name"] = "mallory"

	rows, err := store.Select(ctx, "file_people_csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, 1, store.TotalRows())
}

func TestMemoryStoreHooks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	store.CreateFunc = func(table string, _ map[string]any) error {
		if table == "locked" {
			return boom
		}
		return nil
	}
	_, err := store.Create(ctx, "locked", nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Rows("locked"))

	store.SelectErr = boom
	_, err = store.Select(ctx, "anything")
	assert.ErrorIs(t, err, boom)

	results, err := store.ExecuteScript(ctx, "INFO FOR DB;")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{"INFO FOR DB;"}, store.Scripts())
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	_, err := store.Create(ctx, "t", map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.ExecuteScript(ctx, "RETURN 1;")
	assert.ErrorIs(t, err, context.Canceled)
}
