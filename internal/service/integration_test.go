//go:build integration

package service_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/surello/internal/db"
	"github.com/raphaelgruber/surello/internal/history"
	"github.com/raphaelgruber/surello/internal/loader"
	"github.com/raphaelgruber/surello/internal/models"
	"github.com/raphaelgruber/surello/internal/scanner"
	"github.com/raphaelgruber/surello/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *db.Client

func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.3.7",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = db.NewClient(ctx, db.Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "service",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func newOrchestrator(root string) *service.Orchestrator {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewOrchestrator(
		history.New(testDB),
		loader.NewRegistry(testDB, quiet),
		scanner.New(scanner.Options{Logger: quiet}),
		service.Options{Root: root},
		quiet,
	)
}

func TestRunAgainstSurrealDB(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() {
		_ = testDB.WipeTables(ctx, models.HistoryTable, "people", "file_orders_csv", "file_events_jsonl")
	})

	root := t.TempDir()
	files := map[string]string{
		"01_people.surql": "DEFINE TABLE people SCHEMALESS; CREATE people:ann SET name = 'Ann';",
		"orders.csv":      "id,total\n1,9.50\n2,12.00\n",
		"events.jsonl":    `{"kind":"signup","n":1}` + "\n" + `{"kind":"login","n":2}` + "\n",
		"notes.md":        "# not loaded",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	result, err := newOrchestrator(root).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Loaded)
	assert.Equal(t, 1, result.Unsupported)
	assert.Equal(t, 4, result.Records)

	orders, err := testDB.Select(ctx, "file_orders_csv")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	events, err := testDB.Select(ctx, "file_events_jsonl")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	entries, err := history.New(testDB).List(ctx, history.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// Second run loads nothing.
	result, err = newOrchestrator(root).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Loaded)
	assert.Equal(t, 3, result.Skipped)

	orders, err = testDB.Select(ctx, "file_orders_csv")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestFailingScriptIsRetried(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeTables(ctx, models.HistoryTable, "retry") })

	root := t.TempDir()
	path := filepath.Join(root, "retry.surql")
	require.NoError(t, os.WriteFile(path, []byte("THROW 'not yet';"), 0o644))

	result, err := newOrchestrator(root).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	entries, err := history.New(testDB).List(ctx, history.Filter{PathPrefix: root})
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, os.WriteFile(path, []byte("CREATE retry:one SET ok = true;"), 0o644))
	result, err = newOrchestrator(root).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
}
