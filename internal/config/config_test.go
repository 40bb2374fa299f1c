package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears every variable Load reads and moves into an empty directory
// so that no surello.yaml or .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		"SURELLO_CONFIG", "SURREALDB_ADDRESS", "SURREALDB_URL", "SURREALDB_NAMESPACE",
		"SURREALDB_DATABASE", "SURREALDB_USER", "SURREALDB_PASS", "SURREALDB_AUTH_LEVEL",
		"SURELLO_DATA_DIR", "SURELLO_FOLLOW_SYMLINKS", "SURELLO_FAIL_FAST",
		"SURELLO_RECORD_FAILURES", "SURELLO_LOG_FILE", "SURELLO_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "surello_data", cfg.DataDir)
	assert.Equal(t, "", cfg.LogFile)
	assert.False(t, cfg.FailFast)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	yml := `
surrealdb:
  address: ws://db:8000/rpc
  namespace: staging
data_dir: /srv/data
fail_fast: true
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(yml), 0o644))
	t.Setenv("SURREALDB_NAMESPACE", "prod")
	t.Setenv("SURELLO_RECORD_FAILURES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://db:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, "prod", cfg.SurrealDBNamespace)
	assert.Equal(t, "surello", cfg.SurrealDBDatabase)
	assert.Equal(t, "/srv/data", cfg.DataDir)
	assert.True(t, cfg.FailFast)
	assert.True(t, cfg.RecordFailures)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_ExplicitConfigMustExist(t *testing.T) {
	dir := isolate(t)
	t.Setenv("SURELLO_CONFIG", filepath.Join(dir, "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EmptyConfigVarUsesDefault(t *testing.T) {
	isolate(t)
	t.Setenv("SURELLO_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("surrealdb: [unclosed"), 0o644))
	t.Setenv("SURELLO_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_AddressFallback(t *testing.T) {
	isolate(t)
	t.Setenv("SURREALDB_URL", "ws://legacy:8000/rpc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://legacy:8000/rpc", cfg.SurrealDBURL)

	t.Setenv("SURREALDB_ADDRESS", "ws://new:8000/rpc")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://new:8000/rpc", cfg.SurrealDBURL)
}

func TestLoad_InvalidBool(t *testing.T) {
	isolate(t)
	t.Setenv("SURELLO_FAIL_FAST", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SURELLO_FAIL_FAST")
}

func TestConfig_DB(t *testing.T) {
	cfg := Defaults()
	dbc := cfg.DB()
	assert.Equal(t, cfg.SurrealDBURL, dbc.URL)
	assert.Equal(t, cfg.SurrealDBPass, dbc.Password)
	assert.Equal(t, "root", dbc.AuthLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("loaded", "path", "a.csv")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "path=a.csv")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &line))
	assert.Equal(t, "loaded", line["msg"])
}

func TestSetupLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surello.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestSetupLogger_StderrOnly(t *testing.T) {
	logger, cleanup := SetupLogger("", slog.LevelInfo)
	require.NotNil(t, logger)
	assert.NoError(t, cleanup())
}

func TestSetupFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	logger, cleanup := SetupFileLogger(path, slog.LevelInfo)
	logger.Info("only in file")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "only in file")

	discard, cleanup := SetupFileLogger("", slog.LevelInfo)
	discard.Info("dropped")
	assert.NoError(t, cleanup())
}
