// Package db provides SurrealDB database connectivity with auto-reconnect support.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/surello/internal/models"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// Client wraps SurrealDB connection with auto-reconnect.
// It is the store handle consumed by the loaders and the history accessor.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger
}

// NewClient creates a new SurrealDB client with auto-reconnecting WebSocket.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	// Create logger adapter for SurrealDB SDK
	var sdkLogger logger.Logger
	if log != nil {
		sdkLogger = logger.New(log.Handler())
	} else {
		sdkLogger = logger.New(slog.Default().Handler())
	}

	// Use surrealcbor for CBOR encoding/decoding (handles SurrealDB custom tags)
	codec := surrealcbor.New()

	// gorillaws wants the base URL without /rpc (it adds /rpc internally)
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	sdkLogger.Info("authenticating", "user", cfg.Username, "auth_level", cfg.AuthLevel)
	if cfg.AuthLevel == "database" {
		_, err = db.SignIn(ctx, surrealdb.Auth{
			Namespace: cfg.Namespace,
			Database:  cfg.Database,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
	} else {
		// Default to root auth
		_, err = db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	sdkLogger.Info("selecting namespace/database", "namespace", cfg.Namespace, "database", cfg.Database)
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	sdkLogger.Info("SurrealDB connection established")
	return &Client{conn: conn, db: db, cfg: cfg, logger: sdkLogger}, nil
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing SurrealDB connection")
	return c.conn.Close(ctx)
}

// InitSchema declares the history table and its lookup index.
func (c *Client) InitSchema(ctx context.Context) error {
	c.logger.Info("initializing database schema")
	_, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil)
	if err != nil {
		return fmt.Errorf("init schema: %w", wrapQueryError(err))
	}
	c.logger.Info("schema initialization complete")
	return nil
}

// Create inserts one record into table and returns its record ID as "table:id".
// The table name is passed as a parameter, so any string is a valid name.
func (c *Client) Create(ctx context.Context, table string, content map[string]any) (string, error) {
	results, err := surrealdb.Query[[]struct {
		ID surrealmodels.RecordID `json:"id"`
	}](ctx, c.db, `CREATE type::table($table) CONTENT $content RETURN id`, map[string]any{
		"table":   table,
		"content": content,
	})
	if err != nil {
		return "", fmt.Errorf("create %s: %w", table, wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", fmt.Errorf("create %s: %w", table, ErrNoResult)
	}
	return models.RecordIDText((*results)[0].Result[0].ID), nil
}

// Select returns every record of table.
func (c *Client) Select(ctx context.Context, table string) ([]map[string]any, error) {
	results, err := surrealdb.Query[[]map[string]any](ctx, c.db, `SELECT * FROM type::table($table)`, map[string]any{
		"table": table,
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []map[string]any{}, nil
	}
	return (*results)[0].Result, nil
}

// ExecuteScript submits script as one opaque statement batch.
// Any statement error fails the whole call.
func (c *Client) ExecuteScript(ctx context.Context, script string) ([]models.StatementResult, error) {
	results, err := surrealdb.Query[any](ctx, c.db, script, nil)
	if err != nil {
		return nil, wrapQueryError(err)
	}

	if results == nil {
		return []models.StatementResult{}, nil
	}
	out := make([]models.StatementResult, 0, len(*results))
	for _, r := range *results {
		out = append(out, models.StatementResult{
			Status: r.Status,
			Time:   r.Time,
			Result: r.Result,
		})
	}
	return out, nil
}

// WipeTables deletes all records of the given tables.
// Use for testing only.
func (c *Client) WipeTables(ctx context.Context, tables ...string) error {
	c.logger.Warn("wiping tables", "tables", tables)

	for _, table := range tables {
		if _, err := surrealdb.Query[any](ctx, c.db, `DELETE type::table($table)`, map[string]any{
			"table": table,
		}); err != nil {
			return fmt.Errorf("delete %s: %w", table, wrapQueryError(err))
		}
	}
	return nil
}
