// Package warehouse provides database adapter interfaces and implementations
// for the campaign star-schema warehouse.
package warehouse

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a warehouse database.
type Config struct {
	// Type specifies the database type (e.g., "duckdb", "sqlite")
	Type string

	// Path is the file path of the database. Use ":memory:" for an
	// in-memory database.
	Path string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Adapter defines the interface that all warehouse adapters must implement.
// The loaders hold exactly one adapter for the duration of a load phase and
// close it on every exit path.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row

	// Begin starts a transaction. Dimension and fact loads each commit in
	// their own transaction scope.
	Begin(ctx context.Context) (*sql.Tx, error)

	// EnsureSchema materializes the four warehouse tables from the embedded
	// DDL for this adapter's dialect. Safe to call on an already-created
	// schema.
	EnsureSchema(ctx context.Context) error

	// DialectName returns the SQL dialect name for this adapter.
	DialectName() string
}
