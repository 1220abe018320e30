package warehouse

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

func init() {
	Register("sqlite", func() Adapter { return NewSQLiteAdapter() })
}

// SQLiteAdapter implements the Adapter interface for SQLite.
type SQLiteAdapter struct {
	db     *sql.DB
	config Config
}

// NewSQLiteAdapter creates a new SQLite adapter instance.
func NewSQLiteAdapter() *SQLiteAdapter {
	return &SQLiteAdapter{}
}

// Connect establishes a connection to SQLite.
// Use ":memory:" as the path for an in-memory database.
func (a *SQLiteAdapter) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	// An in-memory SQLite database exists per connection; keep the pool at
	// one connection so every statement sees the same database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.db = db
	a.config = cfg

	return nil
}

// Close closes the SQLite connection.
func (a *SQLiteAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (a *SQLiteAdapter) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	return a.db.ExecContext(ctx, query, args...)
}

// Query executes a SQL statement that returns rows.
func (a *SQLiteAdapter) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	return a.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query expected to return at most one row.
func (a *SQLiteAdapter) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

// Begin starts a transaction.
func (a *SQLiteAdapter) Begin(ctx context.Context) (*sql.Tx, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	return a.db.BeginTx(ctx, nil)
}

// EnsureSchema materializes the star schema from the embedded SQLite DDL.
func (a *SQLiteAdapter) EnsureSchema(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := a.db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		return fmt.Errorf("failed to apply warehouse schema: %w", err)
	}
	return nil
}

// DialectName returns the SQL dialect name for this adapter.
func (a *SQLiteAdapter) DialectName() string {
	return "sqlite"
}

// Ensure SQLiteAdapter implements Adapter interface
var _ Adapter = (*SQLiteAdapter)(nil)
