// Package dimension maintains the conformed dimension tables of the
// campaign warehouse. Each loader discovers the distinct dimension members
// present in a transformed batch, inserts the missing ones, and returns the
// complete natural-key to surrogate-key map the fact loader needs,
// including members that already existed from earlier runs.
package dimension

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dataforge-labs/kicketl/internal/warehouse"
)

// Sentinel dimension members used when the missing-key policy is "unknown".
const (
	UnknownMember  = "(unknown)"
	UnknownDateKey = 19000101
	unknownDate    = "1900-01-01"
)

// insertChunk bounds the rows per multi-row INSERT so the statement stays
// under SQLite's bound-parameter limit.
const insertChunk = 200

// CategoryKey is the composite natural key of Dim_Category.
type CategoryKey struct {
	Main string
	Sub  string
}

// Builder loads the three dimension tables. Loads are idempotent: inserts
// rely on the store's natural-key uniqueness, and re-running on overlapping
// data neither duplicates nor errors.
type Builder struct {
	wh     warehouse.Adapter
	logger *slog.Logger

	// sentinels ensures the "(unknown)" members exist so the fact loader
	// can resolve missing keys to them.
	sentinels bool
}

// NewBuilder creates a dimension builder over an open warehouse connection.
func NewBuilder(wh warehouse.Adapter, logger *slog.Logger, sentinels bool) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{wh: wh, logger: logger, sentinels: sentinels}
}

// insertIgnore runs chunked multi-row INSERT ... ON CONFLICT DO NOTHING
// statements inside tx. rows holds one argument slice per dimension member,
// each of len(columns).
func insertIgnore(ctx context.Context, tx *sql.Tx, table string, columns []string, conflict string, rows [][]any) error {
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(columns))
		for _, row := range chunk {
			args = append(args, row...)
		}

		query := buildInsertIgnore(table, columns, conflict, len(chunk))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// buildInsertIgnore renders a multi-row insert-or-ignore statement for n rows.
func buildInsertIgnore(table string, columns []string, conflict string, n int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	rows := make([]string, n)
	for i := range rows {
		rows[i] = row
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
		table,
		strings.Join(columns, ", "),
		strings.Join(rows, ", "),
		conflict,
	)
}
