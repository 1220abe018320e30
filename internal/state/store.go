// Package state persists pipeline run history in a local SQLite ledger,
// separate from the warehouse itself. A run that fails between dimension
// and fact commits is visible here as failed even though the warehouse
// holds the dimensions it already committed.
package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Counts holds the row accounting of a run.
type Counts struct {
	Extracted   int
	Transformed int
	Dropped     int
	Dates       int
	States      int
	Categories  int
	Facts       int
}

// Run is one pipeline invocation.
type Run struct {
	ID          string
	SourcePath  string
	Status      RunStatus
	Counts      Counts
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a run ledger instance.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens the ledger database. Use ":memory:" for an in-memory ledger.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open run ledger: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping run ledger: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the ledger database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateRun records the start of a pipeline run.
func (s *Store) CreateRun(sourcePath string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("run ledger not opened")
	}

	run := &Run{
		ID:         uuid.New().String(),
		SourcePath: sourcePath,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, source_path, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.SourcePath, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run as completed or failed with its row accounting.
func (s *Store) CompleteRun(id string, status RunStatus, counts Counts, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("run ledger not opened")
	}

	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ?,
			rows_extracted = ?, rows_transformed = ?, rows_dropped = ?,
			dim_dates = ?, dim_states = ?, dim_categories = ?, facts_loaded = ?
		 WHERE id = ?`,
		status, now, errMsg,
		counts.Extracted, counts.Transformed, counts.Dropped,
		counts.Dates, counts.States, counts.Categories, counts.Facts,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("run ledger not opened")
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT id, source_path, status, started_at, completed_at, error,
			rows_extracted, rows_transformed, rows_dropped,
			dim_dates, dim_states, dim_categories, facts_loaded
		 FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("run ledger not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, source_path, status, started_at, completed_at, error,
			rows_extracted, rows_transformed, rows_dropped,
			dim_dates, dim_states, dim_categories, facts_loaded
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(
		&run.ID, &run.SourcePath, &run.Status, &run.StartedAt, &completedAt, &errMsg,
		&run.Counts.Extracted, &run.Counts.Transformed, &run.Counts.Dropped,
		&run.Counts.Dates, &run.Counts.States, &run.Counts.Categories, &run.Counts.Facts,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}
