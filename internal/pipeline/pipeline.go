// Package pipeline orchestrates the ETL run: extract, inspect, transform,
// then the load phase (dimensions before facts). Phase ordering is a
// checked contract, not a call-order convention: the fact loader refuses to
// run without the key maps the dimension loads produce.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dataforge-labs/kicketl/internal/dimension"
	"github.com/dataforge-labs/kicketl/internal/fact"
	"github.com/dataforge-labs/kicketl/internal/logging"
	"github.com/dataforge-labs/kicketl/internal/source"
	"github.com/dataforge-labs/kicketl/internal/state"
	"github.com/dataforge-labs/kicketl/internal/transform"
	"github.com/dataforge-labs/kicketl/internal/warehouse"
)

// Config holds pipeline configuration.
type Config struct {
	// SourcePath is the campaign CSV to load.
	SourcePath string
	// Warehouse is the target store configuration.
	Warehouse warehouse.Config
	// RunsPath is the run-ledger SQLite path.
	RunsPath string
	// OnMissingKey is the fact loader's missing-key policy.
	OnMissingKey fact.MissingKeyPolicy
	// Logger is the structured logger (discard if nil).
	Logger *slog.Logger
}

// Pipeline runs the full-reload batch job.
type Pipeline struct {
	cfg    Config
	runs   *state.Store
	logger *slog.Logger
}

// New creates a pipeline and opens its run ledger.
func New(cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.OnMissingKey == "" {
		cfg.OnMissingKey = fact.PolicyFail
	}
	if !warehouse.IsRegistered(cfg.Warehouse.Type) {
		return nil, &warehouse.UnknownAdapterError{
			Type:      cfg.Warehouse.Type,
			Available: warehouse.ListAdapters(),
		}
	}

	runs := state.NewStore(logger)
	if dir := filepath.Dir(cfg.RunsPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create run ledger directory: %w", err)
		}
	}
	if err := runs.Open(cfg.RunsPath); err != nil {
		return nil, err
	}
	if err := runs.Migrate(); err != nil {
		_ = runs.Close()
		return nil, err
	}

	return &Pipeline{cfg: cfg, runs: runs, logger: logger}, nil
}

// Close releases the run ledger.
func (p *Pipeline) Close() error {
	return p.runs.Close()
}

// Runs exposes the run ledger for reporting commands.
func (p *Pipeline) Runs() *state.Store {
	return p.runs
}

// Run executes one full-reload batch. Terminal errors are logged at this
// boundary and recorded in the run ledger; the returned Run reflects the
// final status either way.
func (p *Pipeline) Run(ctx context.Context) (*state.Run, error) {
	p.logger.Info("pipeline started", "source", p.cfg.SourcePath, "warehouse", p.cfg.Warehouse.Type)

	run, err := p.runs.CreateRun(p.cfg.SourcePath)
	if err != nil {
		return nil, err
	}

	var counts state.Counts
	runErr := p.execute(ctx, &counts)

	if runErr != nil {
		logging.Critical(p.logger, "pipeline failed", "run_id", run.ID, "error", runErr.Error())
		if err := p.runs.CompleteRun(run.ID, state.RunStatusFailed, counts, runErr.Error()); err != nil {
			p.logger.Warn("failed to record run completion", "run_id", run.ID, "error", err)
		}
	} else {
		p.logger.Info("pipeline completed", "run_id", run.ID,
			"facts_loaded", counts.Facts, "rows_dropped", counts.Dropped)
		if err := p.runs.CompleteRun(run.ID, state.RunStatusCompleted, counts, ""); err != nil {
			p.logger.Warn("failed to record run completion", "run_id", run.ID, "error", err)
		}
	}

	run, err = p.runs.GetRun(run.ID)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	return run, runErr
}

// execute runs the phases, filling counts as each one completes so a
// failed run still records how far it got.
func (p *Pipeline) execute(ctx context.Context, counts *state.Counts) error {
	// Extract. A missing source halts everything before transformation.
	raw, err := source.Read(p.cfg.SourcePath)
	if err != nil {
		return err
	}
	counts.Extracted = len(raw)
	p.logger.Info("extraction completed", "rows", len(raw))

	summary := source.Inspect(raw)
	p.logger.Info("initial data inspection completed",
		"rows", summary.Rows, "null_names", summary.NullNames, "distinct_states", len(summary.StateCounts))

	// Transform.
	res, err := transform.Transform(p.logger, raw)
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}
	counts.Transformed = len(res.Records)
	counts.Dropped = res.Dropped

	return p.load(ctx, res.Records, counts)
}

// load owns the warehouse connection for the whole load phase and closes
// it on every exit path. Each dimension commits in its own transaction,
// then the fact load commits in a final one; a failure in between leaves
// dimensions populated without facts, which the run ledger records as a
// failed run.
func (p *Pipeline) load(ctx context.Context, records []transform.Record, counts *state.Counts) error {
	wh, err := warehouse.NewAdapter(p.cfg.Warehouse)
	if err != nil {
		return err
	}
	if err := wh.Connect(ctx, p.cfg.Warehouse); err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer func() { _ = wh.Close() }()

	if err := wh.EnsureSchema(ctx); err != nil {
		return err
	}
	p.logger.Info("warehouse schema ready", "dialect", wh.DialectName())

	builder := dimension.NewBuilder(wh, p.logger, p.cfg.OnMissingKey == fact.PolicyUnknown)

	dateKeys, err := builder.LoadDimDate(ctx, records)
	if err != nil {
		return fmt.Errorf("date dimension load failed: %w", err)
	}
	counts.Dates = len(dateKeys)

	stateKeys, err := builder.LoadDimState(ctx, records)
	if err != nil {
		return fmt.Errorf("state dimension load failed: %w", err)
	}
	counts.States = len(stateKeys)

	categoryKeys, err := builder.LoadDimCategory(ctx, records)
	if err != nil {
		return fmt.Errorf("category dimension load failed: %w", err)
	}
	counts.Categories = len(categoryKeys)

	loader := fact.NewLoader(wh, p.logger, p.cfg.OnMissingKey)
	keys := fact.Keys{States: stateKeys, Categories: categoryKeys, Dates: dateKeys}
	if err := loader.LoadFacts(ctx, records, keys); err != nil {
		return fmt.Errorf("fact load failed: %w", err)
	}
	counts.Facts = len(records)

	return nil
}
