// Package fact loads the Fact_Campaigns table. The loader resolves each
// transformed row's natural dimension attributes to surrogate keys through
// the maps the dimension builders produced, then bulk-inserts the batch in
// one transaction.
package fact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dataforge-labs/kicketl/internal/dimension"
	"github.com/dataforge-labs/kicketl/internal/transform"
	"github.com/dataforge-labs/kicketl/internal/warehouse"
)

// MissingKeyPolicy decides what happens when a row's dimension attribute is
// absent from the key maps. This should not occur when the dimension loads
// ran over the same batch, but upstream filtering between passes can cause
// it.
type MissingKeyPolicy string

const (
	// PolicyFail aborts the batch on the first unresolvable dimension key.
	PolicyFail MissingKeyPolicy = "fail"
	// PolicyUnknown resolves misses to the "(unknown)" sentinel members.
	PolicyUnknown MissingKeyPolicy = "unknown"
)

// ParsePolicy validates a configured policy value.
func ParsePolicy(s string) (MissingKeyPolicy, error) {
	switch MissingKeyPolicy(s) {
	case PolicyFail, PolicyUnknown:
		return MissingKeyPolicy(s), nil
	default:
		return "", fmt.Errorf("invalid on_missing_key policy %q (want %q or %q)", s, PolicyFail, PolicyUnknown)
	}
}

// Keys carries the dimension key maps from the dimension-load phase to the
// fact load. Having all three complete maps is the precondition for
// LoadFacts; Validate makes the contract checkable instead of a call-order
// convention.
type Keys struct {
	States     map[string]int
	Categories map[dimension.CategoryKey]int
	Dates      map[string]int
}

// Validate reports whether all three dimension loads have produced their
// key maps.
func (k Keys) Validate() error {
	if k.States == nil {
		return fmt.Errorf("state dimension not loaded")
	}
	if k.Categories == nil {
		return fmt.Errorf("category dimension not loaded")
	}
	if k.Dates == nil {
		return fmt.Errorf("date dimension not loaded")
	}
	return nil
}

// insertChunk bounds the rows per multi-row INSERT so the statement stays
// under SQLite's bound-parameter limit.
const insertChunk = 200

var factColumns = []string{
	"campaign_id", "name", "backers", "pledged_usd", "goal_usd",
	"duration_days", "state_key", "category_key", "launched_date_key",
}

// Loader bulk-loads Fact_Campaigns.
type Loader struct {
	wh     warehouse.Adapter
	logger *slog.Logger
	policy MissingKeyPolicy
}

// NewLoader creates a fact loader over an open warehouse connection.
func NewLoader(wh warehouse.Adapter, logger *slog.Logger, policy MissingKeyPolicy) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if policy == "" {
		policy = PolicyFail
	}
	return &Loader{wh: wh, logger: logger, policy: policy}
}

// LoadFacts replaces the fact table's contents with the batch. It must run
// strictly after all three dimension loads for the same batch; Keys.Validate
// enforces that. The delete and the bulk insert share one transaction, so
// the load either fully succeeds or leaves the previous contents intact.
func (l *Loader) LoadFacts(ctx context.Context, records []transform.Record, keys Keys) error {
	if err := keys.Validate(); err != nil {
		return fmt.Errorf("fact load precondition: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for i, r := range records {
		stateKey, err := l.resolve(keys.States, r.State, keys.States[dimension.UnknownMember])
		if err != nil {
			return fmt.Errorf("row %d: state %w", i+1, err)
		}
		catKey, err := l.resolveCategory(keys.Categories, dimension.CategoryKey{Main: r.MainCategory, Sub: r.Category})
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		dateKey, err := l.resolve(keys.Dates, r.LaunchedAt.Format(dimension.DateFormat), dimension.UnknownDateKey)
		if err != nil {
			return fmt.Errorf("row %d: launch date %w", i+1, err)
		}

		rows = append(rows, []any{
			r.ID, r.Name, r.Backers, r.PledgedUSD, r.GoalUSD,
			r.DurationDays, stateKey, catKey, dateKey,
		})
	}

	tx, err := l.wh.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin fact load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Full reload: the batch replaces any facts from earlier runs.
	if _, err := tx.ExecContext(ctx, "DELETE FROM Fact_Campaigns"); err != nil {
		return fmt.Errorf("failed to clear fact table: %w", err)
	}

	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(factColumns))
		for _, row := range chunk {
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, buildInsert(len(chunk)), args...); err != nil {
			return fmt.Errorf("failed to insert facts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fact load: %w", err)
	}

	l.logger.Info("fact table loaded", "rows", len(rows))
	return nil
}

// resolve looks up a natural key in a dimension map. On a miss it either
// fails or falls back to the sentinel key, per the configured policy.
func (l *Loader) resolve(m map[string]int, natural string, sentinel int) (int, error) {
	if key, ok := m[natural]; ok {
		return key, nil
	}
	if l.policy == PolicyUnknown {
		l.logger.Warn("dimension key missing, using unknown member", "natural_key", natural)
		return sentinel, nil
	}
	return 0, fmt.Errorf("dimension key missing for %q", natural)
}

func (l *Loader) resolveCategory(m map[dimension.CategoryKey]int, natural dimension.CategoryKey) (int, error) {
	if key, ok := m[natural]; ok {
		return key, nil
	}
	if l.policy == PolicyUnknown {
		l.logger.Warn("category key missing, using unknown member",
			"main_category", natural.Main, "sub_category", natural.Sub)
		return m[dimension.CategoryKey{Main: dimension.UnknownMember, Sub: dimension.UnknownMember}], nil
	}
	return 0, fmt.Errorf("category key missing for (%q, %q)", natural.Main, natural.Sub)
}

func buildInsert(n int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(factColumns)), ", ") + ")"
	rows := make([]string, n)
	for i := range rows {
		rows[i] = row
	}
	return fmt.Sprintf("INSERT INTO Fact_Campaigns (%s) VALUES %s",
		strings.Join(factColumns, ", "), strings.Join(rows, ", "))
}
