package dimension

import (
	"context"
	"fmt"
	"sort"

	"github.com/dataforge-labs/kicketl/internal/transform"
)

// LoadDimState populates Dim_State from the distinct state values of the
// batch and returns the state_name -> state_key map covering every member
// now present in the dimension. Members are inserted in sorted order so
// surrogate key assignment is reproducible on an empty warehouse.
func (b *Builder) LoadDimState(ctx context.Context, records []transform.Record) (map[string]int, error) {
	distinct := make(map[string]bool)
	for _, r := range records {
		distinct[r.State] = r.SuccessFlag == 1
	}
	if b.sentinels {
		distinct[UnknownMember] = false
	}

	names := make([]string, 0, len(distinct))
	for name := range distinct {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, []any{name, distinct[name]})
	}

	tx, err := b.wh.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin state dimension load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = insertIgnore(ctx, tx, "Dim_State",
		[]string{"state_name", "is_successful"}, "state_name", rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit state dimension load: %w", err)
	}

	keys, err := b.stateKeyMap(ctx)
	if err != nil {
		return nil, err
	}

	b.logger.Info("state dimension loaded", "distinct_states", len(names), "dimension_rows", len(keys))
	return keys, nil
}

func (b *Builder) stateKeyMap(ctx context.Context) (map[string]int, error) {
	rows, err := b.wh.Query(ctx, "SELECT state_key, state_name FROM Dim_State")
	if err != nil {
		return nil, fmt.Errorf("failed to read state dimension: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]int)
	for rows.Next() {
		var key int
		var name string
		if err := rows.Scan(&key, &name); err != nil {
			return nil, fmt.Errorf("failed to scan state dimension row: %w", err)
		}
		keys[name] = key
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state dimension: %w", err)
	}
	return keys, nil
}
