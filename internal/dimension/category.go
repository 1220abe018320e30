package dimension

import (
	"context"
	"fmt"
	"sort"

	"github.com/dataforge-labs/kicketl/internal/transform"
)

// LoadDimCategory populates Dim_Category from the distinct
// (main_category, sub_category) pairs of the batch and returns the
// composite natural-key -> category_key map covering every member now
// present in the dimension. Pairs are inserted sorted by main then sub
// category for reproducible key assignment on an empty warehouse.
func (b *Builder) LoadDimCategory(ctx context.Context, records []transform.Record) (map[CategoryKey]int, error) {
	distinct := make(map[CategoryKey]struct{})
	for _, r := range records {
		distinct[CategoryKey{Main: r.MainCategory, Sub: r.Category}] = struct{}{}
	}
	if b.sentinels {
		distinct[CategoryKey{Main: UnknownMember, Sub: UnknownMember}] = struct{}{}
	}

	pairs := make([]CategoryKey, 0, len(distinct))
	for k := range distinct {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Main != pairs[j].Main {
			return pairs[i].Main < pairs[j].Main
		}
		return pairs[i].Sub < pairs[j].Sub
	})

	rows := make([][]any, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []any{p.Main, p.Sub})
	}

	tx, err := b.wh.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin category dimension load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = insertIgnore(ctx, tx, "Dim_Category",
		[]string{"main_category_name", "sub_category_name"},
		"main_category_name, sub_category_name", rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit category dimension load: %w", err)
	}

	keys, err := b.categoryKeyMap(ctx)
	if err != nil {
		return nil, err
	}

	b.logger.Info("category dimension loaded", "distinct_categories", len(pairs), "dimension_rows", len(keys))
	return keys, nil
}

func (b *Builder) categoryKeyMap(ctx context.Context) (map[CategoryKey]int, error) {
	rows, err := b.wh.Query(ctx, "SELECT category_key, main_category_name, sub_category_name FROM Dim_Category")
	if err != nil {
		return nil, fmt.Errorf("failed to read category dimension: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[CategoryKey]int)
	for rows.Next() {
		var key int
		var main, sub string
		if err := rows.Scan(&key, &main, &sub); err != nil {
			return nil, fmt.Errorf("failed to scan category dimension row: %w", err)
		}
		keys[CategoryKey{Main: main, Sub: sub}] = key
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category dimension: %w", err)
	}
	return keys, nil
}
