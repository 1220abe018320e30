package dimension

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dataforge-labs/kicketl/internal/transform"
)

// DateFormat is the natural-key encoding of Dim_Date's full_date column and
// of the maps the loaders exchange.
const DateFormat = "2006-01-02"

// DateKey encodes a calendar date as the deterministic YYYYMMDD integer
// surrogate key (2015-03-07 -> 20150307). Reporting collaborators rely on
// this encoding; it must not change.
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// dateMember holds one Dim_Date row's derived attributes.
type dateMember struct {
	key       int
	fullDate  string
	year      int
	quarter   int
	month     int
	day       int
	dayOfWeek string
	isWeekend bool
}

func newDateMember(t time.Time) dateMember {
	wd := t.Weekday()
	return dateMember{
		key:       DateKey(t),
		fullDate:  t.Format(DateFormat),
		year:      t.Year(),
		quarter:   (int(t.Month())-1)/3 + 1,
		month:     int(t.Month()),
		day:       t.Day(),
		dayOfWeek: wd.String(),
		isWeekend: wd == time.Saturday || wd == time.Sunday,
	}
}

// LoadDimDate populates Dim_Date from the distinct launch dates of the
// batch and returns the full_date -> date_key map covering every date now
// present in the dimension, pre-existing ones included. Deadline dates are
// not modeled. The load commits once.
func (b *Builder) LoadDimDate(ctx context.Context, records []transform.Record) (map[string]int, error) {
	distinct := make(map[string]time.Time)
	for _, r := range records {
		d := time.Date(r.LaunchedAt.Year(), r.LaunchedAt.Month(), r.LaunchedAt.Day(), 0, 0, 0, 0, time.UTC)
		distinct[d.Format(DateFormat)] = d
	}
	if b.sentinels {
		distinct[unknownDate] = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	dates := make([]string, 0, len(distinct))
	for d := range distinct {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rows := make([][]any, 0, len(dates))
	for _, d := range dates {
		m := newDateMember(distinct[d])
		rows = append(rows, []any{m.key, m.fullDate, m.year, m.quarter, m.month, m.day, m.dayOfWeek, m.isWeekend})
	}

	tx, err := b.wh.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin date dimension load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = insertIgnore(ctx, tx, "Dim_Date",
		[]string{"date_key", "full_date", "year", "quarter", "month", "day", "day_of_week", "is_weekend"},
		"date_key", rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit date dimension load: %w", err)
	}

	keys, err := b.dateKeyMap(ctx)
	if err != nil {
		return nil, err
	}

	b.logger.Info("date dimension loaded", "distinct_dates", len(dates), "dimension_rows", len(keys))
	return keys, nil
}

func (b *Builder) dateKeyMap(ctx context.Context) (map[string]int, error) {
	rows, err := b.wh.Query(ctx, "SELECT date_key, full_date FROM Dim_Date")
	if err != nil {
		return nil, fmt.Errorf("failed to read date dimension: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]int)
	for rows.Next() {
		var key int
		var fullDate string
		if err := rows.Scan(&key, &fullDate); err != nil {
			return nil, fmt.Errorf("failed to scan date dimension row: %w", err)
		}
		keys[fullDate] = key
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating date dimension: %w", err)
	}
	return keys, nil
}
