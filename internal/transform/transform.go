// Package transform cleans, derives, and projects raw campaign rows into
// the fact-ready row shape. Transform is a pure function over the in-memory
// table; its only side effect is reporting through the injected logger.
package transform

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dataforge-labs/kicketl/internal/source"
)

// successState is the one state value that marks a campaign successful.
const successState = "successful"

// Timestamp layouts accepted for the launched and deadline columns. The
// export carries launched as a full timestamp and deadline as a bare date,
// but either column may use either layout.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Record is one cleaned, fact-ready campaign row. The field set and order
// is the fixed projection the loaders consume; anything else from the
// source is discarded here.
type Record struct {
	ID           string
	Name         string
	MainCategory string
	Category     string
	Country      string
	Backers      int
	PledgedUSD   float64
	GoalUSD      float64
	SuccessFlag  int
	State        string
	LaunchedAt   time.Time
	DeadlineAt   time.Time
	DurationDays float64
}

// Result is a transformed batch plus its data-quality accounting.
type Result struct {
	Records []Record
	// Dropped counts rows removed for having a null name.
	Dropped int
}

// Transform converts a raw batch into fact-ready records.
//
// Steps, in order: parse launched/deadline timestamps (any row failing
// fails the whole batch; there is no per-row recovery), derive the
// fractional-day duration, carry the normalized-currency amounts as
// PledgedUSD/GoalUSD, derive SuccessFlag by exact match against
// "successful", and drop rows with a null name, reporting the count.
func Transform(logger *slog.Logger, raw []source.RawRecord) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("transformation started", "rows", len(raw))

	res := &Result{Records: make([]Record, 0, len(raw))}
	for i, r := range raw {
		launched, err := parseTime(r.Launched)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid launched value %q: %w", i+1, r.Launched, err)
		}
		deadline, err := parseTime(r.Deadline)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid deadline value %q: %w", i+1, r.Deadline, err)
		}

		if r.Name == "" {
			res.Dropped++
			continue
		}

		flag := 0
		if r.State == successState {
			flag = 1
		}

		res.Records = append(res.Records, Record{
			ID:           r.ID,
			Name:         r.Name,
			MainCategory: r.MainCategory,
			Category:     r.Category,
			Country:      r.Country,
			Backers:      r.Backers,
			PledgedUSD:   r.USDPledged,
			GoalUSD:      r.USDGoal,
			SuccessFlag:  flag,
			State:        r.State,
			LaunchedAt:   launched,
			DeadlineAt:   deadline,
			// Negative durations are permitted; the source is not validated here.
			DurationDays: deadline.Sub(launched).Hours() / 24,
		})
	}

	if res.Dropped > 0 {
		logger.Warn("dropped rows with null name", "dropped", res.Dropped)
	} else {
		logger.Info("no rows dropped")
	}
	logger.Info("transformation completed", "rows", len(res.Records))

	return res, nil
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
