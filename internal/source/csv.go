// Package source reads the raw campaign export into an in-memory table of
// typed rows. It is the extraction side of the pipeline; all cleaning and
// derivation happens downstream in the transform package.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// RawRecord is one campaign row as ingested. Launched and Deadline stay as
// text until the transformer parses them. An empty Name means the source had
// no name for the row (a null in the export).
type RawRecord struct {
	ID           string
	Name         string
	Category     string
	MainCategory string
	Country      string
	Backers      int
	USDPledged   float64
	USDGoal      float64
	State        string
	Launched     string
	Deadline     string
}

// expectedColumns are the source columns the pipeline consumes. The export
// carries more (goal, pledged, currency, usd pledged); those are ignored.
var expectedColumns = []string{
	"ID", "name", "category", "main_category", "country",
	"backers", "usd_pledged_real", "usd_goal_real", "state",
	"launched", "deadline",
}

// ErrSourceUnavailable reports a missing input file. This is the terminal
// condition that halts the pipeline before transformation.
var ErrSourceUnavailable = errors.New("source file unavailable")

// Read extracts the campaign dataset from a UTF-8 CSV file.
func Read(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
		}
		return nil, fmt.Errorf("failed to open source file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return parse(f)
}

func parse(r io.Reader) ([]RawRecord, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read source header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	for _, col := range expectedColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("source is missing expected column %q", col)
		}
	}

	var records []RawRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed source row %d: %w", line+1, err)
		}
		line++

		rec := RawRecord{
			ID:           field(row, idx, "ID"),
			Name:         field(row, idx, "name"),
			Category:     field(row, idx, "category"),
			MainCategory: field(row, idx, "main_category"),
			Country:      field(row, idx, "country"),
			State:        field(row, idx, "state"),
			Launched:     field(row, idx, "launched"),
			Deadline:     field(row, idx, "deadline"),
		}

		rec.Backers, err = intField(row, idx, "backers")
		if err != nil {
			return nil, fmt.Errorf("source row %d: %w", line, err)
		}
		rec.USDPledged, err = floatField(row, idx, "usd_pledged_real")
		if err != nil {
			return nil, fmt.Errorf("source row %d: %w", line, err)
		}
		rec.USDGoal, err = floatField(row, idx, "usd_goal_real")
		if err != nil {
			return nil, fmt.Errorf("source row %d: %w", line, err)
		}

		records = append(records, rec)
	}

	return records, nil
}

func field(row []string, idx map[string]int, name string) string {
	return strings.TrimSpace(row[idx[name]])
}

// intField parses an integer column. Empty fields are nulls in the export
// and read as zero.
func intField(row []string, idx map[string]int, name string) (int, error) {
	s := field(row, idx, name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}

func floatField(row []string, idx map[string]int, name string) (float64, error) {
	s := field(row, idx, name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}
