package source

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

// StateCount is one entry of the state value-count summary.
type StateCount struct {
	State string
	Count int
}

// Summary holds the initial data-quality inspection of an extracted batch.
type Summary struct {
	Rows        int
	NullNames   int
	StateCounts []StateCount
}

// Inspect summarizes an extracted batch: row count, null-name count, and
// the distinct state values with their frequencies (ordered by frequency,
// then name for a stable report).
func Inspect(records []RawRecord) *Summary {
	s := &Summary{Rows: len(records)}

	counts := make(map[string]int)
	for _, r := range records {
		if r.Name == "" {
			s.NullNames++
		}
		counts[r.State]++
	}

	for state, n := range counts {
		s.StateCounts = append(s.StateCounts, StateCount{State: state, Count: n})
	}
	sort.Slice(s.StateCounts, func(i, j int) bool {
		if s.StateCounts[i].Count != s.StateCounts[j].Count {
			return s.StateCounts[i].Count > s.StateCounts[j].Count
		}
		return s.StateCounts[i].State < s.StateCounts[j].State
	})

	return s
}

// Render writes the summary as a table.
func (s *Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"state", "count"})
	for _, sc := range s.StateCounts {
		t.AppendRow(table.Row{sc.State, sc.Count})
	}
	t.AppendFooter(table.Row{"total rows", s.Rows})
	t.Render()
}
