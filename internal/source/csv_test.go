package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `ID,name,category,main_category,currency,deadline,goal,launched,pledged,state,backers,country,usd pledged,usd_pledged_real,usd_goal_real
1000001,Greeting cards,Stationery,Crafts,USD,2015-09-11,4500,2015-08-11 12:00:28,4800,successful,120,US,4800,4800,4500
1000002,,Electronic Music,Music,GBP,2015-09-14,6000,2015-08-14 09:30:00,120,failed,8,GB,180,150,9000
1000003,Synth album,Electronic Music,Music,GBP,2015-10-01,6000,2015-08-20 17:45:12,,failed,,GB,,,9000
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ks-projects.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead(t *testing.T) {
	records, err := Read(writeCSV(t, sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	r := records[0]
	assert.Equal(t, "1000001", r.ID)
	assert.Equal(t, "Greeting cards", r.Name)
	assert.Equal(t, "Stationery", r.Category)
	assert.Equal(t, "Crafts", r.MainCategory)
	assert.Equal(t, "US", r.Country)
	assert.Equal(t, 120, r.Backers)
	assert.Equal(t, 4800.0, r.USDPledged)
	assert.Equal(t, 4500.0, r.USDGoal)
	assert.Equal(t, "successful", r.State)
	assert.Equal(t, "2015-08-11 12:00:28", r.Launched)
	assert.Equal(t, "2015-09-11", r.Deadline)

	// Extra export columns (currency, raw goal/pledged) are ignored.
	assert.Equal(t, "", records[1].Name)
}

func TestRead_EmptyNumericFieldsAreZero(t *testing.T) {
	records, err := Read(writeCSV(t, sampleCSV))
	require.NoError(t, err)

	r := records[2]
	assert.Zero(t, r.Backers)
	assert.Zero(t, r.USDPledged)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "nope.csv")
}

func TestRead_MissingColumn(t *testing.T) {
	csv := "ID,name,category,main_category,country,backers,usd_pledged_real,usd_goal_real,launched,deadline\n"
	_, err := Read(writeCSV(t, csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"state"`)
}

func TestRead_MalformedNumeric(t *testing.T) {
	csv := strings.Replace(sampleCSV, ",120,US,", ",many,US,", 1)
	_, err := Read(writeCSV(t, csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"backers"`)
	assert.Contains(t, err.Error(), "row 2")
}

func TestInspect(t *testing.T) {
	records, err := Read(writeCSV(t, sampleCSV))
	require.NoError(t, err)

	s := Inspect(records)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 1, s.NullNames)
	require.Len(t, s.StateCounts, 2)
	assert.Equal(t, StateCount{State: "failed", Count: 2}, s.StateCounts[0])
	assert.Equal(t, StateCount{State: "successful", Count: 1}, s.StateCounts[1])
}

func TestSummaryRender(t *testing.T) {
	var buf strings.Builder
	s := Inspect([]RawRecord{{State: "live", Name: "x"}})
	s.Render(&buf)

	out := buf.String()
	assert.Contains(t, out, "live")
	assert.Contains(t, out, "STATE")
}
