package dimension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataforge-labs/kicketl/internal/testutil"
	"github.com/dataforge-labs/kicketl/internal/transform"
	"github.com/dataforge-labs/kicketl/internal/warehouse"
)

// testWarehouse opens a SQLite warehouse in a temp directory with the star
// schema applied.
func testWarehouse(t *testing.T) warehouse.Adapter {
	t.Helper()
	ctx := context.Background()

	wh := warehouse.NewSQLiteAdapter()
	cfg := warehouse.Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "warehouse.db")}
	require.NoError(t, wh.Connect(ctx, cfg))
	t.Cleanup(func() { _ = wh.Close() })
	require.NoError(t, wh.EnsureSchema(ctx))
	return wh
}

func record(name, mainCat, subCat, state string, launched time.Time) transform.Record {
	flag := 0
	if state == "successful" {
		flag = 1
	}
	return transform.Record{
		ID:           "1",
		Name:         name,
		MainCategory: mainCat,
		Category:     subCat,
		Country:      "US",
		State:        state,
		SuccessFlag:  flag,
		LaunchedAt:   launched,
		DeadlineAt:   launched.AddDate(0, 1, 0),
		DurationDays: 30,
	}
}

func TestLoadDimState(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), false)
	ctx := context.Background()

	launched := time.Date(2015, 8, 11, 12, 0, 0, 0, time.UTC)
	records := []transform.Record{
		record("A", "Games", "Tabletop Games", "successful", launched),
		record("B", "Music", "Rock", "failed", launched),
		record("C", "Games", "Video Games", "successful", launched),
	}

	keys, err := b.LoadDimState(ctx, records)
	require.NoError(t, err)

	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "successful")
	assert.Contains(t, keys, "failed")
	assert.NotEqual(t, keys["successful"], keys["failed"])

	var isSuccessful bool
	err = wh.QueryRow(ctx, "SELECT is_successful FROM Dim_State WHERE state_name = ?", "successful").Scan(&isSuccessful)
	require.NoError(t, err)
	assert.True(t, isSuccessful)
}

func TestLoadDimState_Idempotent(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), false)
	ctx := context.Background()

	launched := time.Date(2015, 8, 11, 0, 0, 0, 0, time.UTC)
	records := []transform.Record{
		record("A", "Games", "Tabletop Games", "successful", launched),
		record("B", "Music", "Rock", "failed", launched),
	}

	first, err := b.LoadDimState(ctx, records)
	require.NoError(t, err)
	second, err := b.LoadDimState(ctx, records)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	var count int
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM Dim_State").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestLoadDimState_IncludesPreexistingMembers(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), false)
	ctx := context.Background()

	launched := time.Date(2015, 8, 11, 0, 0, 0, 0, time.UTC)
	_, err := b.LoadDimState(ctx, []transform.Record{
		record("A", "Games", "Tabletop Games", "canceled", launched),
	})
	require.NoError(t, err)

	// A later batch without "canceled" still sees its key in the map.
	keys, err := b.LoadDimState(ctx, []transform.Record{
		record("B", "Music", "Rock", "failed", launched),
	})
	require.NoError(t, err)
	assert.Contains(t, keys, "canceled")
	assert.Contains(t, keys, "failed")
}

func TestLoadDimCategory_Idempotent(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), false)
	ctx := context.Background()

	launched := time.Date(2015, 8, 11, 0, 0, 0, 0, time.UTC)
	records := []transform.Record{
		record("A", "Games", "Tabletop Games", "successful", launched),
	}

	first, err := b.LoadDimCategory(ctx, records)
	require.NoError(t, err)
	second, err := b.LoadDimCategory(ctx, records)
	require.NoError(t, err)

	key := CategoryKey{Main: "Games", Sub: "Tabletop Games"}
	assert.Equal(t, first[key], second[key])

	var count int
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM Dim_Category").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLoadDimCategory_CompositeKey(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), false)
	ctx := context.Background()

	launched := time.Date(2015, 8, 11, 0, 0, 0, 0, time.UTC)
	// Same sub-category name under two main categories is two members.
	records := []transform.Record{
		record("A", "Film & Video", "Documentary", "failed", launched),
		record("B", "Photography", "Documentary", "failed", launched),
	}

	keys, err := b.LoadDimCategory(ctx, records)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.NotEqual(t,
		keys[CategoryKey{Main: "Film & Video", Sub: "Documentary"}],
		keys[CategoryKey{Main: "Photography", Sub: "Documentary"}])
}

func TestLoadDimDate(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), false)
	ctx := context.Background()

	records := []transform.Record{
		// Two launch timestamps on the same calendar day collapse to one member.
		record("A", "Games", "Tabletop Games", "successful", time.Date(2019, 11, 23, 8, 0, 0, 0, time.UTC)),
		record("B", "Games", "Tabletop Games", "failed", time.Date(2019, 11, 23, 21, 30, 0, 0, time.UTC)),
		record("C", "Music", "Rock", "failed", time.Date(2015, 3, 7, 0, 0, 0, 0, time.UTC)),
	}

	keys, err := b.LoadDimDate(ctx, records)
	require.NoError(t, err)

	assert.Len(t, keys, 2)
	assert.Equal(t, 20191123, keys["2019-11-23"])
	assert.Equal(t, 20150307, keys["2015-03-07"])

	var dayOfWeek string
	var isWeekend bool
	err = wh.QueryRow(ctx, "SELECT day_of_week, is_weekend FROM Dim_Date WHERE date_key = ?", 20191123).
		Scan(&dayOfWeek, &isWeekend)
	require.NoError(t, err)
	assert.Equal(t, "Saturday", dayOfWeek)
	assert.True(t, isWeekend)
}

func TestLoadDimDate_Idempotent(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), false)
	ctx := context.Background()

	records := []transform.Record{
		record("A", "Games", "Tabletop Games", "successful", time.Date(2019, 11, 23, 8, 0, 0, 0, time.UTC)),
	}

	_, err := b.LoadDimDate(ctx, records)
	require.NoError(t, err)
	_, err = b.LoadDimDate(ctx, records)
	require.NoError(t, err)

	var count int
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM Dim_Date").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestBuilder_Sentinels(t *testing.T) {
	wh := testWarehouse(t)
	b := NewBuilder(wh, testutil.NewTestLogger(t), true)
	ctx := context.Background()

	launched := time.Date(2015, 8, 11, 0, 0, 0, 0, time.UTC)
	records := []transform.Record{
		record("A", "Games", "Tabletop Games", "successful", launched),
	}

	stateKeys, err := b.LoadDimState(ctx, records)
	require.NoError(t, err)
	categoryKeys, err := b.LoadDimCategory(ctx, records)
	require.NoError(t, err)
	dateKeys, err := b.LoadDimDate(ctx, records)
	require.NoError(t, err)

	assert.Contains(t, stateKeys, UnknownMember)
	assert.Contains(t, categoryKeys, CategoryKey{Main: UnknownMember, Sub: UnknownMember})
	assert.Equal(t, UnknownDateKey, dateKeys["1900-01-01"])
}

func TestBuildInsertIgnore(t *testing.T) {
	got := buildInsertIgnore("Dim_State", []string{"state_name", "is_successful"}, "state_name", 2)
	want := "INSERT INTO Dim_State (state_name, is_successful) VALUES (?, ?), (?, ?) ON CONFLICT (state_name) DO NOTHING"
	assert.Equal(t, want, got)
}
