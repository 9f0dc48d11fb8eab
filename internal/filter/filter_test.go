package filter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
)

// Saturday, 17 October 2026.
var now = time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)

func tx(id string, amount string, at time.Time) core.Transaction {
	return core.Transaction{
		ID:         id,
		Amount:     decimal.RequireFromString(amount),
		Kind:       core.Expense,
		OccurredAt: at,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func ids(records []core.Transaction) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func fixture() []core.Transaction {
	return []core.Transaction{
		tx("today", "10", day(2026, 10, 17)),
		tx("sunday", "30", day(2026, 10, 11)),
		tx("lastweek", "20", day(2026, 10, 10)),
		tx("september", "50", day(2026, 9, 30)),
		tx("lastyear", "40", day(2025, 10, 17)),
	}
}

func TestWindow_Filter(t *testing.T) {
	records := fixture()

	tests := []struct {
		name   string
		window Window
		want   []string
	}{
		{"all", AllTime(), []string{"today", "sunday", "lastweek", "september", "lastyear"}},
		{"current year", CurrentYear(), []string{"today", "sunday", "lastweek", "september"}},
		{"current month", CurrentMonth(), []string{"today", "sunday", "lastweek"}},
		{"custom inclusive", Custom(day(2026, 9, 30), day(2026, 10, 10)), []string{"lastweek", "september"}},
		{"custom missing to", Custom(day(2026, 9, 30), time.Time{}), []string{"today", "sunday", "lastweek", "september", "lastyear"}},
		{"custom missing from", Custom(time.Time{}, day(2026, 9, 30)), []string{"today", "sunday", "lastweek", "september", "lastyear"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.window.Filter(records, now)))
		})
	}
}

func TestScope_Filter(t *testing.T) {
	records := fixture()

	tests := []struct {
		name  string
		scope Scope
		want  []string
	}{
		{"all", AllTransactions(), []string{"today", "sunday", "lastweek", "september", "lastyear"}},
		{"today", Today(), []string{"today"}},
		{"week from sunday", ThisWeek(time.Sunday), []string{"today", "sunday"}},
		{"week from monday", ThisWeek(time.Monday), []string{"today"}},
		{"by month", ByMonth(2026, time.September), []string{"september"}},
		{"month of now", Scope{Kind: ScopeByMonth}, []string{"today", "sunday", "lastweek"}},
		{"custom", CustomScope(day(2025, 1, 1), day(2025, 12, 31)), []string{"lastyear"}},
		{"custom degraded", CustomScope(time.Time{}, time.Time{}), []string{"today", "sunday", "lastweek", "september", "lastyear"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.scope.Filter(records, now)))
		})
	}
}

func TestWindowAndScopeCommute(t *testing.T) {
	records := fixture()
	windows := []Window{AllTime(), CurrentYear(), CurrentMonth(), Custom(day(2026, 9, 1), day(2026, 10, 31))}
	scopes := []Scope{AllTransactions(), Today(), ThisWeek(time.Sunday), ByMonth(2026, time.September)}

	for _, w := range windows {
		for _, s := range scopes {
			a := s.Filter(w.Filter(records, now), now)
			b := w.Filter(s.Filter(records, now), now)
			assert.Equal(t, ids(a), ids(b), "window %s scope %s", w, s)
		}
	}
}

func TestFilterUsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	localNow := time.Date(2026, 10, 17, 1, 0, 0, 0, loc)
	// 20:00 UTC on the 16th is already the 17th in IST.
	r := tx("late", "5", time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC))

	assert.Len(t, Today().Filter([]core.Transaction{r}, localNow), 1)
}

func TestSort_Apply(t *testing.T) {
	records := []core.Transaction{
		tx("a", "20", day(2026, 10, 2)),
		tx("b", "10", day(2026, 10, 3)),
		tx("c", "20", day(2026, 10, 1)),
		tx("d", "5", day(2026, 10, 3)),
	}

	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(SortNewestFirst.Apply(records)))
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(SortOldestFirst.Apply(records)))
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(SortAmountDescending.Apply(records)))
	assert.Equal(t, []string{"d", "b", "a", "c"}, ids(SortAmountAscending.Apply(records)))

	// input untouched
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(records))
}

func TestSortIsIdempotent(t *testing.T) {
	records := fixture()
	for _, s := range []Sort{SortNewestFirst, SortOldestFirst, SortAmountDescending, SortAmountAscending} {
		once := s.Apply(records)
		assert.Equal(t, ids(once), ids(s.Apply(once)), string(s))
	}
}

func TestApply(t *testing.T) {
	got := Apply(fixture(), now, CurrentYear(), ThisWeek(time.Sunday), SortAmountDescending)
	assert.Equal(t, []string{"sunday", "today"}, ids(got))

	assert.NotNil(t, Apply(nil, now, AllTime(), AllTransactions(), SortNewestFirst))
}

func TestParsers(t *testing.T) {
	w, err := ParseWindow("monthly", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, WindowCurrentMonth, w.Kind)

	_, err = ParseWindow("decade", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, core.ErrValidation)

	month, err := ParseMonth("2026-09", time.UTC)
	require.NoError(t, err)
	s, err := ParseScope("month", month, time.Time{}, time.Time{}, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, ByMonth(2026, time.September), s)

	_, err = ParseSort("random")
	assert.ErrorIs(t, err, core.ErrValidation)

	wd, err := ParseWeekday("Mon")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, wd)
}

func TestParseBound(t *testing.T) {
	from, err := ParseBound("2026-10-01", time.UTC, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), from)

	to, err := ParseBound("2026-10-17", time.UTC, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 17, 23, 59, 59, 999999999, time.UTC), to)

	empty, err := ParseBound("", time.UTC, true)
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	_, err = ParseBound("17/10/2026", time.UTC, false)
	assert.ErrorIs(t, err, core.ErrValidation)
}
