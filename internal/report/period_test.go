package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
)

func TestPeriod_Resolve(t *testing.T) {
	records := scenario()
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 17, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name      string
		period    Period
		wantLabel string
		wantIDs   []string
	}{
		{"all", Period{Kind: PeriodAll}, "All Time", []string{"1", "2", "3"}},
		{"year", Period{Kind: PeriodYear}, "Year 2026", []string{"1", "2"}},
		{"month", Period{Kind: PeriodMonth}, "October 2026", []string{"1"}},
		{"day", Period{Kind: PeriodDay}, "October 17, 2026", []string{"1"}},
		{"custom", Period{Kind: PeriodCustom, From: from, To: to}, "Custom Range: Oct 1, 2026 - Oct 17, 2026", []string{"1"}},
		{"custom missing bound", Period{Kind: PeriodCustom, From: from}, "All Time", []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, label := tt.period.Resolve(records, now)
			assert.Equal(t, tt.wantLabel, label)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, p.Kind)

	p, err = ParsePeriod("Month", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, p.Kind)

	_, err = ParsePeriod("week", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, core.ErrValidation)
}
