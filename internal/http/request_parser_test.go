package http

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
	"billtrack/internal/filter"
	"billtrack/internal/report"
)

func TestParseListQuery(t *testing.T) {
	q := url.Values{
		"window": {"custom"},
		"scope":  {"month"},
		"month":  {"2026-09"},
		"from":   {"2026-01-01"},
		"to":     {"2026-06-30"},
		"sort":   {"high"},
	}
	got, err := ParseListQuery(q, time.UTC, time.Monday)
	require.NoError(t, err)

	assert.Equal(t, filter.WindowCustom, got.Window.Kind)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got.Window.From)
	assert.Equal(t, 30, got.Window.To.Day())
	assert.Equal(t, 23, got.Window.To.Hour(), "date-only to covers the whole day")
	assert.Equal(t, filter.ByMonth(2026, time.September), got.Scope)
	assert.Equal(t, filter.SortAmountDescending, got.Sort)
}

func TestParseListQuery_Defaults(t *testing.T) {
	got, err := ParseListQuery(url.Values{}, time.UTC, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, filter.AllTime(), got.Window)
	assert.Equal(t, filter.AllTransactions(), got.Scope)
	assert.Equal(t, filter.SortNewestFirst, got.Sort)
}

func TestParseListQuery_Invalid(t *testing.T) {
	tests := map[string]url.Values{
		"window":   {"window": {"decade"}},
		"scope":    {"scope": {"fortnight"}},
		"sort":     {"sort": {"random"}},
		"month":    {"scope": {"month"}, "month": {"09-2026"}},
		"from":     {"from": {"yesterday"}},
		"reversed": {"from": {"2026-10-02"}, "to": {"2026-10-01"}},
	}
	for name, q := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseListQuery(q, time.UTC, time.Sunday)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestParseReportQuery(t *testing.T) {
	got, err := ParseReportQuery(url.Values{}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, report.PeriodAll, got.Period.Kind)
	assert.Equal(t, report.DefaultOptions(), got.Options)
	assert.Equal(t, "xlsx", got.Format)

	got, err = ParseReportQuery(url.Values{
		"period":  {"Custom"},
		"from":    {"2026-01-01"},
		"to":      {"2026-03-31"},
		"summary": {"false"},
		"details": {"0"},
		"format":  {" CSV "},
	}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, report.PeriodCustom, got.Period.Kind)
	assert.False(t, got.Options.IncludeSummary)
	assert.True(t, got.Options.IncludeMonthlyBreakdown)
	assert.False(t, got.Options.IncludeTransactionDetail)
	assert.Equal(t, "csv", got.Format)

	_, err = ParseReportQuery(url.Values{"period": {"quarter"}}, time.UTC)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = ParseReportQuery(url.Values{"monthly": {"sometimes"}}, time.UTC)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestParseDueBody(t *testing.T) {
	tests := []struct {
		body    string
		want    string
		wantErr bool
	}{
		{body: `{"due":"12.50"}`, want: "12.50"},
		{body: `{"due":7.25}`, want: "7.25"},
		{body: `{"due":0}`, want: "0"},
		{body: `{}`, wantErr: true},
		{body: `{"due":null}`, wantErr: true},
		{body: `{"due":true}`, wantErr: true},
		{body: `{"due":"1","extra":1}`, wantErr: true},
		{body: `not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := ParseDueBody(strings.NewReader(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
