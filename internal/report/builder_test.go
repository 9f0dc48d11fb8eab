package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
)

var now = time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return now }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func scenario() []core.Transaction {
	return []core.Transaction{
		{ID: "1", Title: "Salary", Kind: core.Income, Amount: dec("1000"), Due: decimal.Zero, OccurredAt: now},
		{ID: "2", Title: "", Kind: core.Expense, Amount: dec("400"), Due: decimal.Zero, OccurredAt: now.AddDate(0, -1, 0)},
		{ID: "3", Title: "Consulting", Kind: core.Income, Amount: dec("200"), Due: dec("50"), OccurredAt: now.AddDate(-2, 0, 0)},
	}
}

func TestBuild_AllSections(t *testing.T) {
	doc := NewBuilder(fixedClock).Build(scenario(), AllTimeLabel, DefaultOptions())

	assert.Equal(t, DocumentTitle, doc.Title)
	assert.Equal(t, AllTimeLabel, doc.Period)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, []SectionKind{SectionSummary, SectionMonthly, SectionDetails},
		[]SectionKind{doc.Sections[0].Kind, doc.Sections[1].Kind, doc.Sections[2].Kind})

	summary, ok := doc.Section(SectionSummary)
	require.True(t, ok)
	assert.Equal(t, SummaryTitle, summary.Title)
	require.Len(t, summary.Rows, 4)
	want := []struct {
		label string
		value string
	}{
		{"Total Income:", "1200"},
		{"Total Expenses:", "400"},
		{"Profit/Loss:", "800"},
		{"Total Due:", "50"},
	}
	for i, w := range want {
		assert.Equal(t, w.label, summary.Rows[i][0].Text)
		assert.True(t, dec(w.value).Equal(summary.Rows[i][1].Value), w.label)
	}
	assert.Equal(t, SignPositive, summary.Rows[2][1].Sign)
}

func TestBuild_MonthlySection(t *testing.T) {
	doc := NewBuilder(fixedClock).Build(scenario(), AllTimeLabel, DefaultOptions())

	monthly, ok := doc.Section(SectionMonthly)
	require.True(t, ok)
	assert.Equal(t, []string{"Month", "Income", "Expenses", "Profit/Loss"}, monthly.Columns)
	require.Len(t, monthly.Rows, MonthsInBreakdown)
	assert.Equal(t, "Nov 2025", monthly.Rows[0][0].Text)

	sep := monthly.Rows[10]
	assert.Equal(t, "Sep 2026", sep[0].Text)
	assert.True(t, dec("-400").Equal(sep[3].Value))
	assert.Equal(t, SignNegative, sep[3].Sign)

	oct := monthly.Rows[11]
	assert.True(t, dec("1000").Equal(oct[1].Value))
	assert.Equal(t, SignPositive, oct[3].Sign)
}

func TestBuild_DetailsSection(t *testing.T) {
	doc := NewBuilder(fixedClock).Build(scenario(), AllTimeLabel, DefaultOptions())

	details, ok := doc.Section(SectionDetails)
	require.True(t, ok)
	assert.Equal(t, []string{"Title", "Date", "Type", "Amount", "Due"}, details.Columns)
	require.Len(t, details.Rows, 3)

	first := details.Rows[0]
	assert.Equal(t, "Salary", first[0].Text)
	assert.Equal(t, "2026-10-17", first[1].Text)
	assert.Equal(t, "Income", first[2].Text)
	assert.Equal(t, SignPositive, first[3].Sign)

	second := details.Rows[1]
	assert.Equal(t, core.UntitledLabel, second[0].Text)
	assert.Equal(t, "Expense", second[2].Text)
	assert.Equal(t, SignNegative, second[3].Sign)

	assert.True(t, dec("50").Equal(details.Rows[2][4].Value))
}

func TestBuild_DetailsDatedInReportZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	clock := func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, ist) }
	// 02:00 IST on Oct 17, as a repository hands it back in UTC.
	stored := time.Date(2026, 10, 17, 2, 0, 0, 0, ist).UTC()
	records := []core.Transaction{{ID: "1", Title: "Tea", Kind: core.Expense, Amount: dec("20"), Due: decimal.Zero, OccurredAt: stored}}

	inPeriod, label := Period{Kind: PeriodDay}.Resolve(records, clock())
	require.Len(t, inPeriod, 1)
	assert.Equal(t, "October 17, 2026", label)

	doc := NewBuilder(clock).Build(inPeriod, label, DefaultOptions())
	details, ok := doc.Section(SectionDetails)
	require.True(t, ok)
	assert.Equal(t, "2026-10-17", details.Rows[0][1].Text)
}

func TestBuild_FlagsOff(t *testing.T) {
	doc := NewBuilder(fixedClock).Build(scenario(), "Year 2026", Options{})

	assert.Equal(t, DocumentTitle, doc.Title)
	assert.Equal(t, "Year 2026", doc.Period)
	assert.Empty(t, doc.Sections)
}

func TestBuild_EmptyRecords(t *testing.T) {
	doc := NewBuilder(fixedClock).Build(nil, AllTimeLabel, DefaultOptions())

	_, hasDetails := doc.Section(SectionDetails)
	assert.False(t, hasDetails, "details are omitted for an empty set")

	monthly, ok := doc.Section(SectionMonthly)
	require.True(t, ok)
	require.Len(t, monthly.Rows, 12)
	for _, row := range monthly.Rows {
		assert.True(t, row[1].Value.IsZero())
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(fixedClock)
	assert.Equal(t, b.Build(scenario(), "x", DefaultOptions()), b.Build(scenario(), "x", DefaultOptions()))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Financial_Report_20261017_150405.xlsx", Filename(now, "xlsx"))
}
