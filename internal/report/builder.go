package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/aggregate"
	"billtrack/internal/core"
)

// MonthsInBreakdown is the length of the monthly section.
const MonthsInBreakdown = 12

const FilenamePrefix = "Financial_Report"

type Options struct {
	IncludeSummary           bool
	IncludeMonthlyBreakdown  bool
	IncludeTransactionDetail bool
}

func DefaultOptions() Options {
	return Options{
		IncludeSummary:           true,
		IncludeMonthlyBreakdown:  true,
		IncludeTransactionDetail: true,
	}
}

type Builder struct {
	Now func() time.Time
}

func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{Now: now}
}

// Build lays out records, already filtered to the report period, into a
// Document. The same input and clock always give the same Document.
func (b *Builder) Build(records []core.Transaction, periodLabel string, opts Options) Document {
	now := b.Now()
	doc := Document{
		Title:       DocumentTitle,
		Period:      periodLabel,
		GeneratedAt: now,
		Sections:    []Section{},
	}

	if opts.IncludeSummary {
		doc.Sections = append(doc.Sections, summarySection(aggregate.Totals(records)))
	}
	if opts.IncludeMonthlyBreakdown {
		doc.Sections = append(doc.Sections, monthlySection(aggregate.MonthlyBuckets(records, MonthsInBreakdown, now)))
	}
	if opts.IncludeTransactionDetail && len(records) > 0 {
		doc.Sections = append(doc.Sections, detailsSection(records, now.Location()))
	}
	return doc
}

func summarySection(s aggregate.Summary) Section {
	return Section{
		Kind:  SectionSummary,
		Title: SummaryTitle,
		Rows: [][]Cell{
			{TextCell("Total Income:"), CurrencyCell(s.Income, SignNone)},
			{TextCell("Total Expenses:"), CurrencyCell(s.Expense, SignNone)},
			{TextCell("Profit/Loss:"), CurrencyCell(s.Profit, signOf(s.Profit))},
			{TextCell("Total Due:"), CurrencyCell(s.Due, SignNone)},
		},
	}
}

func monthlySection(buckets []aggregate.MonthBucket) Section {
	rows := make([][]Cell, 0, len(buckets))
	for _, m := range buckets {
		rows = append(rows, []Cell{
			TextCell(m.Label),
			CurrencyCell(m.Income, SignNone),
			CurrencyCell(m.Expense, SignNone),
			CurrencyCell(m.Profit, signOf(m.Profit)),
		})
	}
	return Section{
		Kind:    SectionMonthly,
		Title:   MonthlyTitle,
		Columns: []string{"Month", "Income", "Expenses", "Profit/Loss"},
		Rows:    rows,
	}
}

// detailsSection dates each record in loc, the zone the period was resolved in.
func detailsSection(records []core.Transaction, loc *time.Location) Section {
	rows := make([][]Cell, 0, len(records))
	for _, r := range records {
		amountSign := SignNegative
		if r.Kind == core.Income {
			amountSign = SignPositive
		}
		due := r.Due
		if due.IsNegative() {
			due = decimal.Zero
		}
		rows = append(rows, []Cell{
			TextCell(r.DisplayTitle()),
			DateCell(r.OccurredAt.In(loc)),
			TextCell(r.Kind.Label()),
			CurrencyCell(r.Amount, amountSign),
			CurrencyCell(due, SignNone),
		})
	}
	return Section{
		Kind:    SectionDetails,
		Title:   DetailsTitle,
		Columns: []string{"Title", "Date", "Type", "Amount", "Due"},
		Rows:    rows,
	}
}

// Zero counts as profit.
func signOf(v decimal.Decimal) Sign {
	if v.IsNegative() {
		return SignNegative
	}
	return SignPositive
}

// Filename returns e.g. Financial_Report_20261017_150405.xlsx.
func Filename(at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", FilenamePrefix, at.Format("20060102_150405"), ext)
}
