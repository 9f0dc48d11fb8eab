// Package report builds the tabular financial report. The Document is a
// renderer-neutral tree; subpackages serialize it to xlsx, CSV or Google
// Sheets.
package report

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DocumentTitle = "Financial Report"

	SummaryTitle = "Financial Summary"
	MonthlyTitle = "Monthly Financial Overview"
	DetailsTitle = "Transaction Details"
)

type SectionKind string

const (
	SectionSummary SectionKind = "summary"
	SectionMonthly SectionKind = "monthly"
	SectionDetails SectionKind = "details"
)

type CellKind int

const (
	CellText CellKind = iota
	CellDate
	CellCurrency
)

// Sign marks a value for positive or negative styling.
type Sign int

const (
	SignNone Sign = iota
	SignPositive
	SignNegative
)

type Cell struct {
	Kind  CellKind
	Text  string
	Value decimal.Decimal
	Sign  Sign
}

func TextCell(s string) Cell { return Cell{Kind: CellText, Text: s} }

func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Text: t.Format(time.DateOnly)}
}

func CurrencyCell(v decimal.Decimal, sign Sign) Cell {
	return Cell{Kind: CellCurrency, Text: v.StringFixed(2), Value: v, Sign: sign}
}

type Section struct {
	Kind    SectionKind
	Title   string
	Columns []string // nil for label/value sections
	Rows    [][]Cell
}

// Document is the header plus the included sections in fixed order.
type Document struct {
	Title       string
	Period      string
	GeneratedAt time.Time
	Sections    []Section
}

func (d Document) Section(kind SectionKind) (Section, bool) {
	for _, s := range d.Sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

// Width is the number of columns spanned by the widest section, at least 5.
func (d Document) Width() int {
	w := 5
	for _, s := range d.Sections {
		if len(s.Columns) > w {
			w = len(s.Columns)
		}
	}
	return w
}
