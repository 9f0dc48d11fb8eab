// Package aggregate derives totals and monthly buckets from transaction lists.
// Everything here is pure; results are recomputed from whatever slice is passed.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
)

// MonthLabelLayout renders bucket labels such as "Oct 2026".
const MonthLabelLayout = "Jan 2006"

// Summary holds the headline figures of a set of transactions.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Profit  decimal.Decimal `json:"profit"`
	Due     decimal.Decimal `json:"due"`
}

// Maxima holds the largest single values of one kind on a day.
type Maxima struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Due     decimal.Decimal `json:"due"`
}

// MonthBucket aggregates one calendar month.
type MonthBucket struct {
	Start   time.Time       `json:"start"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Profit  decimal.Decimal `json:"profit"`
}

// Totals sums income and expense. Profit may be negative; Due only counts
// positive dues.
func Totals(records []core.Transaction) Summary {
	s := Summary{Income: decimal.Zero, Expense: decimal.Zero, Due: decimal.Zero}
	for _, r := range records {
		switch r.Kind {
		case core.Income:
			s.Income = s.Income.Add(r.Amount)
		case core.Expense:
			s.Expense = s.Expense.Add(r.Amount)
		}
		if r.Due.IsPositive() {
			s.Due = s.Due.Add(r.Due)
		}
	}
	s.Profit = s.Income.Sub(s.Expense)
	return s
}

// ForDay is Totals restricted to records on the calendar day of day, in day's location.
func ForDay(records []core.Transaction, day time.Time) Summary {
	return Totals(onDay(records, day))
}

// DailyMaxima returns the largest income, largest expense and largest positive
// due among records on the calendar day of day. Missing values are zero.
func DailyMaxima(records []core.Transaction, day time.Time) Maxima {
	m := Maxima{Income: decimal.Zero, Expense: decimal.Zero, Due: decimal.Zero}
	for _, r := range onDay(records, day) {
		switch r.Kind {
		case core.Income:
			m.Income = decimal.Max(m.Income, r.Amount)
		case core.Expense:
			m.Expense = decimal.Max(m.Expense, r.Amount)
		}
		if r.Due.IsPositive() {
			m.Due = decimal.Max(m.Due, r.Due)
		}
	}
	return m
}

// MonthlyBuckets returns monthsBack consecutive calendar months ending with the
// month of now, oldest first. Months without records are present with zeros.
func MonthlyBuckets(records []core.Transaction, monthsBack int, now time.Time) []MonthBucket {
	if monthsBack <= 0 {
		return []MonthBucket{}
	}
	loc := now.Location()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	buckets := make([]MonthBucket, monthsBack)
	index := make(map[monthKey]int, monthsBack)
	for i := range buckets {
		start := current.AddDate(0, i-monthsBack+1, 0)
		buckets[i] = MonthBucket{
			Start:   start,
			Label:   start.Format(MonthLabelLayout),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Profit:  decimal.Zero,
		}
		index[keyOf(start)] = i
	}

	for _, r := range records {
		i, ok := index[keyOf(r.OccurredAt.In(loc))]
		if !ok {
			continue
		}
		switch r.Kind {
		case core.Income:
			buckets[i].Income = buckets[i].Income.Add(r.Amount)
		case core.Expense:
			buckets[i].Expense = buckets[i].Expense.Add(r.Amount)
		}
	}
	for i := range buckets {
		buckets[i].Profit = buckets[i].Income.Sub(buckets[i].Expense)
	}
	return buckets
}

type monthKey struct {
	year  int
	month time.Month
}

func keyOf(t time.Time) monthKey {
	return monthKey{t.Year(), t.Month()}
}

func onDay(records []core.Transaction, day time.Time) []core.Transaction {
	loc := day.Location()
	y, m, d := day.Date()
	out := make([]core.Transaction, 0)
	for _, r := range records {
		ry, rm, rd := r.OccurredAt.In(loc).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, r)
		}
	}
	return out
}
