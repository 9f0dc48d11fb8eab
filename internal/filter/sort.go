package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"billtrack/internal/core"
)

type Sort string

const (
	SortNewestFirst      Sort = "newest"
	SortOldestFirst      Sort = "oldest"
	SortAmountDescending Sort = "high"
	SortAmountAscending  Sort = "low"
)

func ParseSort(s string) (Sort, error) {
	switch v := Sort(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SortNewestFirst, nil
	case SortNewestFirst, SortOldestFirst, SortAmountDescending, SortAmountAscending:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q", core.ErrValidation, s)
	}
}

// Apply returns a stably sorted copy of records. Equal keys keep input order.
func (s Sort) Apply(records []core.Transaction) []core.Transaction {
	out := slices.Clone(records)
	if out == nil {
		out = []core.Transaction{}
	}
	slices.SortStableFunc(out, s.compare)
	return out
}

func (s Sort) compare(a, b core.Transaction) int {
	switch s {
	case SortOldestFirst:
		return a.OccurredAt.Compare(b.OccurredAt)
	case SortAmountDescending:
		return b.Amount.Cmp(a.Amount)
	case SortAmountAscending:
		return a.Amount.Cmp(b.Amount)
	default:
		return b.OccurredAt.Compare(a.OccurredAt)
	}
}

// Apply runs window, scope and sort over records.
func Apply(records []core.Transaction, now time.Time, w Window, sc Scope, s Sort) []core.Transaction {
	return s.Apply(sc.Filter(w.Filter(records, now), now))
}

// ParseBound parses a YYYY-MM-DD or RFC 3339 value in loc. A date-only value
// used as an upper bound covers the whole day.
func ParseBound(s string, loc *time.Location, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", core.ErrValidation, s)
	}
	if upper {
		return EndOfDay(t), nil
	}
	return t, nil
}

// ParseMonth parses YYYY-MM.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid month %q", core.ErrValidation, s)
	}
	return t, nil
}

// ParseWeekday accepts English weekday names such as "sunday" or "mon".
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: invalid weekday %q", core.ErrValidation, s)
}
