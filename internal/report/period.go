package report

import (
	"fmt"
	"strings"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/filter"
)

type PeriodKind string

const (
	PeriodAll    PeriodKind = "all"
	PeriodYear   PeriodKind = "year"
	PeriodMonth  PeriodKind = "month"
	PeriodDay    PeriodKind = "day"
	PeriodCustom PeriodKind = "custom"
)

const AllTimeLabel = "All Time"

// Period selects the records of a report and names them in the header.
// Year, month and day are relative to the time passed to Resolve.
type Period struct {
	Kind PeriodKind
	From time.Time
	To   time.Time
}

func ParsePeriod(s string, from, to time.Time) (Period, error) {
	switch k := PeriodKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return Period{Kind: PeriodAll}, nil
	case PeriodAll, PeriodYear, PeriodMonth, PeriodDay:
		return Period{Kind: k}, nil
	case PeriodCustom:
		return Period{Kind: k, From: from, To: to}, nil
	default:
		return Period{}, fmt.Errorf("%w: unknown report period %q", core.ErrValidation, s)
	}
}

// Resolve filters records to the period and returns its label. A custom
// period missing a bound covers everything and is labelled All Time.
func (p Period) Resolve(records []core.Transaction, now time.Time) ([]core.Transaction, string) {
	switch p.Kind {
	case PeriodYear:
		return filter.CurrentYear().Filter(records, now), fmt.Sprintf("Year %d", now.Year())
	case PeriodMonth:
		return filter.CurrentMonth().Filter(records, now), now.Format("January 2006")
	case PeriodDay:
		return filter.Today().Filter(records, now), now.Format("January 2, 2006")
	case PeriodCustom:
		if p.From.IsZero() || p.To.IsZero() {
			break
		}
		label := fmt.Sprintf("Custom Range: %s - %s", p.From.Format("Jan 2, 2006"), p.To.Format("Jan 2, 2006"))
		return filter.Custom(p.From, p.To).Filter(records, now), label
	}
	return filter.AllTime().Filter(records, now), AllTimeLabel
}
