package filter

import (
	"fmt"
	"strings"
	"time"

	"billtrack/internal/core"
)

type ScopeKind string

const (
	ScopeAll      ScopeKind = "all"
	ScopeToday    ScopeKind = "today"
	ScopeThisWeek ScopeKind = "week"
	ScopeByMonth  ScopeKind = "month"
	ScopeCustom   ScopeKind = "custom"
)

// Scope is the transaction-list filter, applied independently of Window.
type Scope struct {
	Kind      ScopeKind
	Year      int
	Month     time.Month
	From      time.Time
	To        time.Time
	WeekStart time.Weekday
}

func AllTransactions() Scope { return Scope{Kind: ScopeAll} }
func Today() Scope           { return Scope{Kind: ScopeToday} }

// ThisWeek matches the calendar week containing now, starting on weekStart.
func ThisWeek(weekStart time.Weekday) Scope {
	return Scope{Kind: ScopeThisWeek, WeekStart: weekStart}
}

func ByMonth(year int, month time.Month) Scope {
	return Scope{Kind: ScopeByMonth, Year: year, Month: month}
}

// CustomScope has the same inclusive and missing-bound rules as Custom.
func CustomScope(from, to time.Time) Scope {
	return Scope{Kind: ScopeCustom, From: from, To: to}
}

// ParseScope maps "all", "today", "week", "month" and "custom" to a Scope.
// month is only read for "month"; a zero month means the month of now is
// resolved at filter time.
func ParseScope(s string, month time.Time, from, to time.Time, weekStart time.Weekday) (Scope, error) {
	switch ScopeKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeAll:
		return AllTransactions(), nil
	case ScopeToday:
		return Today(), nil
	case ScopeThisWeek:
		return ThisWeek(weekStart), nil
	case ScopeByMonth:
		if month.IsZero() {
			return Scope{Kind: ScopeByMonth}, nil
		}
		return ByMonth(month.Year(), month.Month()), nil
	case ScopeCustom:
		return CustomScope(from, to), nil
	default:
		return Scope{}, fmt.Errorf("%w: unknown transaction filter %q", core.ErrValidation, s)
	}
}

func (s Scope) Contains(at, now time.Time) bool {
	loc := now.Location()
	at = at.In(loc)
	switch s.Kind {
	case ScopeToday:
		return sameDay(at, now)
	case ScopeThisWeek:
		start := StartOfWeek(now, s.WeekStart)
		return !at.Before(start) && at.Before(start.AddDate(0, 0, 7))
	case ScopeByMonth:
		year, month := s.Year, s.Month
		if year == 0 || month == 0 {
			year, month = now.Year(), now.Month()
		}
		return at.Year() == year && at.Month() == month
	case ScopeCustom:
		return between(at, s.From, s.To)
	default:
		return true
	}
}

func (s Scope) Filter(records []core.Transaction, now time.Time) []core.Transaction {
	return keep(records, func(t core.Transaction) bool { return s.Contains(t.OccurredAt, now) })
}

func (s Scope) String() string {
	switch s.Kind {
	case "":
		return string(ScopeAll)
	case ScopeThisWeek:
		return fmt.Sprintf("%s:%d", s.Kind, s.WeekStart)
	case ScopeByMonth:
		return fmt.Sprintf("%s:%04d-%02d", s.Kind, s.Year, s.Month)
	case ScopeCustom:
		return fmt.Sprintf("%s:%s:%s", s.Kind, stamp(s.From), stamp(s.To))
	default:
		return string(s.Kind)
	}
}

// StartOfDay returns midnight of t in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfWeek returns midnight of the most recent weekStart on or before t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
