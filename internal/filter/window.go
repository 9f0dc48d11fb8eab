// Package filter narrows and orders transaction lists.
//
// Every filter is a pure predicate over OccurredAt evaluated in the location of
// the supplied now, so time windows and scopes can be applied in any order with
// the same result. Inputs are never mutated.
package filter

import (
	"fmt"
	"strings"
	"time"

	"billtrack/internal/core"
)

type WindowKind string

const (
	WindowAll          WindowKind = "all"
	WindowCurrentYear  WindowKind = "year"
	WindowCurrentMonth WindowKind = "month"
	WindowCustom       WindowKind = "custom"
)

// Window is the dashboard-level time filter.
type Window struct {
	Kind WindowKind
	From time.Time
	To   time.Time
}

func AllTime() Window      { return Window{Kind: WindowAll} }
func CurrentYear() Window  { return Window{Kind: WindowCurrentYear} }
func CurrentMonth() Window { return Window{Kind: WindowCurrentMonth} }

// Custom is inclusive on both ends. A missing bound makes it match everything.
func Custom(from, to time.Time) Window {
	return Window{Kind: WindowCustom, From: from, To: to}
}

// ParseWindow maps "all", "year", "month" and "custom" to a Window.
func ParseWindow(s string, from, to time.Time) (Window, error) {
	switch WindowKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", WindowAll:
		return AllTime(), nil
	case WindowCurrentYear, "yearly":
		return CurrentYear(), nil
	case WindowCurrentMonth, "monthly":
		return CurrentMonth(), nil
	case WindowCustom:
		return Custom(from, to), nil
	default:
		return Window{}, fmt.Errorf("%w: unknown time window %q", core.ErrValidation, s)
	}
}

// Contains reports whether at falls inside the window relative to now.
func (w Window) Contains(at, now time.Time) bool {
	loc := now.Location()
	at = at.In(loc)
	switch w.Kind {
	case WindowCurrentYear:
		return at.Year() == now.Year()
	case WindowCurrentMonth:
		return at.Year() == now.Year() && at.Month() == now.Month()
	case WindowCustom:
		return between(at, w.From, w.To)
	default:
		return true
	}
}

func (w Window) Filter(records []core.Transaction, now time.Time) []core.Transaction {
	return keep(records, func(t core.Transaction) bool { return w.Contains(t.OccurredAt, now) })
}

func (w Window) String() string {
	if w.Kind == "" {
		return string(WindowAll)
	}
	if w.Kind == WindowCustom {
		return fmt.Sprintf("%s:%s:%s", w.Kind, stamp(w.From), stamp(w.To))
	}
	return string(w.Kind)
}

// between is inclusive and degrades to true when either bound is missing.
func between(at, from, to time.Time) bool {
	if from.IsZero() || to.IsZero() {
		return true
	}
	return !at.Before(from) && !at.After(to)
}

func keep(records []core.Transaction, pred func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
