package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/filter"
	"billtrack/internal/report"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// ListQuery is the parsed query of the transaction list.
type ListQuery struct {
	Window filter.Window
	Scope  filter.Scope
	Sort   filter.Sort
}

// ReportQuery is the parsed query of the report download.
type ReportQuery struct {
	Period  report.Period
	Options report.Options
	Format  string
}

// parseRange reads from and to. A date-only to covers the whole day.
func parseRange(q url.Values, loc *time.Location) (time.Time, time.Time, error) {
	from, err := filter.ParseBound(q.Get("from"), loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := filter.ParseBound(q.Get("to"), loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must not be after to", core.ErrValidation)
	}
	return from, to, nil
}

// ParseWindow reads window, from and to.
func ParseWindow(q url.Values, loc *time.Location) (filter.Window, error) {
	from, to, err := parseRange(q, loc)
	if err != nil {
		return filter.Window{}, err
	}
	return filter.ParseWindow(q.Get("window"), from, to)
}

// ParseListQuery reads window, scope, month, from, to and sort. from and to
// bound whichever of window and scope is custom.
func ParseListQuery(q url.Values, loc *time.Location, weekStart time.Weekday) (ListQuery, error) {
	from, to, err := parseRange(q, loc)
	if err != nil {
		return ListQuery{}, err
	}
	w, err := filter.ParseWindow(q.Get("window"), from, to)
	if err != nil {
		return ListQuery{}, err
	}
	month, err := filter.ParseMonth(q.Get("month"), loc)
	if err != nil {
		return ListQuery{}, err
	}
	sc, err := filter.ParseScope(q.Get("scope"), month, from, to, weekStart)
	if err != nil {
		return ListQuery{}, err
	}
	s, err := filter.ParseSort(q.Get("sort"))
	if err != nil {
		return ListQuery{}, err
	}
	return ListQuery{Window: w, Scope: sc, Sort: s}, nil
}

// ParseReportQuery reads period, from, to, the section flags and format.
// Sections default to included; format defaults to xlsx.
func ParseReportQuery(q url.Values, loc *time.Location) (ReportQuery, error) {
	from, to, err := parseRange(q, loc)
	if err != nil {
		return ReportQuery{}, err
	}
	period, err := report.ParsePeriod(q.Get("period"), from, to)
	if err != nil {
		return ReportQuery{}, err
	}

	opts := report.DefaultOptions()
	flags := []struct {
		name string
		dst  *bool
	}{
		{"summary", &opts.IncludeSummary},
		{"monthly", &opts.IncludeMonthlyBreakdown},
		{"details", &opts.IncludeTransactionDetail},
	}
	for _, f := range flags {
		if err := parseFlag(q.Get(f.name), f.name, f.dst); err != nil {
			return ReportQuery{}, err
		}
	}

	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "xlsx"
	}
	return ReportQuery{Period: period, Options: opts, Format: format}, nil
}

func parseFlag(v, name string, dst *bool) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s must be true or false", core.ErrValidation, name)
	}
	*dst = b
	return nil
}

type dueRequest struct {
	Due json.RawMessage `json:"due"`
}

// ParseDueBody reads {"due": "12.50"}. A JSON number is accepted too.
func ParseDueBody(body io.Reader) (string, error) {
	var req dueRequest
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return "", fmt.Errorf("%w: invalid request body", core.ErrValidation)
	}
	if len(req.Due) == 0 || string(req.Due) == "null" {
		return "", fmt.Errorf("%w: due is required", core.ErrValidation)
	}

	var s string
	if err := json.Unmarshal(req.Due, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(req.Due, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: due must be a number or numeric string", core.ErrValidation)
}
