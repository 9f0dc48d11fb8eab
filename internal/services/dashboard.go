package services

import (
	"fmt"
	"strconv"
	"time"

	"billtrack/internal/aggregate"
	"billtrack/internal/cache"
	"billtrack/internal/filter"
	"billtrack/internal/ledger"
)

// MonthsOnDashboard is the length of the dashboard's monthly chart.
const MonthsOnDashboard = 12

// Dashboard is everything the summary screen shows for one window.
type Dashboard struct {
	Window      string                  `json:"window"`
	Totals      aggregate.Summary       `json:"totals"`
	Today       aggregate.Summary       `json:"today"`
	TodayMax    aggregate.Maxima        `json:"today_max"`
	Monthly     []aggregate.MonthBucket `json:"monthly"`
	Count       int                     `json:"count"`
	Version     uint64                  `json:"version"`
	RefreshedAt time.Time               `json:"refreshed_at"`
}

// DashboardService computes dashboards and memoizes them. Entries are keyed
// by snapshot version and calendar day, so a refresh or a new day never
// serves stale figures.
type DashboardService struct {
	cache cache.Cache[Dashboard]
	now   func() time.Time
}

// NewDashboardService memoizes in c, which may be nil to disable caching.
func NewDashboardService(c cache.Cache[Dashboard], now func() time.Time) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{cache: c, now: now}
}

func (d *DashboardService) Summary(snap ledger.Snapshot, w filter.Window) Dashboard {
	now := d.now()
	key := dashboardKey(snap, w, now)
	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			return cached
		}
	}

	records := snap.Records()
	inWindow := w.Filter(records, now)
	dash := Dashboard{
		Window:      w.String(),
		Totals:      aggregate.Totals(inWindow),
		Today:       aggregate.ForDay(records, now),
		TodayMax:    aggregate.DailyMaxima(records, now),
		Monthly:     aggregate.MonthlyBuckets(records, MonthsOnDashboard, now),
		Count:       len(inWindow),
		Version:     snap.Version,
		RefreshedAt: snap.RefreshedAt,
	}

	if d.cache != nil {
		d.cache.Set(key, dash)
	}
	return dash
}

// Forget drops every memoized dashboard of principal.
func (d *DashboardService) Forget(principal string) {
	if d.cache != nil {
		d.cache.DeletePrefix(principalKey(principal) + "|")
	}
}

func dashboardKey(snap ledger.Snapshot, w filter.Window, now time.Time) string {
	return fmt.Sprintf("%s|%d|%s|%s", principalKey(snap.Principal), snap.Version, now.Format("2006-01-02"), w.String())
}

// principalKey quotes principal so no principal's key prefixes another's.
func principalKey(principal string) string {
	return strconv.Quote(principal)
}
