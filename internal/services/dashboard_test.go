package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/cache"
	"billtrack/internal/core"
	"billtrack/internal/filter"
	"billtrack/internal/ledger"
	"billtrack/internal/storage/memory"
)

func snapshotOf(t *testing.T, repo *memory.Store, principal string) (*ledger.Store, ledger.Snapshot) {
	t.Helper()
	store := ledger.NewStore(repo, repo, nil, ledger.Options{Now: clock})
	require.NoError(t, store.Initialize(principal))
	require.NoError(t, store.Refresh(context.Background()))
	return store, store.Snapshot()
}

func TestDashboardService_Summary(t *testing.T) {
	repo := memory.New()
	lastYear := fixedNow.AddDate(-1, 0, 0)
	repo.Seed(
		txn("alice", "a", core.Income, "1000", "0", fixedNow),
		txn("alice", "b", core.Expense, "400", "0", fixedNow.Add(-time.Hour)),
		txn("alice", "c", core.Income, "200", "50", fixedNow.AddDate(0, -1, 0)),
		txn("alice", "d", core.Income, "999", "0", lastYear),
	)
	_, snap := snapshotOf(t, repo, "alice")

	svc := NewDashboardService(nil, clock)

	all := svc.Summary(snap, filter.AllTime())
	assert.Equal(t, "2199.00", all.Totals.Income.StringFixed(2))
	assert.Equal(t, 4, all.Count)

	year := svc.Summary(snap, filter.CurrentYear())
	assert.Equal(t, "1200.00", year.Totals.Income.StringFixed(2))
	assert.Equal(t, "400.00", year.Totals.Expense.StringFixed(2))
	assert.Equal(t, "800.00", year.Totals.Profit.StringFixed(2))
	assert.Equal(t, "50.00", year.Totals.Due.StringFixed(2))

	assert.Equal(t, "1000.00", year.Today.Income.StringFixed(2))
	assert.Equal(t, "400.00", year.TodayMax.Expense.StringFixed(2))
	assert.Len(t, year.Monthly, MonthsOnDashboard)
	assert.Equal(t, snap.Version, year.Version)
}

func TestDashboardService_MemoizesBySnapshotVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	repo.Seed(txn("alice", "a", core.Income, "10", "0", fixedNow))
	store, snap := snapshotOf(t, repo, "alice")

	lru := cache.NewLRUCache[Dashboard](16, time.Minute)
	svc := NewDashboardService(lru, clock)

	first := svc.Summary(snap, filter.AllTime())
	_ = svc.Summary(snap, filter.AllTime())
	assert.Equal(t, 1, lru.Size())

	repo.Seed(txn("alice", "b", core.Income, "5", "0", fixedNow))
	require.NoError(t, store.Refresh(ctx))
	second := svc.Summary(store.Snapshot(), filter.AllTime())

	assert.Equal(t, 2, lru.Size())
	assert.Equal(t, "10.00", first.Totals.Income.StringFixed(2))
	assert.Equal(t, "15.00", second.Totals.Income.StringFixed(2))

	svc.Forget("alice")
	assert.Zero(t, lru.Size())
}

func TestDashboardService_ForgetOnlyThatPrincipal(t *testing.T) {
	repo := memory.New()
	repo.Seed(
		txn("alice", "a", core.Income, "10", "0", fixedNow),
		txn("alice|x", "b", core.Income, "20", "0", fixedNow),
	)
	_, alice := snapshotOf(t, repo, "alice")
	_, other := snapshotOf(t, repo, "alice|x")

	lru := cache.NewLRUCache[Dashboard](16, time.Minute)
	svc := NewDashboardService(lru, clock)
	_ = svc.Summary(alice, filter.AllTime())
	_ = svc.Summary(other, filter.AllTime())
	require.Equal(t, 2, lru.Size())

	svc.Forget("alice")
	assert.Equal(t, 1, lru.Size())
	_, ok := lru.Get(dashboardKey(other, filter.AllTime(), fixedNow))
	assert.True(t, ok)
}
