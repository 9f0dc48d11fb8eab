package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
)

// Runs only when TEST_POSTGRES_URL points at a disposable database.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	repo, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	principal := "test-" + uuid.NewString()

	tx := core.Transaction{
		ID:         uuid.NewString(),
		UserID:     principal,
		Title:      "Invoice",
		Amount:     decimal.RequireFromString("1500.25"),
		Kind:       core.Income,
		OccurredAt: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
		Due:        decimal.RequireFromString("100"),
	}
	require.NoError(t, repo.Insert(ctx, tx))
	t.Cleanup(func() { _ = repo.Delete(context.Background(), principal, tx.ID) })

	got, err := repo.Fetch(ctx, principal)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(tx.Amount))
	assert.True(t, got[0].Due.Equal(tx.Due))
	assert.True(t, got[0].OccurredAt.Equal(tx.OccurredAt))

	before, err := repo.Fingerprint(ctx, principal)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateDue(ctx, principal, tx.ID, decimal.Zero))
	after, err := repo.Fingerprint(ctx, principal)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	err = repo.UpdateDue(ctx, principal, "missing", decimal.Zero)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
