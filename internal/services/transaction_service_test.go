package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
	"billtrack/internal/storage/memory"
)

func TestTransactionService_Create(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub)
	svc.now = clock

	in := txn("", "", core.Expense, "400.005", "0", fixedNow)
	in.Title = "  Rent  "
	created, err := svc.Create(ctx, "alice", in)
	require.NoError(t, err)

	_, err = uuid.Parse(created.ID)
	assert.NoError(t, err, "id should be a uuid")
	assert.Equal(t, "alice", created.UserID)
	assert.Equal(t, "Rent", created.Title)
	assert.Equal(t, "400.01", created.Amount.StringFixed(2))

	stored, err := repo.Get(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)

	changes := pub.published()
	require.Len(t, changes, 1)
	assert.Equal(t, core.Change{UserID: "alice", ID: created.ID, Op: core.OpInsert, At: fixedNow}, changes[0])
}

func TestTransactionService_CreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub)

	_, err := svc.Create(ctx, "", txn("", "", core.Income, "10", "0", fixedNow))
	assert.ErrorIs(t, err, core.ErrAuthenticationRequired)

	_, err = svc.Create(ctx, "alice", txn("", "", core.Income, "0", "0", fixedNow))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Create(ctx, "alice", txn("", "", core.Kind("gift"), "10", "0", fixedNow))
	assert.ErrorIs(t, err, core.ErrInvalidKind)

	records, err := repo.Fetch(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, pub.published())
}

func TestTransactionService_PublishFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewTransactionService(repo, &recordingPublisher{err: errBoom})

	created, err := svc.Create(ctx, "alice", txn("", "", core.Income, "10", "0", fixedNow))
	require.NoError(t, err)

	_, err = repo.Get(ctx, "alice", created.ID)
	assert.NoError(t, err)
}

func TestTransactionService_NilPublisher(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil)
	_, err := svc.Create(context.Background(), "alice", txn("", "x", core.Income, "10", "0", fixedNow))
	assert.NoError(t, err)
	assert.NoError(t, svc.Close())
}

func TestTransactionService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	repo.Seed(txn("alice", "t1", core.Income, "10", "0", fixedNow))
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub)

	require.NoError(t, svc.Delete(ctx, "alice", "t1"))
	assert.ErrorIs(t, svc.Delete(ctx, "alice", "t1"), core.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "alice", " "), core.ErrValidation)

	changes := pub.published()
	require.Len(t, changes, 1)
	assert.Equal(t, core.OpDelete, changes[0].Op)
}

func TestTransactionService_UpdateDue(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	repo.Seed(txn("alice", "t1", core.Income, "100", "0", fixedNow))
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub)

	require.NoError(t, svc.UpdateDue(ctx, "alice", "t1", decimal.RequireFromString("12.5")))
	got, err := repo.Get(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "12.50", got.Due.StringFixed(2))

	assert.ErrorIs(t, svc.UpdateDue(ctx, "alice", "t1", decimal.NewFromInt(-1)), core.ErrValidation)
	assert.ErrorIs(t, svc.UpdateDue(ctx, "bob", "t1", decimal.Zero), core.ErrNotFound)

	changes := pub.published()
	require.Len(t, changes, 1)
	assert.Equal(t, core.OpUpdate, changes[0].Op)
}

func TestTransactionService_CloseClosesPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewTransactionService(memory.New(), pub)
	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
}
