package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
)

var (
	fixedNow = time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)
	errBoom  = errors.New("broker unavailable")
)

func clock() time.Time { return fixedNow }

func txn(principal, id string, kind core.Kind, amount, due string, at time.Time) core.Transaction {
	return core.Transaction{
		ID:         id,
		UserID:     principal,
		Title:      "t-" + id,
		Amount:     decimal.RequireFromString(amount),
		Kind:       kind,
		OccurredAt: at,
		Due:        decimal.RequireFromString(due),
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []core.Change
	err     error
	closed  bool
}

func (p *recordingPublisher) Publish(_ context.Context, change core.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) published() []core.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Change(nil), p.changes...)
}
