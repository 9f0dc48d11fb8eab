// Package memory is an in-process transaction store and change feed, used as
// the default backend and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
)

type Store struct {
	mu      sync.RWMutex
	items   map[string][]core.Transaction // by principal
	changes map[string]uint64
}

func New() *Store {
	return &Store{
		items:   make(map[string][]core.Transaction),
		changes: make(map[string]uint64),
	}
}

// Seed inserts records without validation, for fixtures.
func (s *Store) Seed(records ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.items[r.UserID] = append(s.items[r.UserID], r)
		s.changes[r.UserID]++
	}
}

// Fetch returns principal's records newest first.
func (s *Store) Fetch(_ context.Context, principal string) ([]core.Transaction, error) {
	s.mu.RLock()
	out := slices.Clone(s.items[principal])
	s.mu.RUnlock()

	if out == nil {
		out = []core.Transaction{}
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	return out, nil
}

func (s *Store) Get(_ context.Context, principal, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.items[principal] {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) Insert(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.items[t.UserID] {
		if r.ID == t.ID {
			return fmt.Errorf("%w: duplicate transaction id %s", core.ErrValidation, t.ID)
		}
	}
	s.items[t.UserID] = append(s.items[t.UserID], t)
	s.changes[t.UserID]++
	return nil
}

func (s *Store) UpdateDue(_ context.Context, principal, id string, due decimal.Decimal) error {
	if due.IsNegative() {
		return core.ErrNegativeDue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.items[principal] {
		if r.ID == id {
			s.items[principal][i].Due = due
			s.changes[principal]++
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) Delete(_ context.Context, principal, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items[principal]
	for i, r := range items {
		if r.ID == id {
			s.items[principal] = slices.Delete(items, i, i+1)
			s.changes[principal]++
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

// Fingerprint changes whenever principal's records change.
func (s *Store) Fingerprint(_ context.Context, principal string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%d:%d", len(s.items[principal]), s.changes[principal]), nil
}

func (s *Store) Close() error { return nil }
