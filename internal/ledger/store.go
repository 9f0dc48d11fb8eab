// Package ledger keeps a locally synchronized copy of a principal's remote
// transactions. Every change notification triggers a full refetch that
// replaces the snapshot atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
	"billtrack/internal/log"
)

// State is a point-in-time view of the store's sync status.
type State struct {
	Principal   string
	Version     uint64
	RefreshedAt time.Time
	Loading     bool
	Err         error

	// FeedLost reports that a change feed subscription ended on its own.
	// The snapshot is no longer kept current.
	FeedLost bool
}

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	// RefreshTimeout bounds refreshes triggered by the change feed (default: 30s)
	RefreshTimeout time.Duration

	// Now is the clock used to stamp snapshots (default: time.Now)
	Now func() time.Time
}

// Store is the ledger of one principal at a time. It is safe for concurrent use.
type Store struct {
	source Source
	writer DueWriter
	feed   ChangeFeed
	opts   Options

	mu         sync.Mutex
	principal  string
	generation uint64
	nextTicket uint64
	applied    uint64 // ticket of the refresh behind snapshot
	version    uint64 // monotonic across sessions
	inflight   int
	snapshot   Snapshot
	lastErr    error
	feedLost   bool
	subs       map[uint64]Unsubscribe
	nextSub    uint64
}

// NewStore creates an unbound store. writer and feed may be nil for
// read-only or non-live use.
func NewStore(source Source, writer DueWriter, feed ChangeFeed, opts Options) *Store {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		source: source,
		writer: writer,
		feed:   feed,
		opts:   opts,
		subs:   make(map[uint64]Unsubscribe),
	}
}

// Initialize binds the store to principal. Any previous snapshot, error and
// subscription is discarded, and responses still in flight are ignored.
func (s *Store) Initialize(principal string) error {
	if err := core.ValidatePrincipal(principal); err != nil {
		return err
	}

	s.mu.Lock()
	subs := s.resetLocked()
	s.principal = strings.TrimSpace(principal)
	s.snapshot = Snapshot{Principal: s.principal, Version: s.version}
	s.mu.Unlock()

	releaseAll(subs)
	return nil
}

// Close unbinds the store and releases every subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	subs := s.resetLocked()
	s.mu.Unlock()

	releaseAll(subs)
	return nil
}

// resetLocked clears all bound state and returns the subscriptions to release
// once the lock is dropped.
func (s *Store) resetLocked() []Unsubscribe {
	s.generation++
	s.version++
	s.principal = ""
	s.snapshot = Snapshot{Version: s.version}
	s.lastErr = nil
	s.feedLost = false
	s.applied = s.nextTicket
	s.inflight = 0

	subs := make([]Unsubscribe, 0, len(s.subs))
	for id, u := range s.subs {
		subs = append(subs, u)
		delete(s.subs, id)
	}
	return subs
}

// Refresh fetches the full collection and replaces the snapshot. On failure
// the previous snapshot stays and the error is recorded in State.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.principal == "" {
		s.mu.Unlock()
		return core.ErrAuthenticationRequired
	}
	principal := s.principal
	gen := s.generation
	s.nextTicket++
	ticket := s.nextTicket
	s.inflight++
	s.mu.Unlock()

	start := time.Now()
	records, err := s.source.Fetch(ctx, principal)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		slog.DebugContext(ctx, "Dropping refresh for torn down session",
			log.FieldComponent, log.ComponentLedger,
			"principal", principal)
		return nil
	}
	s.inflight--

	if err != nil {
		if ticket > s.applied {
			s.lastErr = err
		}
		slog.ErrorContext(ctx, "Ledger refresh failed",
			log.FieldComponent, log.ComponentLedger,
			log.FieldOperation, log.OpRefresh,
			"principal", principal,
			"error", err)
		return fmt.Errorf("%w: %w", core.ErrSyncFailure, err)
	}

	if ticket < s.applied {
		// A newer fetch already landed.
		slog.DebugContext(ctx, "Discarding stale refresh",
			log.FieldComponent, log.ComponentLedger,
			"ticket", ticket,
			"applied", s.applied)
		return nil
	}

	s.applied = ticket
	if !s.feedLost {
		s.lastErr = nil
	}
	s.version++
	s.snapshot = newSnapshot(principal, s.version, s.opts.Now(), records)

	slog.DebugContext(ctx, "Ledger refreshed",
		log.FieldComponent, log.ComponentLedger,
		"principal", principal,
		"records", len(records),
		"version", s.snapshot.Version,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Subscribe listens to remote changes for the bound principal. Each
// notification refreshes the store; onChange, if not nil, then receives the
// snapshot. The returned Unsubscribe is safe to call more than once.
func (s *Store) Subscribe(ctx context.Context, onChange func(Snapshot)) (Unsubscribe, error) {
	s.mu.Lock()
	if s.principal == "" {
		s.mu.Unlock()
		return nil, core.ErrAuthenticationRequired
	}
	if s.feed == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no change feed configured", core.ErrSyncFailure)
	}
	principal := s.principal
	gen := s.generation
	s.mu.Unlock()

	notify := func() { s.onRemoteChange(gen, onChange) }
	var (
		release Unsubscribe
		err     error
	)
	if lf, ok := s.feed.(LossReportingFeed); ok {
		release, err = lf.SubscribeWithLoss(ctx, principal, notify, func(cause error) {
			s.onFeedLost(gen, principal, cause)
		})
	} else {
		release, err = s.feed.Subscribe(ctx, principal, notify)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %w", core.ErrSyncFailure, err)
	}

	var once sync.Once
	s.mu.Lock()
	if gen != s.generation {
		// Torn down while subscribing.
		s.mu.Unlock()
		release()
		return func() {}, nil
	}
	s.nextSub++
	id := s.nextSub
	s.subs[id] = release
	s.mu.Unlock()

	slog.InfoContext(ctx, "Subscribed to ledger changes",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpSubscribe,
		"principal", principal)

	return func() {
		once.Do(func() {
			s.mu.Lock()
			u, ok := s.subs[id]
			delete(s.subs, id)
			s.mu.Unlock()
			if ok {
				u()
			}
		})
	}, nil
}

func (s *Store) onRemoteChange(gen uint64, onChange func(Snapshot)) {
	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RefreshTimeout)
	defer cancel()

	if err := s.Refresh(ctx); err != nil {
		return
	}
	if onChange == nil {
		return
	}

	s.mu.Lock()
	snap := s.snapshot
	current := gen == s.generation
	s.mu.Unlock()
	if current {
		onChange(snap)
	}
}

// onFeedLost records a subscription the feed could not keep alive. The
// snapshot stays readable; State reports the failure.
func (s *Store) onFeedLost(gen uint64, principal string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.feedLost = true
	s.lastErr = fmt.Errorf("%w: change feed lost: %w", core.ErrSyncFailure, cause)

	slog.Error("Ledger change feed lost",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpSubscribe,
		"principal", principal,
		"error", cause)
}

// UpdateDue sets the outstanding amount of one record and refreshes. The
// local snapshot is not touched before the refresh.
func (s *Store) UpdateDue(ctx context.Context, id string, due decimal.Decimal) error {
	if due.IsNegative() {
		return core.ErrNegativeDue
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: transaction id is required", core.ErrValidation)
	}

	s.mu.Lock()
	principal := s.principal
	s.mu.Unlock()
	if principal == "" {
		return core.ErrAuthenticationRequired
	}
	if s.writer == nil {
		return fmt.Errorf("%w: ledger is read-only", core.ErrSyncFailure)
	}

	if err := s.writer.UpdateDue(ctx, principal, id, due.Round(2)); err != nil {
		slog.WarnContext(ctx, "Due update failed",
			log.FieldComponent, log.ComponentLedger,
			log.FieldOperation, log.OpUpdateDue,
			"principal", principal,
			"id", id,
			"error", err)
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: update due: %w", core.ErrSyncFailure, err)
	}

	return s.Refresh(ctx)
}

// Snapshot returns the current snapshot. It is empty before the first refresh.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Principal:   s.principal,
		Version:     s.snapshot.Version,
		RefreshedAt: s.snapshot.RefreshedAt,
		Loading:     s.inflight > 0,
		Err:         s.lastErr,
		FeedLost:    s.feedLost,
	}
}

// Principal returns the bound principal, or "" when unbound.
func (s *Store) Principal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

func releaseAll(subs []Unsubscribe) {
	for _, u := range subs {
		u()
	}
}
