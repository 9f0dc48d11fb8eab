package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"billtrack/internal/core"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
)

// Sessions keeps one initialized, refreshed and subscribed ledger.Store per
// principal. Concurrent first requests for a principal share one setup.
type Sessions struct {
	source ledger.Source
	writer ledger.DueWriter
	feed   ledger.ChangeFeed
	opts   ledger.Options

	group  singleflight.Group
	mu     sync.Mutex
	stores map[string]*ledger.Store
	closed bool
	onEnd  []func(principal string)
}

// NewSessions builds stores from the given ports. writer and feed may be nil.
func NewSessions(source ledger.Source, writer ledger.DueWriter, feed ledger.ChangeFeed, opts ledger.Options) *Sessions {
	return &Sessions{
		source: source,
		writer: writer,
		feed:   feed,
		opts:   opts,
		stores: make(map[string]*ledger.Store),
	}
}

// OnEnd registers fn to run after a session of any principal ends, whether
// by End or because its change feed was lost. Register before serving.
func (s *Sessions) OnEnd(fn func(principal string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// Get returns principal's store, creating it on first use. A store whose
// first refresh fails is not kept, so the next call retries. A store whose
// change feed was lost is replaced by a fresh one.
func (s *Sessions) Get(ctx context.Context, principal string) (*ledger.Store, error) {
	if err := core.ValidatePrincipal(principal); err != nil {
		return nil, err
	}

	if store, ok := s.live(principal); ok {
		return store, nil
	}

	v, err, _ := s.group.Do(principal, func() (any, error) {
		return s.open(ctx, principal)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ledger.Store), nil
}

// live returns principal's store if it is still kept current. A store that
// lost its feed is removed and ended.
func (s *Sessions) live(principal string) (*ledger.Store, bool) {
	s.mu.Lock()
	store, ok := s.stores[principal]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if !store.State().FeedLost {
		s.mu.Unlock()
		return store, true
	}
	delete(s.stores, principal)
	s.mu.Unlock()

	s.release(principal, store, "Session dropped after change feed loss")
	return nil, false
}

func (s *Sessions) open(ctx context.Context, principal string) (*ledger.Store, error) {
	if store, ok := s.live(principal); ok {
		return store, nil
	}

	store := ledger.NewStore(s.source, s.writer, s.feed, s.opts)
	if err := store.Initialize(principal); err != nil {
		return nil, err
	}
	if err := store.Refresh(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	if s.feed != nil {
		if _, err := store.Subscribe(ctx, nil); err != nil {
			// Still usable; the principal just has to refresh by hand.
			slog.WarnContext(ctx, "Live updates unavailable for session",
				log.FieldComponent, log.ComponentSessions,
				log.FieldPrincipal, principal,
				log.FieldError, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = store.Close()
		return nil, core.ErrAuthenticationRequired
	}
	s.stores[principal] = store

	slog.InfoContext(ctx, "Session started",
		log.FieldComponent, log.ComponentSessions,
		log.FieldPrincipal, principal,
		log.FieldCount, len(s.stores))
	return store, nil
}

// End closes principal's store. It reports whether a session existed.
func (s *Sessions) End(principal string) bool {
	s.mu.Lock()
	store, ok := s.stores[principal]
	delete(s.stores, principal)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.release(principal, store, "Session ended")
	return true
}

func (s *Sessions) release(principal string, store *ledger.Store, msg string) {
	_ = store.Close()

	s.mu.Lock()
	hooks := append([]func(string){}, s.onEnd...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(principal)
	}

	slog.Info(msg,
		log.FieldComponent, log.ComponentSessions,
		log.FieldPrincipal, principal)
}

// Active lists the principals with a live session, sorted.
func (s *Sessions) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.stores))
	for p := range s.stores {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close ends every session. Later calls to Get fail.
func (s *Sessions) Close() error {
	s.mu.Lock()
	stores := s.stores
	s.stores = make(map[string]*ledger.Store)
	s.closed = true
	s.mu.Unlock()

	for _, store := range stores {
		_ = store.Close()
	}
	return nil
}
