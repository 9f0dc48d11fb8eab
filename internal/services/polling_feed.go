package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
)

// Fingerprinter summarizes a principal's remote records in a string that
// changes whenever any of them is inserted, updated or deleted.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, principal string) (string, error)
}

// PollingFeedConfig holds configuration for the polling feed
type PollingFeedConfig struct {
	// Interval is how often watched principals are checked (default: 15s)
	Interval time.Duration

	// Timeout bounds a single fingerprint query (default: 5s)
	Timeout time.Duration
}

func DefaultPollingFeedConfig() PollingFeedConfig {
	return PollingFeedConfig{
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
	}
}

type watch struct {
	last      string
	listeners map[uint64]func()
}

// PollingFeed is a ledger.ChangeFeed for stores that cannot push
// notifications. It compares fingerprints on a ticker and fires the
// listeners of every principal whose fingerprint moved.
type PollingFeed struct {
	source Fingerprinter
	config PollingFeedConfig

	watchMu sync.Mutex
	watches map[string]*watch
	nextID  uint64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewPollingFeed(source Fingerprinter, config PollingFeedConfig) *PollingFeed {
	defaults := DefaultPollingFeedConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &PollingFeed{
		source:  source,
		config:  config,
		watches: make(map[string]*watch),
	}
}

// Subscribe records the current fingerprint of principal as the baseline, so
// only later changes fire onChange.
func (f *PollingFeed) Subscribe(ctx context.Context, principal string, onChange func()) (ledger.Unsubscribe, error) {
	if err := core.ValidatePrincipal(principal); err != nil {
		return nil, err
	}

	f.watchMu.Lock()
	_, known := f.watches[principal]
	f.watchMu.Unlock()

	var baseline string
	if !known {
		fp, err := f.fingerprint(ctx, principal)
		if err != nil {
			return nil, fmt.Errorf("baseline fingerprint: %w", err)
		}
		baseline = fp
	}

	f.watchMu.Lock()
	defer f.watchMu.Unlock()
	w, ok := f.watches[principal]
	if !ok {
		w = &watch{last: baseline, listeners: make(map[uint64]func())}
		f.watches[principal] = w
	}
	f.nextID++
	id := f.nextID
	w.listeners[id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() {
			f.watchMu.Lock()
			defer f.watchMu.Unlock()
			if w, ok := f.watches[principal]; ok {
				delete(w.listeners, id)
				if len(w.listeners) == 0 {
					delete(f.watches, principal)
				}
			}
		})
	}, nil
}

// Start begins the polling loop. Returns an error if already running.
func (f *PollingFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("polling feed is already running")
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.mu.Unlock()

	go f.runLoop(ctx)

	slog.InfoContext(ctx, "Polling feed started",
		log.FieldComponent, log.ComponentPoller,
		"interval", f.config.Interval)

	return nil
}

// Stop halts the loop and waits for the current cycle to finish.
func (f *PollingFeed) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	stopCh, doneCh := f.stopCh, f.doneCh
	f.running = false
	f.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Polling feed stopped gracefully",
			log.FieldComponent, log.ComponentPoller)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Polling feed stop timed out",
			log.FieldComponent, log.ComponentPoller)
		return ctx.Err()
	}
}

// Close stops the loop and drops every watch.
func (f *PollingFeed) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), f.config.Timeout)
	defer cancel()
	err := f.Stop(ctx)

	f.watchMu.Lock()
	f.watches = make(map[string]*watch)
	f.watchMu.Unlock()
	return err
}

func (f *PollingFeed) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *PollingFeed) runLoop(ctx context.Context) {
	f.mu.Lock()
	stopCh, doneCh := f.stopCh, f.doneCh
	f.mu.Unlock()
	defer close(doneCh)

	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Poll(ctx)
		}
	}
}

// Poll runs one check cycle and returns how many principals changed.
func (f *PollingFeed) Poll(ctx context.Context) int {
	f.watchMu.Lock()
	principals := make([]string, 0, len(f.watches))
	for p := range f.watches {
		principals = append(principals, p)
	}
	f.watchMu.Unlock()

	changed := 0
	for _, principal := range principals {
		fp, err := f.fingerprint(ctx, principal)
		if err != nil {
			slog.WarnContext(ctx, "Fingerprint check failed",
				log.FieldComponent, log.ComponentPoller,
				log.FieldPrincipal, principal,
				log.FieldError, err)
			continue
		}

		f.watchMu.Lock()
		w, ok := f.watches[principal]
		if !ok || w.last == fp {
			f.watchMu.Unlock()
			continue
		}
		w.last = fp
		targets := make([]func(), 0, len(w.listeners))
		for _, l := range w.listeners {
			targets = append(targets, l)
		}
		f.watchMu.Unlock()

		changed++
		slog.DebugContext(ctx, "Remote change detected",
			log.FieldComponent, log.ComponentPoller,
			log.FieldPrincipal, principal)
		for _, l := range targets {
			l()
		}
	}
	return changed
}

func (f *PollingFeed) fingerprint(ctx context.Context, principal string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()
	return f.source.Fingerprint(ctx, principal)
}
