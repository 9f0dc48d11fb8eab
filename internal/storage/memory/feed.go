package memory

import (
	"context"
	"sync"

	"billtrack/internal/core"
	"billtrack/internal/ledger"
)

// Feed is an in-process change broker. Publish calls every listener of the
// change's principal on the publishing goroutine.
type Feed struct {
	mu        sync.Mutex
	listeners map[string]map[uint64]func()
	next      uint64
}

func NewFeed() *Feed {
	return &Feed{listeners: make(map[string]map[uint64]func())}
}

func (f *Feed) Subscribe(_ context.Context, principal string, onChange func()) (ledger.Unsubscribe, error) {
	if err := core.ValidatePrincipal(principal); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	if f.listeners[principal] == nil {
		f.listeners[principal] = make(map[uint64]func())
	}
	f.listeners[principal][id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.listeners[principal], id)
			if len(f.listeners[principal]) == 0 {
				delete(f.listeners, principal)
			}
		})
	}, nil
}

func (f *Feed) Publish(_ context.Context, change core.Change) error {
	f.mu.Lock()
	targets := make([]func(), 0, len(f.listeners[change.UserID]))
	for _, l := range f.listeners[change.UserID] {
		targets = append(targets, l)
	}
	f.mu.Unlock()

	for _, l := range targets {
		l()
	}
	return nil
}

// Subscribers returns the number of active subscriptions for principal.
func (f *Feed) Subscribers(principal string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[principal])
}

func (f *Feed) Close() error { return nil }
