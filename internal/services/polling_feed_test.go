package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
)

type fakeFingerprints struct {
	mu  sync.Mutex
	fps map[string]string
	err error
}

func (f *fakeFingerprints) Fingerprint(_ context.Context, principal string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.fps[principal], nil
}

func (f *fakeFingerprints) set(principal, fp string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fps[principal] = fp
}

func TestNewPollingFeed_Defaults(t *testing.T) {
	feed := NewPollingFeed(&fakeFingerprints{}, PollingFeedConfig{})
	assert.Equal(t, 15*time.Second, feed.config.Interval)
	assert.Equal(t, 5*time.Second, feed.config.Timeout)
	assert.False(t, feed.IsRunning())
}

func TestPollingFeed_FiresOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	src := &fakeFingerprints{fps: map[string]string{"alice": "1", "bob": "1"}}
	feed := NewPollingFeed(src, DefaultPollingFeedConfig())

	var alice, bob atomic.Int32
	unsubAlice, err := feed.Subscribe(ctx, "alice", func() { alice.Add(1) })
	require.NoError(t, err)
	_, err = feed.Subscribe(ctx, "bob", func() { bob.Add(1) })
	require.NoError(t, err)

	assert.Zero(t, feed.Poll(ctx), "baseline must not fire")

	src.set("alice", "2")
	assert.Equal(t, 1, feed.Poll(ctx))
	assert.Equal(t, int32(1), alice.Load())
	assert.Zero(t, bob.Load())

	assert.Zero(t, feed.Poll(ctx))

	unsubAlice()
	unsubAlice()
	src.set("alice", "3")
	assert.Zero(t, feed.Poll(ctx))
	assert.Equal(t, int32(1), alice.Load())
}

func TestPollingFeed_SubscribeErrors(t *testing.T) {
	ctx := context.Background()
	feed := NewPollingFeed(&fakeFingerprints{err: errBoom}, DefaultPollingFeedConfig())

	_, err := feed.Subscribe(ctx, "", func() {})
	assert.ErrorIs(t, err, core.ErrAuthenticationRequired)

	_, err = feed.Subscribe(ctx, "alice", func() {})
	assert.ErrorIs(t, err, errBoom)
}

func TestPollingFeed_FingerprintErrorSkipsPrincipal(t *testing.T) {
	ctx := context.Background()
	src := &fakeFingerprints{fps: map[string]string{"alice": "1"}}
	feed := NewPollingFeed(src, DefaultPollingFeedConfig())

	fired := false
	_, err := feed.Subscribe(ctx, "alice", func() { fired = true })
	require.NoError(t, err)

	src.mu.Lock()
	src.err = errBoom
	src.mu.Unlock()
	assert.Zero(t, feed.Poll(ctx))
	assert.False(t, fired)
}

func TestPollingFeed_StartStop(t *testing.T) {
	ctx := context.Background()
	src := &fakeFingerprints{fps: map[string]string{"alice": "1"}}
	feed := NewPollingFeed(src, PollingFeedConfig{Interval: 10 * time.Millisecond, Timeout: time.Second})

	fired := make(chan struct{}, 1)
	_, err := feed.Subscribe(ctx, "alice", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	require.NoError(t, feed.Start(ctx))
	assert.True(t, feed.IsRunning())
	assert.Error(t, feed.Start(ctx), "second start should fail")

	src.set("alice", "2")
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("change was not detected by the polling loop")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, feed.Stop(stopCtx))
	assert.False(t, feed.IsRunning())
	assert.NoError(t, feed.Stop(stopCtx))
	assert.NoError(t, feed.Close())
}
