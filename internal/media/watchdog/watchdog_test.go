// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	mu           sync.Mutex
	now          time.Time
	latestTicker *mockTicker
}

func (m *mockClock) Now() time.Time { m.mu.Lock(); defer m.mu.Unlock(); return m.now }
func (m *mockClock) NewTicker(time.Duration) ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestTicker = &mockTicker{c: make(chan time.Time)}
	return m.latestTicker
}

func (m *mockClock) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *mockClock) ticker() *mockTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestTicker
}

type mockTicker struct {
	c chan time.Time
}

func (m *mockTicker) C() <-chan time.Time { return m.c }
func (m *mockTicker) Stop()               {}

func startWatchdog(t *testing.T) (*Watchdog, *mockClock, <-chan error) {
	t.Helper()
	clock := &mockClock{now: time.Unix(1_700_000_000, 0)}
	w := New(2*time.Second, 5*time.Second)
	w.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	require.Eventually(t, func() bool { return clock.ticker() != nil }, time.Second, time.Millisecond)
	return w, clock, errCh
}

func TestWatchdog_StartTimeout(t *testing.T) {
	w, clock, errCh := startWatchdog(t)

	clock.advance(3 * time.Second)
	clock.ticker().c <- clock.Now()

	err := <-errCh
	assert.ErrorIs(t, err, ErrStartTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateTimedOut, w.State())
}

func TestWatchdog_StallTimeout(t *testing.T) {
	w, clock, errCh := startWatchdog(t)

	w.Observe(0.25)
	assert.Equal(t, StateRunning, w.State())

	// a repeated position is not progress, so the heartbeat stays at the
	// first observe and 6s have passed when the only tick arrives
	clock.advance(4 * time.Second)
	w.Observe(0.25)
	clock.advance(2 * time.Second)
	clock.ticker().c <- clock.Now()

	err := <-errCh
	assert.ErrorIs(t, err, ErrStalled)
	assert.Equal(t, StateStalled, w.State())
}

func TestWatchdog_ZeroStartTimeoutDisablesStartCheck(t *testing.T) {
	clock := &mockClock{now: time.Unix(1_700_000_000, 0)}
	w := New(0, 5*time.Second)
	w.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	require.Eventually(t, func() bool { return clock.ticker() != nil }, time.Second, time.Millisecond)

	clock.advance(time.Hour)
	clock.ticker().c <- clock.Now()
	clock.ticker().c <- clock.Now()
	assert.Equal(t, StateStarting, w.State())

	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatchdog_ProgressKeepsRunning(t *testing.T) {
	w, clock, errCh := startWatchdog(t)

	for i := 1; i <= 5; i++ {
		clock.advance(4 * time.Second)
		w.Observe(float64(i) * 4)
		clock.ticker().c <- clock.Now()
	}
	assert.Equal(t, StateRunning, w.State())

	w.Complete()
	require.NoError(t, <-errCh)
	assert.Equal(t, StateCompleted, w.State())
}

func TestWatchdog_OnlyForwardMovesCount(t *testing.T) {
	w := New(2*time.Second, 5*time.Second)

	w.Observe(0)
	assert.Equal(t, StateStarting, w.State(), "position 0 is not progress")

	w.Observe(10)
	w.Observe(3)
	assert.Equal(t, 10.0, w.lastPosition, "seeking back is not progress")
}

func TestWatchdog_CompleteIsIdempotent(t *testing.T) {
	w := New(time.Second, time.Second)
	w.Complete()
	w.Complete()
	assert.Equal(t, StateCompleted, w.State())
	assert.NoError(t, w.Run(context.Background()))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stalled", StateStalled.String())
	assert.Equal(t, "state(42)", State(42).String())
}
