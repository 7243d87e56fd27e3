// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog detects playback that never starts or stops advancing.
package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/hlsplay/internal/log"
)

// State is the watchdog's view of playback progress.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStalled:
		return "stalled"
	case StateTimedOut:
		return "timed_out"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrStartTimeout means no progress arrived within the start timeout.
	ErrStartTimeout = fmt.Errorf("watchdog: playback did not start: %w", context.DeadlineExceeded)
	// ErrStalled means progress stopped for longer than the stall timeout.
	ErrStalled = fmt.Errorf("watchdog: playback stalled: %w", context.DeadlineExceeded)
)

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Watchdog watches the playback position and enforces start and stall
// timeouts.
type Watchdog struct {
	mu sync.RWMutex

	startTimeout time.Duration
	stallTimeout time.Duration
	interval     time.Duration

	lastPosition  float64
	lastHeartbeat time.Time
	state         State

	done      chan struct{}
	closeOnce sync.Once

	clock clock
}

// New creates a watchdog. The start timeout runs from Run; the stall timeout
// from the last observed advance.
func New(startTimeout, stallTimeout time.Duration) *Watchdog {
	return &Watchdog{
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		interval:     time.Second,
		done:         make(chan struct{}),
		clock:        realClock{},
	}
}

// Run checks progress once per interval until ctx ends, playback completes,
// or a timeout fires.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	w.lastHeartbeat = w.clock.Now()
	w.mu.Unlock()

	t := w.clock.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case <-t.C():
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

// Observe records the current playback position. Only a forward move counts
// as progress.
func (w *Watchdog) Observe(position float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateStarting && w.state != StateRunning {
		return
	}
	if position <= w.lastPosition {
		return
	}
	w.lastPosition = position
	w.lastHeartbeat = w.clock.Now()
	if w.state == StateStarting {
		w.state = StateRunning
		log.L().Debug().Float64("position", position).Msg("watchdog: playback progress detected")
	}
}

// Complete marks playback as finished and stops Run.
func (w *Watchdog) Complete() {
	w.mu.Lock()
	if w.state == StateStarting || w.state == StateRunning {
		w.state = StateCompleted
	}
	w.mu.Unlock()
	w.closeOnce.Do(func() { close(w.done) })
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := w.clock.Now().Sub(w.lastHeartbeat)
	switch w.state {
	case StateStarting:
		if w.startTimeout > 0 && elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrStartTimeout
		}
	case StateRunning:
		if w.stallTimeout > 0 && elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}

// State returns the current watchdog state.
func (w *Watchdog) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}
