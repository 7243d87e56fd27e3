// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recovery decides whether a playback fault is retried transparently
// or escalated to a single fatal error.
//
// Network and media faults are retried with exponential backoff up to their
// category budget. Mux and other faults escalate at once. Independently of
// category, a burst of faults inside a sliding window trips the error-storm
// guard, which escalates and tears the engine down.
package recovery

import (
	"sync"
	"time"

	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/metrics"
	"github.com/rs/zerolog"
)

// Decision is what the coordinator did with a fault.
type Decision string

const (
	DecisionIgnored    Decision = "ignored"    // non-fatal, counted for the storm guard only
	DecisionRetry      Decision = "retry"      // retry scheduled
	DecisionFatal      Decision = "fatal"      // escalated
	DecisionSuppressed Decision = "suppressed" // session already escalated
)

// Outcome reports the handling of one fault.
type Outcome struct {
	Decision Decision
	Attempt  int
	Delay    time.Duration
}

// Actions are the side effects the coordinator drives. Nil actions are skipped.
type Actions struct {
	// ResumeLoad restarts network loading after a network fault.
	ResumeLoad func()
	// RecoverMedia runs the engine's media-error recovery.
	RecoverMedia func()
	// Recoverable is told about every fault that gets a retry.
	Recoverable func(Record)
	// Teardown stops event delivery from the engine after an error storm.
	Teardown func()
	// Fatal receives the single escalation of a session.
	Fatal func(*FatalError)
}

// Coordinator tracks retry budgets and the error-rate window of one session.
type Coordinator struct {
	policy  Policy
	clock   Clock
	actions Actions
	logger  zerolog.Logger

	mu             sync.Mutex
	networkRetries int
	mediaRetries   int
	faults         []time.Time
	escalated      bool
	gen            uint64
	timers         map[uint64]Timer
	nextTimer      uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// NewCoordinator creates a coordinator. Zero delay, backoff and storm fields
// take defaults; retry budgets are used as given.
func NewCoordinator(policy Policy, actions Actions, opts ...Option) *Coordinator {
	c := &Coordinator{
		policy:  policy.withDefaults(),
		clock:   RealClock(),
		actions: actions,
		logger:  log.WithComponent("recovery"),
		timers:  make(map[uint64]Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// Handle classifies rec and retries, ignores or escalates it.
func (c *Coordinator) Handle(rec Record) Outcome {
	c.mu.Lock()
	if c.escalated {
		c.mu.Unlock()
		return Outcome{Decision: DecisionSuppressed}
	}

	if n := c.countFaultLocked(); n >= c.policy.StormThreshold {
		fe := &FatalError{
			Category: rec.Type,
			Reason:   ReasonErrorStorm,
			Message:  fatalMessage(rec, ReasonErrorStorm, n, c.policy.StormWindow.String()),
			Record:   rec,
		}
		c.escalateLocked()
		c.mu.Unlock()

		metrics.IncErrorStorm()
		c.logger.Error().
			Str(log.FieldEvent, "recovery.error_storm").
			Int("faults", n).
			Dur("window", c.policy.StormWindow).
			Msg("error rate ceiling reached, tearing down engine")
		if c.actions.Teardown != nil {
			c.actions.Teardown()
		}
		c.fatal(fe)
		return Outcome{Decision: DecisionFatal}
	}

	if !rec.Fatal {
		c.mu.Unlock()
		c.logger.Debug().
			Str(log.FieldEvent, "recovery.non_fatal").
			Str(log.FieldCategory, string(rec.Type)).
			Str(log.FieldDetails, rec.Details).
			Msg("non-fatal fault observed")
		return Outcome{Decision: DecisionIgnored}
	}

	var (
		attempt int
		action  func()
	)
	switch rec.Type {
	case CategoryNetwork:
		if c.networkRetries < c.policy.MaxNetworkRetries {
			c.networkRetries++
			attempt = c.networkRetries
			action = c.actions.ResumeLoad
		}
	case CategoryMedia:
		if c.mediaRetries < c.policy.MaxMediaRetries {
			c.mediaRetries++
			attempt = c.mediaRetries
			action = c.actions.RecoverMedia
		}
	}

	if attempt == 0 {
		reason := ReasonUnrecoverable
		if rec.Type == CategoryNetwork || rec.Type == CategoryMedia {
			reason = ReasonRetriesExhausted
		}
		fe := &FatalError{
			Category: rec.Type,
			Reason:   reason,
			Message:  fatalMessage(rec, reason, 0, ""),
			Record:   rec,
		}
		c.escalateLocked()
		c.mu.Unlock()
		c.fatal(fe)
		return Outcome{Decision: DecisionFatal}
	}

	delay := c.policy.Delay(attempt)
	c.scheduleLocked(delay, action)
	c.mu.Unlock()

	metrics.IncRecoveryRetry(string(rec.Type))
	c.logger.Warn().
		Str(log.FieldEvent, "recovery.retry_scheduled").
		Str(log.FieldCategory, string(rec.Type)).
		Str(log.FieldDetails, rec.Details).
		Int(log.FieldAttempt, attempt).
		Int64(log.FieldDelayMS, delay.Milliseconds()).
		Msg("fatal fault, retrying")
	if c.actions.Recoverable != nil {
		c.actions.Recoverable(rec)
	}
	return Outcome{Decision: DecisionRetry, Attempt: attempt, Delay: delay}
}

// Reset clears retry counters, the error window and every pending timer.
// It is idempotent.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.networkRetries = 0
	c.mediaRetries = 0
	c.faults = nil
	c.escalated = false
	c.gen++
	c.stopTimersLocked()
}

// Snapshot is a read-only view of the retry state.
type Snapshot struct {
	NetworkRetries int  `json:"networkRetries"`
	MediaRetries   int  `json:"mediaRetries"`
	WindowFaults   int  `json:"windowFaults"`
	PendingTimers  int  `json:"pendingTimers"`
	Escalated      bool `json:"escalated"`
}

// Snapshot returns the current counters.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		NetworkRetries: c.networkRetries,
		MediaRetries:   c.mediaRetries,
		WindowFaults:   len(c.faults),
		PendingTimers:  len(c.timers),
		Escalated:      c.escalated,
	}
}

// countFaultLocked records a fault and returns the count inside the window.
func (c *Coordinator) countFaultLocked() int {
	now := c.clock.Now()
	cutoff := now.Add(-c.policy.StormWindow)
	kept := c.faults[:0]
	for _, ts := range c.faults {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.faults = append(kept, now)
	return len(c.faults)
}

func (c *Coordinator) escalateLocked() {
	c.escalated = true
	c.stopTimersLocked()
}

func (c *Coordinator) scheduleLocked(delay time.Duration, action func()) {
	c.nextTimer++
	id := c.nextTimer
	gen := c.gen
	c.timers[id] = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		_, live := c.timers[id]
		delete(c.timers, id)
		stale := !live || gen != c.gen || c.escalated
		c.mu.Unlock()
		if stale || action == nil {
			return
		}
		action()
	})
}

func (c *Coordinator) stopTimersLocked() {
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Coordinator) fatal(fe *FatalError) {
	metrics.IncRecoveryFatal(string(fe.Category), fe.Reason)
	c.logger.Error().
		Str(log.FieldEvent, "recovery.escalated").
		Str(log.FieldCategory, string(fe.Category)).
		Str("reason", fe.Reason).
		Str(log.FieldDetails, fe.Record.Details).
		Msg(fe.Message)
	if c.actions.Fatal != nil {
		c.actions.Fatal(fe)
	}
}
