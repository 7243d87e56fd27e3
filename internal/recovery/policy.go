// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recovery

import (
	"math"
	"time"
)

// Policy bounds transparent recovery.
type Policy struct {
	MaxNetworkRetries int
	MaxMediaRetries   int
	BaseDelay         time.Duration
	BackoffFactor     float64

	// StormThreshold faults inside StormWindow force a fatal escalation.
	StormThreshold int
	StormWindow    time.Duration
}

// DefaultPolicy returns the stock retry budgets.
func DefaultPolicy() Policy {
	return Policy{
		MaxNetworkRetries: 3,
		MaxMediaRetries:   2,
		BaseDelay:         time.Second,
		BackoffFactor:     2,
		StormThreshold:    10,
		StormWindow:       5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultPolicy. Negative retry budgets
// mean "never retry".
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = d.BackoffFactor
	}
	if p.StormThreshold <= 0 {
		p.StormThreshold = d.StormThreshold
	}
	if p.StormWindow <= 0 {
		p.StormWindow = d.StormWindow
	}
	if p.MaxNetworkRetries < 0 {
		p.MaxNetworkRetries = 0
	}
	if p.MaxMediaRetries < 0 {
		p.MaxMediaRetries = 0
	}
	return p
}

// Delay returns the wait before retry attempt n (1-based):
// BaseDelay * BackoffFactor^(n-1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1)))
}
