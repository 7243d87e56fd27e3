// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"math"
	"sync"
	"time"
)

// DefaultBandwidthEstimate is used until the first segment has been measured.
const DefaultBandwidthEstimate = 500_000

const (
	fastHalfLife = 3.0
	slowHalfLife = 9.0
	// minSampleDuration keeps cached responses from producing absurd rates.
	minSampleDuration = time.Millisecond
)

// ewma is an exponentially weighted moving average whose weights are sample
// durations in seconds.
type ewma struct {
	alpha       float64
	estimate    float64
	totalWeight float64
}

func newEWMA(halfLife float64) ewma {
	return ewma{alpha: math.Exp(math.Log(0.5) / halfLife)}
}

func (e *ewma) sample(weight, value float64) {
	adj := math.Pow(e.alpha, weight)
	e.estimate = value*(1-adj) + adj*e.estimate
	e.totalWeight += weight
}

// value corrects the zero-initialised bias of the average.
func (e *ewma) value() float64 {
	zero := 1 - math.Pow(e.alpha, e.totalWeight)
	if zero <= 0 {
		return e.estimate
	}
	return e.estimate / zero
}

// estimator tracks download throughput. The estimate is the lower of a fast
// and a slow average so that drops are reacted to quickly and recoveries
// slowly.
type estimator struct {
	mu      sync.Mutex
	fast    ewma
	slow    ewma
	initial float64
	samples int
}

func newEstimator(initial float64) *estimator {
	if initial <= 0 {
		initial = DefaultBandwidthEstimate
	}
	return &estimator{
		fast:    newEWMA(fastHalfLife),
		slow:    newEWMA(slowHalfLife),
		initial: initial,
	}
}

// sample records bytes downloaded in d.
func (e *estimator) sample(bytes int, d time.Duration) {
	if bytes <= 0 {
		return
	}
	if d < minSampleDuration {
		d = minSampleDuration
	}
	secs := d.Seconds()
	bps := float64(bytes) * 8 / secs

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fast.sample(secs, bps)
	e.slow.sample(secs, bps)
	e.samples++
}

// estimate returns bits per second.
func (e *estimator) estimate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.samples == 0 {
		return e.initial
	}
	return math.Min(e.fast.value(), e.slow.value())
}
