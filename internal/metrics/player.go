// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceLoadTotal tracks the outcome of loadSource runs per backend.
	SourceLoadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsplay_source_load_total",
		Help: "Total number of source loads by backend and result",
	}, []string{"backend", "result"})

	// SourceLoadDuration tracks the time from loadSource to manifest/metadata ready.
	SourceLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsplay_source_load_duration_seconds",
		Help:    "Time from loadSource to a playable source",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
	}, []string{"backend"})

	// RecoveryRetryTotal counts transparent retries scheduled by the coordinator.
	RecoveryRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsplay_recovery_retry_total",
		Help: "Total number of scheduled recovery retries by fault category",
	}, []string{"category"})

	// RecoveryFatalTotal counts escalations to a host-visible fatal error.
	RecoveryFatalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsplay_recovery_fatal_total",
		Help: "Total number of fatal escalations by fault category and reason",
	}, []string{"category", "reason"})

	// ErrorStormTotal counts error-rate ceiling trips.
	ErrorStormTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsplay_error_storm_total",
		Help: "Total number of error storms that forced a fatal escalation",
	})

	// BackendSwitchTotal counts position-preserving backend hand-offs.
	BackendSwitchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsplay_backend_switch_total",
		Help: "Total number of backend switches by direction and result",
	}, []string{"from", "to", "result"})

	// LevelSwitchTotal counts completed quality switches reported by the engine.
	LevelSwitchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsplay_level_switch_total",
		Help: "Total number of completed level switches by selection mode",
	}, []string{"mode"})

	// EngineLoadTotal counts lazy engine loads.
	EngineLoadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsplay_engine_load_total",
		Help: "Total number of engine library loads by result",
	}, []string{"result"})

	// FragmentLoadTotal counts media segment downloads by the playlist engine.
	FragmentLoadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsplay_fragment_load_total",
		Help: "Total number of media segment loads by result",
	}, []string{"result"})

	// FragmentBytesTotal counts downloaded media segment bytes.
	FragmentBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsplay_fragment_bytes_total",
		Help: "Total number of downloaded media segment bytes",
	})

	// BandwidthEstimate is the latest ABR bandwidth estimate in bits per second.
	BandwidthEstimate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsplay_bandwidth_estimate_bps",
		Help: "Current bandwidth estimate used for automatic level selection",
	})
)

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveSourceLoad records a loadSource outcome and, on success, its latency.
func ObserveSourceLoad(backend string, success bool, d time.Duration) {
	SourceLoadTotal.WithLabelValues(backend, result(success)).Inc()
	if success {
		SourceLoadDuration.WithLabelValues(backend).Observe(d.Seconds())
	}
}

// IncRecoveryRetry records a scheduled retry.
func IncRecoveryRetry(category string) {
	RecoveryRetryTotal.WithLabelValues(category).Inc()
}

// IncRecoveryFatal records a fatal escalation.
func IncRecoveryFatal(category, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	RecoveryFatalTotal.WithLabelValues(category, reason).Inc()
}

// IncErrorStorm records an error-rate ceiling trip.
func IncErrorStorm() {
	ErrorStormTotal.Inc()
}

// IncBackendSwitch records a backend hand-off attempt.
func IncBackendSwitch(from, to string, success bool) {
	BackendSwitchTotal.WithLabelValues(from, to, result(success)).Inc()
}

// IncLevelSwitch records a completed level switch.
func IncLevelSwitch(auto bool) {
	mode := "manual"
	if auto {
		mode = "auto"
	}
	LevelSwitchTotal.WithLabelValues(mode).Inc()
}

// IncEngineLoad records a lazy engine load outcome.
func IncEngineLoad(success bool) {
	EngineLoadTotal.WithLabelValues(result(success)).Inc()
}

// ObserveFragment records a segment download and the resulting estimate.
func ObserveFragment(success bool, bytes int, estimateBps float64) {
	FragmentLoadTotal.WithLabelValues(result(success)).Inc()
	if !success {
		return
	}
	FragmentBytesTotal.Add(float64(bytes))
	BandwidthEstimate.Set(estimateBps)
}
