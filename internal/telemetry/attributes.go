// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by player spans.
const (
	PlaybackSourceKey    = "playback.src"
	PlaybackBackendKey   = "playback.backend"
	PlaybackSessionKey   = "playback.session_id"
	PlaybackLevelsKey    = "playback.levels"
	PlaybackLiveKey      = "playback.live"
	PlaybackDurationKey  = "playback.load_ms"
	PlaybackSwitchFrom   = "playback.switch.from"
	PlaybackSwitchTarget = "playback.switch.to"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SourceAttributes describes a load. Empty values are skipped.
func SourceAttributes(src, backend, sessionID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if src != "" {
		attrs = append(attrs, attribute.String(PlaybackSourceKey, src))
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(PlaybackBackendKey, backend))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(PlaybackSessionKey, sessionID))
	}
	return attrs
}

// ResultAttributes describes a finished load.
func ResultAttributes(levels int, live bool, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(PlaybackLevelsKey, levels),
		attribute.Bool(PlaybackLiveKey, live),
		attribute.Int64(PlaybackDurationKey, durationMS),
	}
}

// SwitchAttributes describes a backend hand-off.
func SwitchAttributes(from, to string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlaybackSwitchFrom, from),
		attribute.String(PlaybackSwitchTarget, to),
	}
}

// ErrorAttributes marks a span as failed with a classified error type.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
