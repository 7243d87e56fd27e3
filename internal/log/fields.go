// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldSource   = "src"
	FieldBackend  = "backend"
	FieldLevel    = "level"
	FieldBitrate  = "bitrate"
	FieldCategory = "category"
	FieldAttempt  = "attempt"
	FieldDelayMS  = "delay_ms"
	FieldDetails  = "details"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
