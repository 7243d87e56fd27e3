// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/hlsplay/internal/capability"
	"github.com/ManuGH/hlsplay/internal/recovery"
)

// Option configures a Plugin.
type Option func(*Plugin)

// WithClock replaces the clock driving retry timers and error timestamps.
func WithClock(c recovery.Clock) Option {
	return func(p *Plugin) { p.clock = c }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// WithTracer replaces the tracer used for load spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Plugin) { p.tracer = t }
}

// WithEnvironment overrides capability detection. By default the mounted
// media element is probed.
func WithEnvironment(env capability.Environment) Option {
	return func(p *Plugin) { p.env = env }
}

// WithMediaSource declares whether the runtime offers buffer-append playback
// for the engine backend when the environment is probed from the element.
func WithMediaSource(ok bool) Option {
	return func(p *Plugin) { p.mediaSource = ok }
}

// WithUserAgent sets the user agent used for the native preference check.
func WithUserAgent(ua string) Option {
	return func(p *Plugin) { p.userAgent = ua }
}
