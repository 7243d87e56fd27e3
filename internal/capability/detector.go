// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package capability answers which HLS playback paths the runtime offers.
// All queries are side-effect free.
package capability

import (
	"github.com/ManuGH/hlsplay/internal/core/useragent"
	"github.com/ManuGH/hlsplay/internal/media"
)

// Environment is the slice of the runtime the detector inspects.
type Environment interface {
	// CanPlayType answers like a media element would ("", "maybe", "probably").
	CanPlayType(mime string) string
	// HasMediaSource reports whether a Media Source style buffer-append API exists.
	HasMediaSource() bool
	// UserAgent identifies the platform.
	UserAgent() string
}

// Static is an Environment with fixed answers.
type Static struct {
	CanPlay     map[string]string
	MediaSource bool
	Agent       string
}

func (s Static) CanPlayType(mime string) string {
	if s.CanPlay == nil {
		return ""
	}
	return s.CanPlay[mime]
}

func (s Static) HasMediaSource() bool { return s.MediaSource }
func (s Static) UserAgent() string    { return s.Agent }

// ElementEnvironment probes a concrete media element for native support.
type ElementEnvironment struct {
	Element     media.Element
	MediaSource bool
	Agent       string
}

func (e ElementEnvironment) CanPlayType(mime string) string {
	if e.Element == nil {
		return ""
	}
	return e.Element.CanPlayType(mime)
}

func (e ElementEnvironment) HasMediaSource() bool { return e.MediaSource }
func (e ElementEnvironment) UserAgent() string    { return e.Agent }

// Detector evaluates an Environment.
type Detector struct {
	env Environment
}

// NewDetector wraps env. A nil env supports nothing.
func NewDetector(env Environment) *Detector {
	return &Detector{env: env}
}

// SupportsNative reports whether the platform decoder plays HLS directly.
func (d *Detector) SupportsNative() bool {
	if d == nil || d.env == nil {
		return false
	}
	return d.env.CanPlayType(media.MIMEAppleMPEGURL) != "" ||
		d.env.CanPlayType(media.MIMEXMPEGURL) != ""
}

// SupportsEngine reports whether the multiplexing engine can run.
func (d *Detector) SupportsEngine() bool {
	if d == nil || d.env == nil {
		return false
	}
	return d.env.HasMediaSource()
}

// IsHLSSupported reports whether any playback path is available.
func (d *Detector) IsHLSSupported() bool {
	return d.SupportsNative() || d.SupportsEngine()
}

// ShouldPreferNative reports platforms where the native decoder must be used
// even when the engine is available, because hardware output routing only
// works with it attached.
func (d *Detector) ShouldPreferNative() bool {
	if !d.SupportsNative() {
		return false
	}
	return useragent.HasNativeOutputPicker(d.env.UserAgent())
}
