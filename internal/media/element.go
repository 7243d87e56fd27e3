// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media defines the media element contract the player drives and the
// native event surface it listens to.
package media

import (
	"context"
	"errors"

	"github.com/ManuGH/hlsplay/internal/events"
)

// MIME types announced for HLS content.
const (
	MIMEAppleMPEGURL = "application/vnd.apple.mpegurl"
	MIMEXMPEGURL     = "application/x-mpegURL"
)

// ErrPlayBlocked is returned by Play when the environment refuses to start
// playback (e.g. an autoplay policy).
var ErrPlayBlocked = errors.New("media: play request was blocked")

// TimeRange is a buffered [Start, End) interval in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Element is a media element owned by exactly one player instance.
// Property setters fire the matching native events on Events().
type Element interface {
	Events() *events.Bus

	// CanPlayType reports "", "maybe" or "probably" for a MIME type.
	CanPlayType(mime string) string

	Src() string
	SetSrc(src string)
	RemoveSrc()
	Load()

	Play(ctx context.Context) error
	Pause()
	Paused() bool
	Ended() bool

	CurrentTime() float64
	SetCurrentTime(t float64)
	Duration() float64
	Buffered() []TimeRange

	Volume() float64
	SetVolume(v float64)
	Muted() bool
	SetMuted(m bool)
	PlaybackRate() float64
	SetPlaybackRate(r float64)

	// Detach removes the element from its container. The element must not be
	// reused afterwards.
	Detach()
}

// SourceBuffer is implemented by elements that accept demuxed media data
// appended by an engine (the Media Source path).
type SourceBuffer interface {
	AppendSegment(data []byte, duration float64) error
	ResetBuffer()
}

// Error codes mirror the native MediaError codes.
const (
	ErrCodeAborted         = 1
	ErrCodeNetwork         = 2
	ErrCodeDecode          = 3
	ErrCodeSrcNotSupported = 4
)

// ErrorInfo is the payload of the native error event.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e ErrorInfo) Error() string {
	if e.Message == "" {
		return "media error"
	}
	return e.Message
}
