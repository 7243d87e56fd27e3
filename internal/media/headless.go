// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ManuGH/hlsplay/internal/events"
)

// HeadlessOptions tunes a Headless element.
type HeadlessOptions struct {
	// CanPlay maps MIME types to CanPlayType answers. Missing types report "".
	CanPlay map[string]string

	// AutoMetadata makes Load fire loadedmetadata/canplay immediately when a
	// source is set, emulating a native decoder that understands the source.
	AutoMetadata bool

	// Duration reported once metadata is available. Zero or +Inf means live.
	Duration float64

	// PlayErr, when set, is returned from every Play call.
	PlayErr error
}

// Headless is a media element without a renderer. Time only advances through
// Advance or Run, which keeps it deterministic under test.
type Headless struct {
	bus  *events.Bus
	opts HeadlessOptions

	mu          sync.Mutex
	src         string
	paused      bool
	ended       bool
	stalled     bool
	current     float64
	duration    float64
	bufStart    float64
	bufEnd      float64
	volume      float64
	muted       bool
	rate        float64
	hasMetadata bool
	detached    bool
	pip         bool
	appendErr   error
}

var (
	_ Element      = (*Headless)(nil)
	_ SourceBuffer = (*Headless)(nil)
)

// NewHeadless creates a paused, unmuted element at volume 1 and rate 1.
func NewHeadless(opts HeadlessOptions) *Headless {
	return &Headless{
		bus:    events.NewBus(),
		opts:   opts,
		paused: true,
		volume: 1,
		rate:   1,
	}
}

func (h *Headless) Events() *events.Bus { return h.bus }

func (h *Headless) CanPlayType(mime string) string {
	if h.opts.CanPlay == nil {
		return ""
	}
	return h.opts.CanPlay[mime]
}

func (h *Headless) Src() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src
}

func (h *Headless) SetSrc(src string) {
	h.mu.Lock()
	h.src = src
	h.mu.Unlock()
}

func (h *Headless) RemoveSrc() {
	h.mu.Lock()
	h.src = ""
	h.mu.Unlock()
}

// Load resets the playback position and buffer for the current source.
func (h *Headless) Load() {
	h.mu.Lock()
	h.current = 0
	h.bufStart, h.bufEnd = 0, 0
	h.ended = false
	h.stalled = false
	h.hasMetadata = false
	h.duration = 0
	auto := h.opts.AutoMetadata && h.src != ""
	h.mu.Unlock()

	if auto {
		h.LoadMetadata(h.opts.Duration)
	}
}

// LoadMetadata marks metadata as available and fires the matching events.
func (h *Headless) LoadMetadata(duration float64) {
	h.mu.Lock()
	h.hasMetadata = true
	if duration <= 0 {
		duration = math.Inf(1)
	}
	h.duration = duration
	h.mu.Unlock()

	events.Publish(h.bus, DurationChange, Signal{})
	events.Publish(h.bus, LoadedMetadata, Signal{})
	events.Publish(h.bus, CanPlay, Signal{})
}

func (h *Headless) Play(_ context.Context) error {
	if h.opts.PlayErr != nil {
		return h.opts.PlayErr
	}
	h.mu.Lock()
	if !h.paused {
		h.mu.Unlock()
		return nil
	}
	h.paused = false
	if h.ended {
		h.ended = false
		h.current = h.bufStart
	}
	h.mu.Unlock()

	events.Publish(h.bus, Play, Signal{})
	events.Publish(h.bus, Playing, Signal{})
	return nil
}

func (h *Headless) Pause() {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return
	}
	h.paused = true
	h.mu.Unlock()
	events.Publish(h.bus, Pause, Signal{})
}

func (h *Headless) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *Headless) Ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ended
}

func (h *Headless) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Headless) SetCurrentTime(t float64) {
	if t < 0 {
		t = 0
	}
	events.Publish(h.bus, Seeking, Signal{})
	h.mu.Lock()
	if h.duration > 0 && !math.IsInf(h.duration, 1) && t > h.duration {
		t = h.duration
	}
	h.current = t
	h.ended = false
	h.mu.Unlock()
	events.Publish(h.bus, Seeked, Signal{})
	events.Publish(h.bus, TimeUpdate, Signal{})
}

func (h *Headless) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *Headless) Buffered() []TimeRange {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bufEnd <= h.bufStart {
		return nil
	}
	return []TimeRange{{Start: h.bufStart, End: h.bufEnd}}
}

func (h *Headless) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *Headless) SetVolume(v float64) {
	v = math.Max(0, math.Min(1, v))
	h.mu.Lock()
	changed := h.volume != v
	h.volume = v
	h.mu.Unlock()
	if changed {
		events.Publish(h.bus, VolumeChange, Signal{})
	}
}

func (h *Headless) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

func (h *Headless) SetMuted(m bool) {
	h.mu.Lock()
	changed := h.muted != m
	h.muted = m
	h.mu.Unlock()
	if changed {
		events.Publish(h.bus, VolumeChange, Signal{})
	}
}

func (h *Headless) PlaybackRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

func (h *Headless) SetPlaybackRate(r float64) {
	if r <= 0 {
		return
	}
	h.mu.Lock()
	changed := h.rate != r
	h.rate = r
	h.mu.Unlock()
	if changed {
		events.Publish(h.bus, RateChange, Signal{})
	}
}

func (h *Headless) Detach() {
	h.mu.Lock()
	h.detached = true
	h.mu.Unlock()
}

// Detached reports whether Detach has been called.
func (h *Headless) Detached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detached
}

// AppendSegment extends the buffered range by duration seconds. The first
// append after Load makes metadata available.
func (h *Headless) AppendSegment(_ []byte, duration float64) error {
	h.mu.Lock()
	if h.appendErr != nil {
		err := h.appendErr
		h.mu.Unlock()
		return err
	}
	first := !h.hasMetadata
	if first {
		h.bufStart = h.current
		h.bufEnd = h.current
	}
	h.bufEnd += duration
	resumed := h.stalled && h.bufEnd > h.current
	if resumed {
		h.stalled = false
	}
	h.mu.Unlock()

	if first {
		h.LoadMetadata(h.opts.Duration)
	}
	events.Publish(h.bus, Progress, Signal{})
	if resumed {
		events.Publish(h.bus, CanPlay, Signal{})
		h.mu.Lock()
		playing := !h.paused
		h.mu.Unlock()
		if playing {
			events.Publish(h.bus, Playing, Signal{})
		}
	}
	return nil
}

// ResetBuffer drops all buffered media.
func (h *Headless) ResetBuffer() {
	h.mu.Lock()
	h.bufStart, h.bufEnd = h.current, h.current
	h.mu.Unlock()
}

// FailAppends makes subsequent AppendSegment calls return err; nil clears it.
func (h *Headless) FailAppends(err error) {
	h.mu.Lock()
	h.appendErr = err
	h.mu.Unlock()
}

// SetPictureInPicture enters or leaves picture-in-picture and fires both the
// standard and the vendor-prefixed events.
func (h *Headless) SetPictureInPicture(active bool) {
	h.mu.Lock()
	if h.pip == active {
		h.mu.Unlock()
		return
	}
	h.pip = active
	h.mu.Unlock()

	if active {
		events.Publish(h.bus, EnterPictureInPicture, Signal{})
		events.Publish(h.bus, PresentationModeChanged, PresentationMode{Mode: ModePictureInPicture})
		return
	}
	events.Publish(h.bus, LeavePictureInPicture, Signal{})
	events.Publish(h.bus, PresentationModeChanged, PresentationMode{Mode: ModeInline})
}

// Advance moves the playhead by d of wall time scaled by the playback rate.
// Playback stalls at the end of the buffer when media is appended by an
// engine, and ends at the duration for finite content.
func (h *Headless) Advance(d time.Duration) {
	h.mu.Lock()
	if h.paused || h.ended || !h.hasMetadata {
		h.mu.Unlock()
		return
	}
	next := h.current + d.Seconds()*h.rate
	limit := h.duration
	if h.bufEnd > h.bufStart && h.bufEnd < limit {
		limit = h.bufEnd
	}
	var ended, stalled bool
	if next >= limit {
		next = limit
		if limit == h.duration {
			ended = true
			h.ended = true
			h.paused = true
		} else if !h.stalled {
			stalled = true
			h.stalled = true
		}
	}
	h.current = next
	h.mu.Unlock()

	events.Publish(h.bus, TimeUpdate, Signal{})
	if stalled {
		events.Publish(h.bus, Waiting, Signal{})
	}
	if ended {
		events.Publish(h.bus, Pause, Signal{})
		events.Publish(h.bus, Ended, Signal{})
	}
}

// Run advances the element in real time until ctx is done.
func (h *Headless) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Advance(tick)
		}
	}
}

// Fail fires the native error event.
func (h *Headless) Fail(code int, message string) {
	events.Publish(h.bus, Error, ErrorInfo{Code: code, Message: message})
}
