// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package translate

import (
	"context"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/rs/zerolog"
)

// DOMBindings is what the media element adapter publishes into.
type DOMBindings struct {
	Store host.Store
	Bus   *events.Bus

	// OnError receives native media errors after media:error is published.
	OnError func(media.ErrorInfo)

	Logger *zerolog.Logger
}

// WireDOM subscribes to the native event surface of el and returns one handle
// that detaches every subscription.
func WireDOM(el media.Element, b DOMBindings) events.Unsubscribe {
	logger := log.WithComponent("translate")
	if b.Logger != nil {
		logger = *b.Logger
	}
	bus := el.Events()
	set := b.Store.Set
	var td events.Teardown

	td.Add(
		events.Subscribe(bus, media.Playing, func(media.Signal) {
			set(func(st *host.State) {
				st.Playback = host.StatePlaying
				st.Buffering = false
			})
		}),
		events.Subscribe(bus, media.Pause, func(media.Signal) {
			set(func(st *host.State) {
				if st.Playback != host.StateEnded && st.Playback != host.StateError {
					st.Playback = host.StatePaused
				}
			})
		}),
		events.Subscribe(bus, media.Ended, func(media.Signal) {
			set(func(st *host.State) { st.Playback = host.StateEnded })
			events.Publish(b.Bus, host.EndedEvent, host.Empty{})
		}),
		events.Subscribe(bus, media.TimeUpdate, func(media.Signal) {
			t := el.CurrentTime()
			set(func(st *host.State) { st.CurrentTime = t })
			events.Publish(b.Bus, host.TimeUpdateEvent, host.TimeUpdate{CurrentTime: t})
		}),
		events.Subscribe(bus, media.DurationChange, func(media.Signal) {
			d := el.Duration()
			set(func(st *host.State) { st.Duration = d })
		}),
		events.Subscribe(bus, media.LoadedMetadata, func(media.Signal) {
			d := el.Duration()
			set(func(st *host.State) { st.Duration = d })
		}),
		events.Subscribe(bus, media.Waiting, func(media.Signal) {
			set(func(st *host.State) { st.Buffering = true })
			events.Publish(b.Bus, host.WaitingEvent, host.Empty{})
		}),
		events.Subscribe(bus, media.CanPlay, func(media.Signal) {
			set(func(st *host.State) { st.Buffering = false })
			events.Publish(b.Bus, host.CanPlayEvent, host.Empty{})
		}),
		events.Subscribe(bus, media.Progress, func(media.Signal) {
			buffered := el.Buffered()
			set(func(st *host.State) { st.Buffered = buffered })
			events.Publish(b.Bus, host.ProgressEvent, host.ProgressUpdate{Buffered: buffered})
		}),
		events.Subscribe(bus, media.Seeking, func(media.Signal) {
			set(func(st *host.State) { st.Seeking = true })
		}),
		events.Subscribe(bus, media.Seeked, func(media.Signal) {
			t := el.CurrentTime()
			set(func(st *host.State) {
				st.Seeking = false
				st.CurrentTime = t
			})
			events.Publish(b.Bus, host.SeekedEvent, host.Seeked{Time: t})
		}),
		events.Subscribe(bus, media.VolumeChange, func(media.Signal) {
			v, m := el.Volume(), el.Muted()
			set(func(st *host.State) {
				st.Volume = v
				st.Muted = m
			})
			events.Publish(b.Bus, host.VolumeChanged, host.VolumeChange{Volume: v, Muted: m})
		}),
		events.Subscribe(bus, media.RateChange, func(media.Signal) {
			r := el.PlaybackRate()
			set(func(st *host.State) { st.PlaybackRate = r })
			events.Publish(b.Bus, host.RateChanged, host.RateChange{Rate: r})
		}),
		events.Subscribe(bus, media.Error, func(info media.ErrorInfo) {
			logger.Warn().
				Str(log.FieldEvent, "media.error").
				Int("code", info.Code).
				Str(log.FieldDetails, info.Message).
				Msg("media element error")
			events.Publish(b.Bus, host.MediaElementError, host.MediaError{Error: info})
			if b.OnError != nil {
				b.OnError(info)
			}
		}),
	)

	// Picture-in-Picture arrives through the standard and the vendor-prefixed
	// event; pip tracks which transition is outstanding so each runs once.
	var pip, wasPlaying bool
	enter := func() {
		if pip {
			return
		}
		pip = true
		wasPlaying = !el.Paused()
		set(func(st *host.State) { st.PictureInPicture = true })
	}
	leave := func() {
		if !pip {
			return
		}
		pip = false
		set(func(st *host.State) { st.PictureInPicture = false })
		if wasPlaying && el.Paused() {
			if err := el.Play(context.Background()); err != nil {
				logger.Debug().Err(err).Str(log.FieldEvent, "media.pip_resume_blocked").Msg("resume after picture-in-picture blocked")
			}
		}
		wasPlaying = false
	}
	td.Add(
		events.Subscribe(bus, media.EnterPictureInPicture, func(media.Signal) { enter() }),
		events.Subscribe(bus, media.LeavePictureInPicture, func(media.Signal) { leave() }),
		events.Subscribe(bus, media.PresentationModeChanged, func(p media.PresentationMode) {
			if p.Mode == media.ModePictureInPicture {
				enter()
				return
			}
			leave()
		}),
	)

	return td.Run
}
