// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/ManuGH/hlsplay/internal/quality"
)

// subscribeCommands maps host commands onto the media element and the
// quality manager. volume:change and playback:ratechange are also published
// by the element adapter, so an unchanged value is a no-op.
func (p *Plugin) subscribeCommands(bus *events.Bus) []events.Unsubscribe {
	return []events.Unsubscribe{
		events.Subscribe(bus, host.CmdPlay, func(host.Empty) {
			el := p.element()
			if el == nil {
				return
			}
			if err := el.Play(context.Background()); err != nil {
				p.logger.Debug().Err(err).Str(log.FieldEvent, "command.play_refused").Msg("play refused")
			}
		}),
		events.Subscribe(bus, host.CmdPause, func(host.Empty) {
			if el := p.element(); el != nil {
				el.Pause()
			}
		}),
		events.Subscribe(bus, host.CmdSeek, func(c host.SeekCommand) {
			if el := p.element(); el != nil {
				el.SetCurrentTime(c.Time)
			}
		}),
		events.Subscribe(bus, host.VolumeChanged, func(c host.VolumeChange) {
			if el := p.element(); el != nil && el.Volume() != c.Volume {
				el.SetVolume(c.Volume)
			}
		}),
		events.Subscribe(bus, host.CmdMute, func(c host.MuteCommand) {
			if el := p.element(); el != nil && el.Muted() != c.Muted {
				el.SetMuted(c.Muted)
			}
		}),
		events.Subscribe(bus, host.RateChanged, func(c host.RateChange) {
			if el := p.element(); el != nil && el.PlaybackRate() != c.Rate {
				el.SetPlaybackRate(c.Rate)
			}
		}),
		events.Subscribe(bus, host.CmdQualitySelect, p.onQualitySelect),
	}
}

func (p *Plugin) onQualitySelect(c host.QualitySelect) {
	if c.Auto {
		p.SetLevel(-1)
		return
	}
	idx, ok := quality.Resolve(p.GetLevels(), c.Quality)
	if !ok {
		p.logger.Warn().
			Str(log.FieldEvent, "quality.unknown").
			Str("quality", c.Quality).
			Msg("ignoring selection of unknown quality")
		return
	}
	p.SetLevel(idx)
}

func (p *Plugin) element() media.Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.el
}
