// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package translate maps engine and media element events onto the host's
// state store and event vocabulary.
package translate

import (
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/metrics"
	"github.com/ManuGH/hlsplay/internal/quality"
	"github.com/rs/zerolog"
)

// EngineBindings is what the engine adapter publishes into.
type EngineBindings struct {
	Store host.Store
	Bus   *events.Bus

	// AutoQuality reports whether the bandwidth estimator owns level choice.
	AutoQuality func() bool
	// OnLevels receives the formatted level list after every manifest.
	OnLevels func([]quality.Level)
	// OnError receives every engine fault.
	OnError func(engine.ErrorData)

	Logger *zerolog.Logger
}

// WireEngine subscribes to inst and returns one handle that detaches every
// subscription.
func WireEngine(inst engine.Instance, b EngineBindings) events.Unsubscribe {
	logger := log.WithComponent("translate")
	if b.Logger != nil {
		logger = *b.Logger
	}
	bus := inst.Events()
	var td events.Teardown

	td.Add(events.Subscribe(bus, engine.ManifestParsed, func(d engine.ManifestParsedData) {
		levels := quality.FromEngine(d.Levels)
		if b.OnLevels != nil {
			b.OnLevels(levels)
		}
		hostLevels := quality.ListToHost(levels)
		b.Store.Set(func(st *host.State) { st.Qualities = hostLevels })
		events.Publish(b.Bus, host.QualityLevelsEvent, host.QualityLevels{Levels: hostLevels})
		logger.Debug().
			Str(log.FieldEvent, "engine.manifest_parsed").
			Int("levels", len(levels)).
			Msg("manifest parsed")
	}))

	td.Add(events.Subscribe(bus, engine.LevelSwitched, func(d engine.LevelSwitchedData) {
		levels := inst.Levels()
		label := ""
		if d.Level >= 0 && d.Level < len(levels) {
			label = quality.Format(d.Level, levels[d.Level]).Label
		}
		auto := b.AutoQuality == nil || b.AutoQuality()
		text := label
		if auto {
			text = quality.AutoWithLabel(label)
		}
		b.Store.Set(func(st *host.State) {
			st.CurrentQuality = text
			st.AutoQuality = auto
		})
		events.Publish(b.Bus, host.QualityChangeEvent, host.QualityChange{Quality: text, Auto: auto})
		metrics.IncLevelSwitch(auto)
		logger.Debug().
			Str(log.FieldEvent, "engine.level_switched").
			Int(log.FieldLevel, d.Level).
			Bool("auto", auto).
			Msg("level switched")
	}))

	td.Add(events.Subscribe(bus, engine.FragLoading, func(engine.FragData) {
		b.Store.Set(func(st *host.State) { st.Buffering = true })
	}))

	td.Add(events.Subscribe(bus, engine.FragBuffered, func(engine.FragData) {
		b.Store.Set(func(st *host.State) { st.Buffering = false })
	}))

	td.Add(events.Subscribe(bus, engine.LevelLoaded, func(d engine.LevelLoadedData) {
		if !d.Live {
			return
		}
		b.Store.Set(func(st *host.State) { st.Live = true })
	}))

	td.Add(events.Subscribe(bus, engine.Error, func(d engine.ErrorData) {
		if b.OnError != nil {
			b.OnError(d)
		}
	}))

	return td.Run
}
