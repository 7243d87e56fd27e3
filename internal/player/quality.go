// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/quality"
)

// LiveInfo is the live timing of the engine backend, in seconds.
type LiveInfo struct {
	IsLive        bool    `json:"isLive"`
	Latency       float64 `json:"latency"`
	TargetLatency float64 `json:"targetLatency"`
	Drift         float64 `json:"drift"`
}

// engineInstance returns the active engine, or nil on the native path.
func (p *Plugin) engineInstance() engine.Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return nil
	}
	return p.backend.instance()
}

// GetEngineInstance exposes the raw engine handle for advanced use. It is nil
// unless the engine backend is active.
func (p *Plugin) GetEngineInstance() engine.Instance {
	return p.engineInstance()
}

// IsNativeHLS reports whether the native backend is active.
func (p *Plugin) IsNativeHLS() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backend != nil && p.backend.kind() == BackendNative
}

// ActiveBackend reports the backend of the current session.
func (p *Plugin) ActiveBackend() Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return BackendNone
	}
	return p.backend.kind()
}

// GetLevels lists the renditions of the current manifest. It is empty on the
// native path.
func (p *Plugin) GetLevels() []quality.Level {
	inst := p.engineInstance()
	if inst == nil {
		return []quality.Level{}
	}
	return quality.FromEngine(inst.Levels())
}

// GetCurrentLevel returns the selected level index, or -1 while the bandwidth
// estimator chooses (always on the native path). A pending manual switch is
// reported before it completes.
func (p *Plugin) GetCurrentLevel() int {
	inst := p.engineInstance()
	if inst == nil || p.autoQuality.Load() {
		return -1
	}
	if next := inst.NextLevel(); next >= 0 {
		return next
	}
	return inst.CurrentLevel()
}

// SetLevel queues index for the next fragment boundary; -1 returns level
// choice to the bandwidth estimator. It is a no-op on the native path.
func (p *Plugin) SetLevel(index int) {
	inst := p.engineInstance()
	if inst == nil {
		p.logger.Warn().
			Str(log.FieldEvent, "quality.unsupported").
			Int(log.FieldLevel, index).
			Msg("manual level selection needs the engine backend")
		return
	}
	if index < 0 {
		p.selectAuto(inst)
		return
	}
	p.autoQuality.Store(false)
	p.pinned.Store(int32(index))
	inst.SetNextLevel(index)

	p.mu.Lock()
	api := p.api
	p.mu.Unlock()
	if api != nil {
		api.Store().Set(func(st *host.State) { st.AutoQuality = false })
	}
	p.logger.Debug().
		Str(log.FieldEvent, "quality.pinned").
		Int(log.FieldLevel, index).
		Msg("level switch queued")
}

// selectAuto clears the override and shows the Auto placeholder until the
// engine reports the level it settled on.
func (p *Plugin) selectAuto(inst engine.Instance) {
	p.autoQuality.Store(true)
	p.pinned.Store(-1)
	inst.SetNextLevel(-1)

	p.mu.Lock()
	api := p.api
	p.mu.Unlock()
	if api == nil {
		return
	}
	api.Store().Set(func(st *host.State) {
		st.CurrentQuality = quality.AutoLabel
		st.AutoQuality = true
	})
	events.Publish(api.Bus(), host.QualityChangeEvent, host.QualityChange{Quality: quality.AutoLabel, Auto: true})
}

func (p *Plugin) pinnedLevel() int {
	return int(p.pinned.Load())
}

// GetLiveInfo returns live timing while the engine plays a live stream, and
// nil otherwise.
func (p *Plugin) GetLiveInfo() *LiveInfo {
	inst := p.engineInstance()
	if inst == nil {
		return nil
	}
	p.mu.Lock()
	api := p.api
	p.mu.Unlock()
	if api == nil || !api.Store().Get().Live {
		return nil
	}
	return &LiveInfo{
		IsLive:        true,
		Latency:       inst.Latency(),
		TargetLatency: inst.TargetLatency(),
		Drift:         inst.Drift(),
	}
}
